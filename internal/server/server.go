// Package server exposes the registry billing core over an internal
// admin HTTP API: fee quotes, restore, expansion windows and cursor
// inspection.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/zonekeeper/registro/internal/clock"
	"github.com/zonekeeper/registro/internal/config"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"github.com/zonekeeper/registro/internal/expansion"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	restoredomain "github.com/zonekeeper/registro/internal/restore/domain"
	tokendomain "github.com/zonekeeper/registro/internal/token/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("http.server",
	fx.Provide(NewEngine),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func requestLogger(log *zap.Logger) gin.HandlerFunc {
	log = log.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		)
	}
}

type Server struct {
	engine     *gin.Engine
	cfg        config.Config
	db         *gorm.DB
	clock      clock.Clock
	pricingSvc pricingdomain.Service
	restoreSvc restoredomain.Service
	cursorSvc  cursordomain.Service
	expansion  *expansion.Engine
}

type ServerParams struct {
	fx.In

	Gin        *gin.Engine
	Cfg        config.Config
	DB         *gorm.DB
	Clock      clock.Clock
	PricingSvc pricingdomain.Service
	RestoreSvc restoredomain.Service
	CursorSvc  cursordomain.Service
	Expansion  *expansion.Engine
}

func NewServer(p ServerParams) *Server {
	s := &Server{
		engine:     p.Gin,
		cfg:        p.Cfg,
		db:         p.DB,
		clock:      p.Clock,
		pricingSvc: p.PricingSvc,
		restoreSvc: p.RestoreSvc,
		cursorSvc:  p.CursorSvc,
		expansion:  p.Expansion,
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	v1 := s.engine.Group("/v1")
	v1.GET("/price", s.GetPrice)
	v1.POST("/expansions", s.TriggerExpansion)
	v1.GET("/cursors/:purpose", s.GetCursor)
	v1.POST("/domains/:name/restore", s.RestoreDomain)
}

func run(lc fx.Lifecycle, cfg config.Config, r *gin.Engine) {
	srv := &http.Server{
		Addr:    cfg.HTTPAddr,
		Handler: r,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// loadToken resolves an optional allocation token query parameter.
func (s *Server) loadToken(c *gin.Context, code string) (*tokendomain.AllocationToken, error) {
	if code == "" {
		return nil, nil
	}
	var token tokendomain.AllocationToken
	if err := s.db.WithContext(c.Request.Context()).
		Where("token = ?", code).
		First(&token).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, newValidationError("token", "unknown_token", "unknown allocation token")
		}
		return nil, err
	}
	return &token, nil
}
