package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	"github.com/zonekeeper/registro/internal/clock"
	"github.com/zonekeeper/registro/internal/config"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	cursorservice "github.com/zonekeeper/registro/internal/cursor/service"
	dnsdomain "github.com/zonekeeper/registro/internal/dns/domain"
	"github.com/zonekeeper/registro/internal/expansion"
	historydomain "github.com/zonekeeper/registro/internal/history/domain"
	polldomain "github.com/zonekeeper/registro/internal/poll/domain"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	pricingservice "github.com/zonekeeper/registro/internal/pricing/service"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	restoreservice "github.com/zonekeeper/registro/internal/restore/service"
	"github.com/zonekeeper/registro/internal/tldconfig"
	tokendomain "github.com/zonekeeper/registro/internal/token/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type stubPremium struct{}

func (stubPremium) GetPrices(_ context.Context, _, _ string, _ time.Time) (premiumdomain.Prices, error) {
	return premiumdomain.Prices{Currency: "USD", CreateCostMinor: 1300, RenewCostMinor: 1100}, nil
}

type fixture struct {
	server *Server
	db     *gorm.DB
	clock  *clock.FakeClock
	genID  *snowflake.Node
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared&_loc=auto", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	require.NoError(t, db.AutoMigrate(
		&registrydomain.Domain{},
		&billingdomain.Recurrence{},
		&billingdomain.BillingEvent{},
		&historydomain.DomainHistory{},
		&cursordomain.Cursor{},
		&polldomain.PollMessage{},
		&dnsdomain.RefreshRequest{},
		&tokendomain.AllocationToken{},
	))

	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	fakeClock := clock.NewFakeClock(time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC))

	holder := tldconfig.NewStaticHolder(tldconfig.Registry{TLDs: map[string]tldconfig.TLD{
		"example": {
			Name:                 "example",
			Currency:             "USD",
			CreateCostMinor:      1300,
			RestoreCostMinor:     1700,
			RenewSchedule:        []tldconfig.ScheduledCost{{AmountMinor: 1100}},
			AutoRenewGracePeriod: 45 * 24 * time.Hour,
		},
	}})

	log := zap.NewNop()
	pricingSvc := pricingservice.NewService(pricingservice.ServiceParam{
		Log:        log,
		TLDCfg:     holder,
		PremiumSvc: stubPremium{},
	})
	cursorSvc := cursorservice.NewService(cursorservice.ServiceParam{DB: db, Log: log, Clock: fakeClock})
	restoreSvc := restoreservice.NewService(restoreservice.ServiceParam{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		PricingSvc: pricingSvc,
	})
	engine, err := expansion.New(expansion.Params{
		DB:         db,
		Log:        log,
		GenID:      node,
		Clock:      fakeClock,
		CursorSvc:  cursorSvc,
		PricingSvc: pricingSvc,
		TLDCfg:     holder,
	})
	require.NoError(t, err)

	srv := NewServer(ServerParams{
		Gin:        NewEngine(log),
		Cfg:        config.Config{},
		DB:         db,
		Clock:      fakeClock,
		PricingSvc: pricingSvc,
		RestoreSvc: restoreSvc,
		CursorSvc:  cursorSvc,
		Expansion:  engine,
	})
	return &fixture{server: srv, db: db, clock: fakeClock, genID: node}
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.server.engine.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGetPrice_Create(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/price?op=create&tld=example&domain=lion.example&years=2", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp priceResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "USD", resp.Currency)
	assert.Equal(t, int64(1300+1100), resp.TotalMinor)
}

func TestGetPrice_RenewUsesCurrentRecurrence(t *testing.T) {
	f := newFixture(t)

	price := int64(5)
	rec := billingdomain.Recurrence{
		ID:                      f.genID.Generate(),
		DomainID:                f.genID.Generate(),
		RegistrarID:             "registrar-1",
		EventTime:               time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		RecurrenceEndTime:       registrydomain.EndOfTime,
		RecurrenceLastExpansion: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RenewalPriceBehavior:    billingdomain.RenewalPriceBehaviorSpecified,
		RenewalPriceMinor:       &price,
	}
	require.NoError(t, f.db.Create(&rec).Error)
	domain := registrydomain.Domain{
		ID:                  rec.DomainID,
		DomainName:          "lion.example",
		TLD:                 "example",
		RegistrarID:         "registrar-1",
		CreationTime:        time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpirationTime:      time.Date(2027, 3, 1, 0, 0, 0, 0, time.UTC),
		DeletionTime:        registrydomain.EndOfTime,
		CurrentRecurrenceID: &rec.ID,
	}
	require.NoError(t, f.db.Create(&domain).Error)

	res := f.do(http.MethodGet, "/v1/price?op=renew&tld=example&domain=lion.example&years=3", nil)
	require.Equal(t, http.StatusOK, res.Code)

	var resp priceResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	assert.Equal(t, int64(15), resp.TotalMinor)
	assert.False(t, resp.Premium)
}

func TestGetPrice_InvalidOp(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/price?op=upgrade&tld=example&domain=lion.example", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrice_UnknownTLD(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/price?op=create&tld=nope&domain=lion.nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetPrice_UnknownToken(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodGet, "/v1/price?op=create&tld=example&domain=lion.example&token=nope", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRestoreDomain_EndToEnd(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	redemptionEnd := now.Add(20 * 24 * time.Hour)
	domain := registrydomain.Domain{
		ID:                f.genID.Generate(),
		DomainName:        "lion.example",
		TLD:               "example",
		RegistrarID:       "registrar-1",
		CreationTime:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpirationTime:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DeletionTime:      now.Add(-10 * 24 * time.Hour),
		RedemptionEndTime: &redemptionEnd,
	}
	require.NoError(t, f.db.Create(&domain).Error)

	rec := f.do(http.MethodPost, "/v1/domains/lion.example/restore", gin.H{
		"registrar_id": "registrar-1",
		"fee_ack":      gin.H{"total_minor": 2800, "currency": "USD"},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp restoreResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2800), resp.TotalMinor)
	require.Len(t, resp.Fees, 2)

	var events int64
	require.NoError(t, f.db.Model(&billingdomain.BillingEvent{}).Count(&events).Error)
	assert.Equal(t, int64(2), events)
}

func TestRestoreDomain_FeeMismatchConflict(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	redemptionEnd := now.Add(20 * 24 * time.Hour)
	domain := registrydomain.Domain{
		ID:                f.genID.Generate(),
		DomainName:        "lion.example",
		TLD:               "example",
		RegistrarID:       "registrar-1",
		CreationTime:      time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpirationTime:    time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		DeletionTime:      now.Add(-10 * 24 * time.Hour),
		RedemptionEndTime: &redemptionEnd,
	}
	require.NoError(t, f.db.Create(&domain).Error)

	rec := f.do(http.MethodPost, "/v1/domains/lion.example/restore", gin.H{
		"registrar_id": "registrar-1",
		"fee_ack":      gin.H{"total_minor": 1, "currency": "USD"},
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestRestoreDomain_NotFound(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/domains/ghost.example/restore", gin.H{
		"registrar_id": "registrar-1",
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTriggerExpansion_DryRun(t *testing.T) {
	f := newFixture(t)

	anchor := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	domain := registrydomain.Domain{
		ID:             f.genID.Generate(),
		DomainName:     "lion.example",
		TLD:            "example",
		RegistrarID:    "registrar-1",
		CreationTime:   time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		ExpirationTime: anchor,
		DeletionTime:   registrydomain.EndOfTime,
	}
	require.NoError(t, f.db.Create(&domain).Error)
	rec := billingdomain.Recurrence{
		ID:                      f.genID.Generate(),
		DomainID:                domain.ID,
		RegistrarID:             "registrar-1",
		EventTime:               anchor,
		RecurrenceEndTime:       registrydomain.EndOfTime,
		RecurrenceLastExpansion: anchor.AddDate(-1, 0, 0),
		RenewalPriceBehavior:    billingdomain.RenewalPriceBehaviorDefault,
	}
	require.NoError(t, f.db.Create(&rec).Error)

	res := f.do(http.MethodPost, "/v1/expansions", gin.H{
		"start_time": "2025-01-01T00:00:00Z",
		"end_time":   "2026-01-01T00:00:00Z",
		"dry_run":    true,
	})
	require.Equal(t, http.StatusOK, res.Code)

	var resp triggerExpansionResponse
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.InstancesExpanded)
	assert.True(t, resp.DryRun)

	var events int64
	require.NoError(t, f.db.Model(&billingdomain.BillingEvent{}).Count(&events).Error)
	assert.Zero(t, events)
}

func TestTriggerExpansion_InvalidWindow(t *testing.T) {
	f := newFixture(t)
	rec := f.do(http.MethodPost, "/v1/expansions", gin.H{
		"start_time": "2026-01-01T00:00:00Z",
		"end_time":   "2025-01-01T00:00:00Z",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetCursor(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/v1/cursors/RECURRING_BILLING", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp cursorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "RECURRING_BILLING", resp.Purpose)

	unknown := f.do(http.MethodGet, "/v1/cursors/NOPE", nil)
	assert.Equal(t, http.StatusNotFound, unknown.Code)
}
