package service

import (
	"context"
	"time"

	"github.com/zonekeeper/registro/internal/clock"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	clock clock.Clock
}

type ServiceParam struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	Clock clock.Clock
}

func NewService(p ServiceParam) cursordomain.Service {
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("cursor.service"),
		clock: p.Clock,
	}
}

func (s *Service) Get(ctx context.Context, purpose cursordomain.Purpose, defaultTime time.Time) (cursordomain.Cursor, error) {
	cursor := cursordomain.Cursor{
		Purpose:    purpose,
		CursorTime: defaultTime.UTC(),
	}
	// Insert-if-absent so concurrent first reads converge on one row.
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&cursor).Error; err != nil {
		return cursordomain.Cursor{}, err
	}

	if err := s.db.WithContext(ctx).
		Where("purpose = ?", purpose).
		First(&cursor).Error; err != nil {
		return cursordomain.Cursor{}, err
	}
	return cursor, nil
}

func (s *Service) Advance(ctx context.Context, purpose cursordomain.Purpose, expectedTime, newTime time.Time) error {
	res := s.db.WithContext(ctx).Model(&cursordomain.Cursor{}).
		Where("purpose = ? AND cursor_time = ?", purpose, expectedTime.UTC()).
		Updates(map[string]any{
			"cursor_time": newTime.UTC(),
			"updated_at":  s.clock.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		var current cursordomain.Cursor
		if err := s.db.WithContext(ctx).
			Where("purpose = ?", purpose).
			First(&current).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return cursordomain.ErrCursorNotFound
			}
			return err
		}
		s.log.Warn("cursor advance lost a race",
			zap.String("purpose", string(purpose)),
			zap.Time("expected", expectedTime),
			zap.Time("found", current.CursorTime),
		)
		return cursordomain.ErrCursorMismatch
	}

	s.log.Info("cursor advanced",
		zap.String("purpose", string(purpose)),
		zap.Time("from", expectedTime),
		zap.Time("to", newTime),
	)
	return nil
}
