package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	"github.com/zonekeeper/registro/internal/clock"
	dnsdomain "github.com/zonekeeper/registro/internal/dns/domain"
	feedomain "github.com/zonekeeper/registro/internal/fee/domain"
	historydomain "github.com/zonekeeper/registro/internal/history/domain"
	polldomain "github.com/zonekeeper/registro/internal/poll/domain"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	restoredomain "github.com/zonekeeper/registro/internal/restore/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	clock      clock.Clock
	pricingSvc pricingdomain.Service
}

type ServiceParam struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	PricingSvc pricingdomain.Service
}

func NewService(p ServiceParam) restoredomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("restore.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		pricingSvc: p.PricingSvc,
	}
}

func (s *Service) Restore(ctx context.Context, req restoredomain.Request) (restoredomain.Response, error) {
	now := s.clock.Now()

	var domain registrydomain.Domain
	err := s.db.WithContext(ctx).
		Where("domain_name = ?", req.DomainName).
		First(&domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return restoredomain.Response{}, restoredomain.ErrDomainNotFound
		}
		return restoredomain.Response{}, err
	}
	if domain.RegistrarID != req.RegistrarID {
		return restoredomain.Response{}, restoredomain.ErrNotAuthorized
	}
	if !domain.InRedemptionGrace(now) {
		return restoredomain.Response{}, restoredomain.ErrNotEligibleForRestore
	}

	// A restore always charges a full renewal year on top of the
	// restore fee, regardless of where the expiration sits.
	fees, err := s.pricingSvc.RestorePrice(ctx, domain.TLD, domain.DomainName, now, true)
	if err != nil {
		return restoredomain.Response{}, err
	}
	if req.FeeAck != nil {
		if req.FeeAck.Currency != fees.Currency || req.FeeAck.TotalMinor != fees.TotalMinor() {
			return restoredomain.Response{}, restoredomain.ErrFeeMismatch
		}
	}

	newExpiration := now.AddDate(1, 0, 0)
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if domain.CurrentRecurrenceID != nil {
			if err := s.closeRecurrence(tx, *domain.CurrentRecurrenceID, now); err != nil {
				return err
			}
		}

		recurrence := billingdomain.Recurrence{
			ID:                      s.genID.Generate(),
			DomainID:                domain.ID,
			RegistrarID:             req.RegistrarID,
			EventTime:               newExpiration,
			RecurrenceEndTime:       registrydomain.EndOfTime,
			RecurrenceLastExpansion: now,
			RenewalPriceBehavior:    billingdomain.RenewalPriceBehaviorDefault,
		}
		if err := tx.Create(&recurrence).Error; err != nil {
			return err
		}

		for _, fee := range fees.Fees {
			reason := billingdomain.ReasonRestore
			if fee.Type == feedomain.FeeTypeRenew {
				reason = billingdomain.ReasonRenew
			}
			event := billingdomain.BillingEvent{
				ID:          s.genID.Generate(),
				DomainID:    domain.ID,
				RegistrarID: req.RegistrarID,
				Reason:      reason,
				EventTime:   now,
				BillingTime: now,
				CostMinor:   fee.AmountMinor,
				Currency:    fees.Currency,
				PeriodYears: 1,
			}
			if err := tx.Create(&event).Error; err != nil {
				return err
			}
		}

		history := historydomain.DomainHistory{
			ID:               s.genID.Generate(),
			DomainID:         domain.ID,
			RegistrarID:      req.RegistrarID,
			Type:             historydomain.HistoryTypeRestore,
			Reason:           "domain restored from redemption",
			ModificationTime: now,
			ReportTLD:        &domain.TLD,
			ReportField:      ptr(historydomain.ReportFieldRestoredDomains),
			ReportAmount:     ptr(1),
			ReportingTime:    &now,
		}
		if err := tx.Create(&history).Error; err != nil {
			return err
		}

		res := tx.Exec(
			`UPDATE domains
			 SET deletion_time = ?, redemption_end_time = NULL,
			     expiration_time = ?, statuses = ?,
			     current_recurrence_id = ?, updated_at = ?
			 WHERE id = ?`,
			registrydomain.EndOfTime,
			newExpiration,
			fmt.Sprintf(`["%s"]`, registrydomain.DomainStatusOK),
			recurrence.ID,
			now,
			domain.ID,
		)
		if res.Error != nil {
			return res.Error
		}

		if err := tx.Where("domain_id = ? AND type = ?", domain.ID, polldomain.PollMessageTypePendingDelete).
			Delete(&polldomain.PollMessage{}).Error; err != nil {
			return err
		}

		refresh := dnsdomain.RefreshRequest{
			ID:          s.genID.Generate(),
			DomainName:  domain.DomainName,
			RequestedAt: now,
		}
		return tx.Create(&refresh).Error
	})
	if err != nil {
		return restoredomain.Response{}, err
	}

	s.log.Info("domain restored",
		zap.String("domain", domain.DomainName),
		zap.String("registrar", req.RegistrarID),
		zap.Int64("total_minor", fees.TotalMinor()),
		zap.Time("new_expiration", newExpiration),
	)
	return restoredomain.Response{
		DomainName:     domain.DomainName,
		ExpirationTime: newExpiration,
		Fees:           fees,
	}, nil
}

// closeRecurrence ends the old autorenewal so the expansion job never
// fires it again. The row stays for audit.
func (s *Service) closeRecurrence(tx *gorm.DB, id snowflake.ID, now time.Time) error {
	return tx.Exec(
		`UPDATE recurrences SET recurrence_end_time = ?, updated_at = ? WHERE id = ?`,
		now, now, id,
	).Error
}

func ptr[T any](v T) *T { return &v }
