package migration

import (
	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	"github.com/zonekeeper/registro/internal/config"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	dnsdomain "github.com/zonekeeper/registro/internal/dns/domain"
	historydomain "github.com/zonekeeper/registro/internal/history/domain"
	polldomain "github.com/zonekeeper/registro/internal/poll/domain"
	premiumdomain "github.com/zonekeeper/registro/internal/premium/domain"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	tokendomain "github.com/zonekeeper/registro/internal/token/domain"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		if cfg.DBType != "postgres" {
			// sqlite and mysql are local-dev backends; gorm's schema
			// derivation is good enough there.
			return conn.AutoMigrate(
				&registrydomain.Domain{},
				&billingdomain.Recurrence{},
				&billingdomain.BillingEvent{},
				&historydomain.DomainHistory{},
				&cursordomain.Cursor{},
				&premiumdomain.PremiumLabel{},
				&tokendomain.AllocationToken{},
				&polldomain.PollMessage{},
				&dnsdomain.RefreshRequest{},
			)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)
