// Package domain contains persistence models for registered domains.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// EndOfTime is the sentinel for obligations with no scheduled end and for
// domains that are not pending deletion. Keeping the explicit sentinel
// instead of NULL keeps range predicates closed-form.
var EndOfTime = time.Date(9999, 12, 31, 23, 59, 59, 0, time.UTC)

// StartOfTime is the dawn-of-time sentinel used for unset watermarks.
var StartOfTime = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// DomainStatus mirrors the EPP status values the billing core cares about.
type DomainStatus string

const (
	DomainStatusOK            DomainStatus = "OK"
	DomainStatusPendingDelete DomainStatus = "PENDING_DELETE"
)

// Domain is one registered name. The billing core reads it for TLD,
// registrar and redemption-grace state; EPP mutations happen elsewhere.
type Domain struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DomainName  string       `gorm:"type:text;not null;uniqueIndex"`
	TLD         string       `gorm:"type:text;not null;index"`
	RegistrarID string       `gorm:"type:text;not null;index"`

	CreationTime   time.Time `gorm:"not null"`
	ExpirationTime time.Time `gorm:"not null"`
	// DeletionTime is EndOfTime unless the domain is pending delete; a
	// pending-delete domain inside its redemption window may be restored.
	DeletionTime        time.Time         `gorm:"not null"`
	RedemptionEndTime   *time.Time        `gorm:""`
	Statuses            datatypes.JSON    `gorm:"type:jsonb"`
	CurrentRecurrenceID *snowflake.ID     `gorm:"index"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Domain) TableName() string { return "domains" }

// Label returns the part of the domain name left of the first dot.
func (d Domain) Label() string {
	for i := 0; i < len(d.DomainName); i++ {
		if d.DomainName[i] == '.' {
			return d.DomainName[:i]
		}
	}
	return d.DomainName
}

// InRedemptionGrace reports whether the domain can still be restored at t.
func (d Domain) InRedemptionGrace(t time.Time) bool {
	if d.RedemptionEndTime == nil {
		return false
	}
	return d.DeletionTime.Before(EndOfTime) && t.Before(*d.RedemptionEndTime)
}
