// Package domain contains immutable per-domain history records.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// HistoryType labels the mutation a history record captures.
type HistoryType string

const (
	HistoryTypeCreate    HistoryType = "DOMAIN_CREATE"
	HistoryTypeRenew     HistoryType = "DOMAIN_RENEW"
	HistoryTypeRestore   HistoryType = "DOMAIN_RESTORE"
	HistoryTypeAutorenew HistoryType = "DOMAIN_AUTORENEW"
	HistoryTypeDelete    HistoryType = "DOMAIN_DELETE"
)

// ReportField names the transaction-report counter a history entry
// contributes to.
type ReportField string

const (
	ReportFieldNetRenews1Yr    ReportField = "NET_RENEWS_1_YR"
	ReportFieldRestoredDomains ReportField = "RESTORED_DOMAINS"
)

// DomainHistory is one auditable snapshot of a domain mutation, parented
// to the domain and never updated after insert. AUTORENEW entries carry a
// transaction-report line item for registry reporting.
type DomainHistory struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DomainID    snowflake.ID `gorm:"not null;index"`
	RegistrarID string       `gorm:"type:text;not null"`
	Type        HistoryType  `gorm:"type:text;not null"`
	Reason      string       `gorm:"type:text"`
	BySuperuser bool         `gorm:"not null;default:false"`

	ModificationTime time.Time `gorm:"not null;index"`

	ReportTLD     *string      `gorm:"type:text"`
	ReportField   *ReportField `gorm:"type:text"`
	ReportAmount  *int         `gorm:""`
	ReportingTime *time.Time   `gorm:""`

	CreatedAt time.Time `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (DomainHistory) TableName() string { return "domain_histories" }
