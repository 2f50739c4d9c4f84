// Package domain contains the DNS refresh queue model. Publishing itself
// happens in a separate system; flows here only enqueue requests.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// RefreshRequest asks the DNS pipeline to re-publish a domain.
type RefreshRequest struct {
	ID          snowflake.ID `gorm:"primaryKey"`
	DomainName  string       `gorm:"type:text;not null;index"`
	RequestedAt time.Time    `gorm:"not null"`
}

// TableName sets the database table name.
func (RefreshRequest) TableName() string { return "dns_refresh_requests" }
