// Package domain contains registrar poll-message models.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type PollMessageType string

const (
	PollMessageTypePendingDelete PollMessageType = "PENDING_DELETE"
	PollMessageTypeAutorenew     PollMessageType = "AUTORENEW"
)

// PollMessage is a queued notice for a registrar's EPP poll channel.
type PollMessage struct {
	ID          snowflake.ID    `gorm:"primaryKey"`
	DomainID    snowflake.ID    `gorm:"not null;index"`
	RegistrarID string          `gorm:"type:text;not null;index"`
	Type        PollMessageType `gorm:"type:text;not null"`
	EventTime   time.Time       `gorm:"not null"`
	Message     string          `gorm:"type:text"`
	CreatedAt   time.Time       `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PollMessage) TableName() string { return "poll_messages" }
