// Package domain defines the restore flow surface: bringing a domain out
// of its redemption grace period for a fee.
package domain

import (
	"context"
	"errors"
	"time"

	feedomain "github.com/zonekeeper/registro/internal/fee/domain"
)

// FeeAck is the fee extension acknowledgement a registrar sends along
// with a restore. When present it must match the server-side quote.
type FeeAck struct {
	TotalMinor int64
	Currency   string
}

// Request asks to restore a single domain on behalf of a registrar.
type Request struct {
	DomainName  string
	RegistrarID string
	FeeAck      *FeeAck
}

// Response reports the restored domain's new state and what was charged.
type Response struct {
	DomainName     string
	ExpirationTime time.Time
	Fees           feedomain.FeesAndCredits
}

type Service interface {
	// Restore validates eligibility and the fee acknowledgement, then
	// atomically reports the restore, charges its fees and reopens the
	// domain's autorenewal.
	Restore(ctx context.Context, req Request) (Response, error)
}

var (
	ErrDomainNotFound        = errors.New("domain_not_found")
	ErrNotAuthorized         = errors.New("registrar_not_authorized")
	ErrNotEligibleForRestore = errors.New("domain_not_eligible_for_restore")
	ErrFeeMismatch           = errors.New("restore_fee_mismatch")
)
