package server

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	feedomain "github.com/zonekeeper/registro/internal/fee/domain"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	"gorm.io/gorm"
)

type feeLine struct {
	Type        string `json:"type"`
	Description string `json:"description"`
	AmountMinor int64  `json:"amount_minor"`
	Premium     bool   `json:"premium"`
}

type priceResponse struct {
	Operation  string    `json:"operation"`
	DomainName string    `json:"domain_name"`
	AsOf       time.Time `json:"as_of"`
	Currency   string    `json:"currency"`
	TotalMinor int64     `json:"total_minor"`
	Premium    bool      `json:"premium"`
	Fees       []feeLine `json:"fees"`
}

// GetPrice quotes fees for a lifecycle operation without writing
// anything. The operation, TLD and domain name are required; years
// defaults to one and as_of to the current time.
func (s *Server) GetPrice(c *gin.Context) {
	op := strings.ToLower(strings.TrimSpace(c.Query("op")))
	tld := strings.TrimSpace(c.Query("tld"))
	domainName := strings.ToLower(strings.TrimSpace(c.Query("domain")))
	if op == "" || tld == "" || domainName == "" {
		AbortWithError(c, invalidRequestError())
		return
	}

	years := 1
	if raw := c.Query("years"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			AbortWithError(c, newValidationError("years", "invalid_years", "years must be an integer"))
			return
		}
		years = parsed
	}

	asOf := s.clock.Now()
	if raw := c.Query("as_of"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			AbortWithError(c, newValidationError("as_of", "invalid_time", "as_of must be RFC3339"))
			return
		}
		asOf = parsed.UTC()
	}

	token, err := s.loadToken(c, strings.TrimSpace(c.Query("token")))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var fees feedomain.FeesAndCredits
	switch op {
	case "create":
		fees, err = s.pricingSvc.CreatePrice(c.Request.Context(), tld, domainName, asOf, pricingdomain.CreateOptions{
			Years:           years,
			IsSunriseCreate: c.Query("sunrise") == "true",
			IsAnchorTenant:  c.Query("anchor_tenant") == "true",
			Token:           token,
		})
	case "renew":
		recurrence, recErr := s.currentRecurrence(c, domainName)
		if recErr != nil {
			AbortWithError(c, recErr)
			return
		}
		fees, err = s.pricingSvc.RenewPrice(c.Request.Context(), tld, domainName, asOf, years, recurrence, token)
	case "restore":
		fees, err = s.pricingSvc.RestorePrice(c.Request.Context(), tld, domainName, asOf, c.Query("expired") != "false")
	case "transfer":
		recurrence, recErr := s.currentRecurrence(c, domainName)
		if recErr != nil {
			AbortWithError(c, recErr)
			return
		}
		fees, err = s.pricingSvc.TransferPrice(c.Request.Context(), tld, domainName, asOf, recurrence)
	default:
		AbortWithError(c, newValidationError("op", "invalid_operation", "op must be create, renew, restore or transfer"))
		return
	}
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := priceResponse{
		Operation:  op,
		DomainName: domainName,
		AsOf:       asOf,
		Currency:   fees.Currency,
		TotalMinor: fees.TotalMinor(),
		Premium:    fees.HasPremium(),
	}
	for _, fee := range fees.Fees {
		resp.Fees = append(resp.Fees, feeLine{
			Type:        string(fee.Type),
			Description: fee.Description,
			AmountMinor: fee.AmountMinor,
			Premium:     fee.Premium,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// currentRecurrence returns the domain's open autorenewal when the
// domain is registered here; quoting an unregistered name is allowed
// and falls back to standard pricing.
func (s *Server) currentRecurrence(c *gin.Context, domainName string) (*billingdomain.Recurrence, error) {
	var domain registrydomain.Domain
	err := s.db.WithContext(c.Request.Context()).
		Where("domain_name = ?", domainName).
		First(&domain).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if domain.CurrentRecurrenceID == nil {
		return nil, nil
	}
	var recurrence billingdomain.Recurrence
	err = s.db.WithContext(c.Request.Context()).
		Where("id = ?", *domain.CurrentRecurrenceID).
		First(&recurrence).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &recurrence, nil
}
