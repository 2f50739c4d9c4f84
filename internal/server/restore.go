package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	restoredomain "github.com/zonekeeper/registro/internal/restore/domain"
)

type restoreRequest struct {
	RegistrarID string `json:"registrar_id" binding:"required"`
	FeeAck      *struct {
		TotalMinor int64  `json:"total_minor"`
		Currency   string `json:"currency"`
	} `json:"fee_ack"`
}

type restoreResponse struct {
	DomainName     string    `json:"domain_name"`
	ExpirationTime time.Time `json:"expiration_time"`
	Currency       string    `json:"currency"`
	TotalMinor     int64     `json:"total_minor"`
	Fees           []feeLine `json:"fees"`
}

// RestoreDomain brings a pending-delete domain out of redemption grace,
// charging the restore and renewal fees immediately.
func (s *Server) RestoreDomain(c *gin.Context) {
	var req restoreRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	domainName := strings.ToLower(strings.TrimSpace(c.Param("name")))
	restoreReq := restoredomain.Request{
		DomainName:  domainName,
		RegistrarID: strings.TrimSpace(req.RegistrarID),
	}
	if req.FeeAck != nil {
		restoreReq.FeeAck = &restoredomain.FeeAck{
			TotalMinor: req.FeeAck.TotalMinor,
			Currency:   req.FeeAck.Currency,
		}
	}

	resp, err := s.restoreSvc.Restore(c.Request.Context(), restoreReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	out := restoreResponse{
		DomainName:     resp.DomainName,
		ExpirationTime: resp.ExpirationTime,
		Currency:       resp.Fees.Currency,
		TotalMinor:     resp.Fees.TotalMinor(),
	}
	for _, fee := range resp.Fees.Fees {
		out.Fees = append(out.Fees, feeLine{
			Type:        string(fee.Type),
			Description: fee.Description,
			AmountMinor: fee.AmountMinor,
			Premium:     fee.Premium,
		})
	}
	c.JSON(http.StatusOK, out)
}
