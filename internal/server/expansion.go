package server

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"github.com/zonekeeper/registro/internal/expansion"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
)

type triggerExpansionRequest struct {
	StartTime     time.Time `json:"start_time"`
	EndTime       time.Time `json:"end_time"`
	DryRun        bool      `json:"dry_run"`
	AdvanceCursor bool      `json:"advance_cursor"`
}

type triggerExpansionResponse struct {
	RecurrencesInScope int  `json:"recurrences_in_scope"`
	InstancesExpanded  int  `json:"instances_expanded"`
	BatchesProcessed   int  `json:"batches_processed"`
	DryRun             bool `json:"dry_run"`
}

// TriggerExpansion runs one explicit expansion window synchronously.
// Meant for operators: backfills, dry-run verification, incident
// recovery. The background loop covers normal operation.
func (s *Server) TriggerExpansion(c *gin.Context) {
	var req triggerExpansionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	result, err := s.expansion.Expand(c.Request.Context(), expansion.Request{
		StartTime:     req.StartTime,
		EndTime:       req.EndTime,
		DryRun:        req.DryRun,
		AdvanceCursor: req.AdvanceCursor,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, triggerExpansionResponse{
		RecurrencesInScope: result.RecurrencesInScope,
		InstancesExpanded:  result.InstancesExpanded,
		BatchesProcessed:   result.BatchesProcessed,
		DryRun:             req.DryRun,
	})
}

type cursorResponse struct {
	Purpose    string    `json:"purpose"`
	CursorTime time.Time `json:"cursor_time"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// GetCursor reports a job cursor's current position.
func (s *Server) GetCursor(c *gin.Context) {
	purpose := cursordomain.Purpose(c.Param("purpose"))
	switch purpose {
	case cursordomain.PurposeRecurringBilling:
	default:
		AbortWithError(c, cursordomain.ErrCursorNotFound)
		return
	}

	cursor, err := s.cursorSvc.Get(c.Request.Context(), purpose, registrydomain.StartOfTime)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, cursorResponse{
		Purpose:    string(cursor.Purpose),
		CursorTime: cursor.CursorTime,
		UpdatedAt:  cursor.UpdatedAt,
	})
}
