package expansion

import (
	"context"
	"time"

	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	"go.uber.org/zap"
)

// RunOnce expands the window [cursor, now) when the cursor lags the
// clock by at least WindowStep. The cursor is created at the current
// time on first use so a fresh deployment does not replay history.
func (e *Engine) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, e.cfg.JobTimeout)
	defer cancel()

	now := e.clock.Now()
	cursor, err := e.cursorSvc.Get(ctx, cursordomain.PurposeRecurringBilling, now)
	if err != nil {
		return err
	}
	if now.Sub(cursor.CursorTime) < e.cfg.WindowStep {
		return nil
	}
	if cursor.CursorTime.Before(registrydomain.StartOfTime) {
		cursor.CursorTime = registrydomain.StartOfTime
	}

	_, err = e.Expand(ctx, Request{
		StartTime:     cursor.CursorTime,
		EndTime:       now,
		AdvanceCursor: true,
	})
	return err
}

// RunForever loops RunOnce on a ticker until the context ends.
func (e *Engine) RunForever(ctx context.Context) {
	ticker := time.NewTicker(e.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := e.RunOnce(ctx); err != nil {
			e.log.Warn("expansion run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
