// Package expansion materializes synthetic billing events from open
// autorenewal recurrences. Expansion is idempotent across runs: an
// instance already written is never written twice, enforced both by a
// watermark on the recurrence and a unique index on the events table.
package expansion

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bwmarrin/snowflake"
	billingdomain "github.com/zonekeeper/registro/internal/billing/domain"
	"github.com/zonekeeper/registro/internal/clock"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	historydomain "github.com/zonekeeper/registro/internal/history/domain"
	obsmetrics "github.com/zonekeeper/registro/internal/observability/metrics"
	pricingdomain "github.com/zonekeeper/registro/internal/pricing/domain"
	registrydomain "github.com/zonekeeper/registro/internal/registry/domain"
	"github.com/zonekeeper/registro/internal/tldconfig"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var (
	ErrInvalidWindow = errors.New("invalid_expansion_window")
)

// Request describes one expansion window. The window is half-open:
// instances with event time in [StartTime, EndTime) are materialized.
type Request struct {
	StartTime     time.Time
	EndTime       time.Time
	DryRun        bool
	AdvanceCursor bool
}

// Result reports what a run touched.
type Result struct {
	RecurrencesInScope int
	InstancesExpanded  int
	BatchesProcessed   int
}

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Clock      clock.Clock
	CursorSvc  cursordomain.Service
	PricingSvc pricingdomain.Service
	TLDCfg     *tldconfig.Holder
	Config     Config `optional:"true"`
}

type Engine struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	genID      *snowflake.Node
	clock      clock.Clock
	cursorSvc  cursordomain.Service
	pricingSvc pricingdomain.Service
	tldCfg     *tldconfig.Holder
}

func New(p Params) (*Engine, error) {
	if p.DB == nil || p.Log == nil || p.GenID == nil || p.Clock == nil || p.CursorSvc == nil || p.PricingSvc == nil || p.TLDCfg == nil {
		return nil, errors.New("expansion: missing dependency")
	}
	return &Engine{
		db:         p.DB,
		log:        p.Log.Named("expansion").With(zap.String("component", "expansion")),
		cfg:        p.Config.withDefaults(),
		genID:      p.GenID,
		clock:      p.Clock,
		cursorSvc:  p.CursorSvc,
		pricingSvc: p.PricingSvc,
		tldCfg:     p.TLDCfg,
	}, nil
}

// Expand materializes every unexpanded recurrence instance with event
// time inside the request window, then optionally advances the
// RECURRING_BILLING cursor from StartTime to EndTime.
func (e *Engine) Expand(ctx context.Context, req Request) (Result, error) {
	start := req.StartTime.UTC()
	end := req.EndTime.UTC()
	if !start.Before(end) {
		return Result{}, ErrInvalidWindow
	}

	jobMetrics := obsmetrics.Expansion()
	jobMetrics.IncJobRun(obsmetrics.JobExpandRecurrences)
	runStart := e.clock.Now()

	log := e.log.With(
		zap.Time("window_start", start),
		zap.Time("window_end", end),
		zap.Bool("dry_run", req.DryRun),
	)
	log.Info("expansion run started")

	ids, err := e.selectRecurrenceIDs(ctx, start, end)
	if err != nil {
		jobMetrics.IncJobError(obsmetrics.JobExpandRecurrences, err)
		return Result{}, fmt.Errorf("select recurrences: %w", err)
	}

	result := Result{RecurrencesInScope: len(ids)}
	jobMetrics.AddRecurrencesInScope(len(ids))

	var (
		mu        sync.Mutex
		jobErr    error
		expanded  int
		processed int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Workers)
	for batchStart := 0; batchStart < len(ids); batchStart += e.cfg.BatchSize {
		batch := ids[batchStart:min(batchStart+e.cfg.BatchSize, len(ids))]
		g.Go(func() error {
			count, batchErr := e.expandBatch(gctx, batch, start, end, req.DryRun)
			mu.Lock()
			defer mu.Unlock()
			expanded += count
			processed++
			if batchErr != nil {
				// The batch's own transaction rolled back; other
				// batches keep going and commit independently.
				jobErr = errors.Join(jobErr, batchErr)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.InstancesExpanded = expanded
	result.BatchesProcessed = processed
	if !req.DryRun {
		jobMetrics.AddInstancesExpanded(expanded)
	}
	for i := 0; i < processed; i++ {
		jobMetrics.IncBatchProcessed(obsmetrics.JobExpandRecurrences)
	}

	if jobErr != nil {
		jobMetrics.IncJobError(obsmetrics.JobExpandRecurrences, jobErr)
		log.Error("expansion run failed", zap.Error(jobErr))
		return result, jobErr
	}

	if req.AdvanceCursor && !req.DryRun {
		if err := e.cursorSvc.Advance(ctx, cursordomain.PurposeRecurringBilling, start, end); err != nil {
			outcome := obsmetrics.CursorOutcomeMismatch
			if !errors.Is(err, cursordomain.ErrCursorMismatch) {
				outcome = obsmetrics.CursorOutcomeSkipped
			}
			jobMetrics.IncCursorMove(cursordomain.PurposeRecurringBilling, outcome)
			jobMetrics.IncJobError(obsmetrics.JobExpandRecurrences, err)
			return result, fmt.Errorf("advance cursor: %w", err)
		}
		jobMetrics.IncCursorMove(cursordomain.PurposeRecurringBilling, obsmetrics.CursorOutcomeAdvanced)
	}

	jobMetrics.ObserveJobDuration(obsmetrics.JobExpandRecurrences, e.clock.Now().Sub(runStart))
	log.Info("expansion run finished",
		zap.Int("recurrences_in_scope", result.RecurrencesInScope),
		zap.Int("instances_expanded", result.InstancesExpanded),
	)
	return result, nil
}

// selectRecurrenceIDs finds every recurrence that may own an unexpanded
// instance inside the window. Instances are spaced exactly one year
// apart, so a watermark within a year of the window end means the
// recurrence has nothing left to expand here.
func (e *Engine) selectRecurrenceIDs(ctx context.Context, start, end time.Time) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	err := e.db.WithContext(ctx).Raw(
		`SELECT id FROM recurrences
		 WHERE event_time < recurrence_end_time
		   AND event_time < ?
		   AND recurrence_end_time > ?
		   AND recurrence_last_expansion < ?
		 ORDER BY id ASC`,
		end,
		start,
		end.AddDate(-1, 0, 0),
	).Scan(&ids).Error
	return ids, err
}

func (e *Engine) expandBatch(ctx context.Context, ids []snowflake.ID, start, end time.Time, dryRun bool) (int, error) {
	if dryRun {
		return e.countBatch(ctx, ids, start, end)
	}

	expanded := 0
	err := e.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var recurrences []billingdomain.Recurrence
		if err := tx.Where("id IN ?", ids).Find(&recurrences).Error; err != nil {
			return err
		}
		domains, err := e.loadDomains(tx, recurrences)
		if err != nil {
			return err
		}

		for _, rec := range recurrences {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			domain, ok := domains[rec.DomainID]
			if !ok {
				return fmt.Errorf("recurrence %s: domain %s missing", rec.ID, rec.DomainID)
			}
			count, err := e.expandRecurrence(ctx, tx, rec, domain, start, end)
			if err != nil {
				return fmt.Errorf("recurrence %s: %w", rec.ID, err)
			}
			expanded += count
		}
		return nil
	}, &sql.TxOptions{Isolation: e.cfg.TxIsolation})
	if err != nil {
		return 0, err
	}
	return expanded, nil
}

// countBatch runs selection and enumeration without writes.
func (e *Engine) countBatch(ctx context.Context, ids []snowflake.ID, start, end time.Time) (int, error) {
	var recurrences []billingdomain.Recurrence
	if err := e.db.WithContext(ctx).Where("id IN ?", ids).Find(&recurrences).Error; err != nil {
		return 0, err
	}
	total := 0
	for _, rec := range recurrences {
		instances := instancesInWindow(rec, start, end)
		existing, err := e.existingInstances(e.db.WithContext(ctx), rec.ID, instances)
		if err != nil {
			return 0, err
		}
		for _, t := range instances {
			if _, ok := existing[t.Unix()]; !ok {
				total++
			}
		}
	}
	return total, nil
}

func (e *Engine) expandRecurrence(ctx context.Context, tx *gorm.DB, rec billingdomain.Recurrence, domain registrydomain.Domain, start, end time.Time) (int, error) {
	instances := instancesInWindow(rec, start, end)
	if len(instances) == 0 {
		return 0, nil
	}

	existing, err := e.existingInstances(tx, rec.ID, instances)
	if err != nil {
		return 0, err
	}

	tld, ok := e.tldCfg.Get().Get(domain.TLD)
	if !ok {
		return 0, pricingdomain.ErrUnknownTLD
	}

	written := 0
	maxMaterialized := rec.RecurrenceLastExpansion
	for _, t := range instances {
		if _, ok := existing[t.Unix()]; ok {
			if t.After(maxMaterialized) {
				maxMaterialized = t
			}
			continue
		}

		fees, err := e.pricingSvc.RenewPrice(ctx, domain.TLD, domain.DomainName, t, 1, &rec, nil)
		if err != nil {
			return written, err
		}

		billingTime := t.Add(tld.AutoRenewGracePeriod)
		history := historydomain.DomainHistory{
			ID:               e.genID.Generate(),
			DomainID:         domain.ID,
			RegistrarID:      rec.RegistrarID,
			Type:             historydomain.HistoryTypeAutorenew,
			Reason:           "domain autorenewed by expansion",
			ModificationTime: t,
			ReportTLD:        ptr(domain.TLD),
			ReportField:      ptr(historydomain.ReportFieldNetRenews1Yr),
			ReportAmount:     ptr(1),
			ReportingTime:    ptr(billingTime),
		}
		if err := tx.Create(&history).Error; err != nil {
			return written, err
		}

		flags, err := withSyntheticFlag(rec.Flags)
		if err != nil {
			return written, err
		}
		event := billingdomain.BillingEvent{
			ID:                               e.genID.Generate(),
			DomainID:                         domain.ID,
			RegistrarID:                      rec.RegistrarID,
			Reason:                           billingdomain.ReasonRenew,
			EventTime:                        t,
			BillingTime:                      billingTime,
			CostMinor:                        fees.TotalMinor(),
			Currency:                         fees.Currency,
			PeriodYears:                      1,
			Flags:                            flags,
			CancellationMatchingRecurrenceID: &rec.ID,
			SyntheticCreationTime:            ptr(end),
		}
		if err := tx.Create(&event).Error; err != nil {
			return written, err
		}

		written++
		if t.After(maxMaterialized) {
			maxMaterialized = t
		}
	}

	if maxMaterialized.After(rec.RecurrenceLastExpansion) {
		// Guarded so a racing run that already advanced the watermark
		// forces this transaction to fail on the unique index instead
		// of silently rewinding progress.
		res := tx.Exec(
			`UPDATE recurrences
			 SET recurrence_last_expansion = ?, updated_at = ?
			 WHERE id = ? AND recurrence_last_expansion = ?`,
			maxMaterialized,
			e.clock.Now(),
			rec.ID,
			rec.RecurrenceLastExpansion,
		)
		if res.Error != nil {
			return written, res.Error
		}
		if res.RowsAffected == 0 {
			return written, fmt.Errorf("recurrence %s: watermark moved concurrently", rec.ID)
		}
	}
	return written, nil
}

func (e *Engine) loadDomains(tx *gorm.DB, recurrences []billingdomain.Recurrence) (map[snowflake.ID]registrydomain.Domain, error) {
	domainIDs := make([]snowflake.ID, 0, len(recurrences))
	for _, rec := range recurrences {
		domainIDs = append(domainIDs, rec.DomainID)
	}
	var domains []registrydomain.Domain
	if len(domainIDs) > 0 {
		if err := tx.Where("id IN ?", domainIDs).Find(&domains).Error; err != nil {
			return nil, err
		}
	}
	byID := make(map[snowflake.ID]registrydomain.Domain, len(domains))
	for _, d := range domains {
		byID[d.ID] = d
	}
	return byID, nil
}

// existingInstances returns the instance times already materialized for
// the recurrence, keyed by unix seconds.
func (e *Engine) existingInstances(tx *gorm.DB, recurrenceID snowflake.ID, instances []time.Time) (map[int64]struct{}, error) {
	if len(instances) == 0 {
		return map[int64]struct{}{}, nil
	}
	var times []time.Time
	err := tx.Model(&billingdomain.BillingEvent{}).
		Where("cancellation_matching_recurrence_id = ? AND event_time IN ?", recurrenceID, instances).
		Pluck("event_time", &times).Error
	if err != nil {
		return nil, err
	}
	existing := make(map[int64]struct{}, len(times))
	for _, t := range times {
		existing[t.Unix()] = struct{}{}
	}
	return existing, nil
}

// instancesInWindow enumerates the recurrence's yearly firing dates that
// fall inside [start, end), are not past the recurrence end, and sit
// strictly after the watermark. Dates come from adding whole years to
// the anchor, so a Feb 29 anchor lands on Mar 1 off leap years.
func instancesInWindow(rec billingdomain.Recurrence, start, end time.Time) []time.Time {
	upper := end
	if rec.RecurrenceEndTime.Before(upper) {
		upper = rec.RecurrenceEndTime
	}

	var out []time.Time
	for k := 0; ; k++ {
		t := rec.EventTime.AddDate(k, 0, 0)
		if !t.Before(upper) {
			break
		}
		if t.Before(start) || !t.After(rec.RecurrenceLastExpansion) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func withSyntheticFlag(flags datatypes.JSON) (datatypes.JSON, error) {
	var values []string
	if len(flags) > 0 {
		if err := json.Unmarshal(flags, &values); err != nil {
			return nil, fmt.Errorf("decode recurrence flags: %w", err)
		}
	}
	for _, v := range values {
		if v == billingdomain.FlagSynthetic {
			return flags, nil
		}
	}
	values = append(values, billingdomain.FlagSynthetic)
	out, err := json.Marshal(values)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(out), nil
}

func ptr[T any](v T) *T { return &v }
