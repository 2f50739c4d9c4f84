// Package metrics exposes prometheus instruments for the billing jobs.
package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	cursordomain "github.com/zonekeeper/registro/internal/cursor/domain"
	"github.com/zonekeeper/registro/pkg/db"
)

const (
	JobExpandRecurrences = "expand_recurrences"
	JobRestoreDomain     = "restore_domain"
)

const (
	JobReasonDeadlineExceeded     = "deadline_exceeded"
	JobReasonDBLockTimeout        = "db_lock_timeout"
	JobReasonSerializationFailure = "serialization_failure"
	JobReasonUniqueViolation      = "unique_violation"
	JobReasonCursorMismatch       = "cursor_mismatch"
	JobReasonUnknown              = "unknown"
)

const (
	CursorOutcomeAdvanced = "advanced"
	CursorOutcomeMismatch = "mismatch"
	CursorOutcomeSkipped  = "skipped"
)

// Config carries the constant labels stamped on every instrument.
type Config struct {
	ServiceName string
	Environment string
}

// ExpansionMetrics captures recurring-billing job health signals.
type ExpansionMetrics struct {
	jobRuns           *prometheus.CounterVec
	jobDuration       *prometheus.HistogramVec
	jobErrors         *prometheus.CounterVec
	batchesProcessed  *prometheus.CounterVec
	instancesExpanded prometheus.Counter
	recurrencesSeen   prometheus.Counter
	cursorMoves       *prometheus.CounterVec
}

var (
	expansionMetricsOnce sync.Once
	expansionMetrics     *ExpansionMetrics
)

// Expansion returns the singleton job metrics registry.
func Expansion() *ExpansionMetrics {
	return ExpansionWithConfig(Config{})
}

// ExpansionWithConfig returns the singleton job metrics registry using
// config labels.
func ExpansionWithConfig(cfg Config) *ExpansionMetrics {
	expansionMetricsOnce.Do(func() {
		expansionMetrics = newExpansionMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return expansionMetrics
}

// ResetExpansionMetricsForTest resets the metrics singleton for tests.
func ResetExpansionMetricsForTest() {
	expansionMetricsOnce = sync.Once{}
	expansionMetrics = nil
}

func newExpansionMetrics(registerer prometheus.Registerer, cfg Config) *ExpansionMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "registro"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "registro_billing_job_runs_total",
		Help:        "Billing job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "registro_billing_job_duration_seconds",
		Help:        "Billing job latency to protect expansion freshness.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120, 300, 600, 1800},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "registro_billing_job_errors_total",
		Help:        "Billing job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	batchesProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "registro_billing_batches_processed_total",
		Help:        "Recurrence batches processed to gauge expansion throughput.",
		ConstLabels: constLabels,
	}, []string{"job"})
	instancesExpanded := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "registro_billing_instances_expanded_total",
		Help:        "Synthetic billing events written by the expansion job.",
		ConstLabels: constLabels,
	})
	recurrencesSeen := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "registro_billing_recurrences_in_scope_total",
		Help:        "Recurrences selected for expansion across runs.",
		ConstLabels: constLabels,
	})
	cursorMoves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "registro_billing_cursor_moves_total",
		Help:        "Cursor advance attempts by purpose and outcome.",
		ConstLabels: constLabels,
	}, []string{"purpose", "outcome"})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobErrors,
		batchesProcessed,
		instancesExpanded,
		recurrencesSeen,
		cursorMoves,
	)

	return &ExpansionMetrics{
		jobRuns:           jobRuns,
		jobDuration:       jobDuration,
		jobErrors:         jobErrors,
		batchesProcessed:  batchesProcessed,
		instancesExpanded: instancesExpanded,
		recurrencesSeen:   recurrencesSeen,
		cursorMoves:       cursorMoves,
	}
}

// IncJobRun increments the run counter for a billing job.
func (m *ExpansionMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records billing job latency in seconds.
func (m *ExpansionMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobError increments the job error counter with classification.
func (m *ExpansionMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyJobReason(err)).Inc()
}

// IncBatchProcessed increments the batch counter for a job.
func (m *ExpansionMetrics) IncBatchProcessed(job string) {
	if m == nil || m.batchesProcessed == nil {
		return
	}
	m.batchesProcessed.WithLabelValues(job).Inc()
}

// AddInstancesExpanded adds to the synthetic event counter.
func (m *ExpansionMetrics) AddInstancesExpanded(count int) {
	if m == nil || count <= 0 || m.instancesExpanded == nil {
		return
	}
	m.instancesExpanded.Add(float64(count))
}

// AddRecurrencesInScope adds to the selected-recurrence counter.
func (m *ExpansionMetrics) AddRecurrencesInScope(count int) {
	if m == nil || count <= 0 || m.recurrencesSeen == nil {
		return
	}
	m.recurrencesSeen.Add(float64(count))
}

// IncCursorMove records a cursor advance attempt outcome.
func (m *ExpansionMetrics) IncCursorMove(purpose cursordomain.Purpose, outcome string) {
	if m == nil || m.cursorMoves == nil {
		return
	}
	m.cursorMoves.WithLabelValues(string(purpose), outcome).Inc()
}

// ClassifyJobReason maps job errors to low-cardinality reasons.
func ClassifyJobReason(err error) string {
	if err == nil {
		return JobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return JobReasonDeadlineExceeded
	}
	if errors.Is(err, cursordomain.ErrCursorMismatch) {
		return JobReasonCursorMismatch
	}
	if hasPGCode(err, "55P03") {
		return JobReasonDBLockTimeout
	}
	if db.IsSerializationErr(err) {
		return JobReasonSerializationFailure
	}
	if db.IsDuplicateKeyErr(err) {
		return JobReasonUniqueViolation
	}
	return JobReasonUnknown
}

// IsJobErrorRetryable reports whether the job error should be retried.
func IsJobErrorRetryable(err error) bool {
	switch ClassifyJobReason(err) {
	case JobReasonDBLockTimeout, JobReasonSerializationFailure:
		return true
	}
	return false
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
