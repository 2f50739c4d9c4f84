// Command expander runs a single expansion window and exits. It is the
// backfill and incident-recovery entrypoint; the steady-state loop lives
// in the main server process.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/zonekeeper/registro/internal/clock"
	"github.com/zonekeeper/registro/internal/config"
	"github.com/zonekeeper/registro/internal/cursor"
	"github.com/zonekeeper/registro/internal/expansion"
	"github.com/zonekeeper/registro/internal/logger"
	"github.com/zonekeeper/registro/internal/migration"
	"github.com/zonekeeper/registro/internal/premium"
	"github.com/zonekeeper/registro/internal/pricing"
	"github.com/zonekeeper/registro/internal/tldconfig"
	"github.com/zonekeeper/registro/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	var (
		startFlag  = flag.String("start", "", "window start, RFC3339 (default: current cursor)")
		endFlag    = flag.String("end", "", "window end, RFC3339 (default: now)")
		dryRun     = flag.Bool("dry-run", false, "count instances without writing")
		advance    = flag.Bool("advance-cursor", false, "advance the billing cursor on success")
		jobTimeout = flag.Duration("timeout", 30*time.Minute, "overall job timeout")
	)
	flag.Parse()

	var exitErr error
	app := fx.New(
		fx.NopLogger,

		config.Module,
		logger.Module,
		fx.Provide(func() (*snowflake.Node, error) { return snowflake.NewNode(1) }),
		db.Module,
		clock.Module,
		migration.Module,
		tldconfig.Module,

		premium.Module,
		pricing.Module,
		cursor.Module,
		fx.Provide(expansion.ProvideConfig),
		fx.Provide(expansion.New),

		fx.Invoke(func(lc fx.Lifecycle, sd fx.Shutdowner, engine *expansion.Engine, clk clock.Clock, log *zap.Logger) {
			lc.Append(fx.Hook{
				OnStart: func(context.Context) error {
					go func() {
						exitErr = runWindow(engine, clk, log, *startFlag, *endFlag, *dryRun, *advance, *jobTimeout)
						_ = sd.Shutdown()
					}()
					return nil
				},
			})
		}),
	)
	app.Run()

	if exitErr != nil {
		fmt.Fprintln(os.Stderr, exitErr)
		os.Exit(1)
	}
}

func runWindow(engine *expansion.Engine, clk clock.Clock, log *zap.Logger, start, end string, dryRun, advance bool, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if start == "" && end == "" {
		// No explicit window: behave like one tick of the steady-state loop.
		return engine.RunOnce(ctx)
	}

	startTime, err := time.Parse(time.RFC3339, start)
	if err != nil {
		return fmt.Errorf("bad -start: %w", err)
	}
	endTime := clk.Now()
	if end != "" {
		endTime, err = time.Parse(time.RFC3339, end)
		if err != nil {
			return fmt.Errorf("bad -end: %w", err)
		}
	}

	result, err := engine.Expand(ctx, expansion.Request{
		StartTime:     startTime,
		EndTime:       endTime,
		DryRun:        dryRun,
		AdvanceCursor: advance,
	})
	if err != nil {
		return err
	}

	log.Info("expansion window complete",
		zap.Time("start", startTime),
		zap.Time("end", endTime),
		zap.Bool("dry_run", dryRun),
		zap.Int("recurrences_in_scope", result.RecurrencesInScope),
		zap.Int("instances_expanded", result.InstancesExpanded),
		zap.Int("batches_processed", result.BatchesProcessed),
	)
	return nil
}
