// Command taskpool drives a thread pool or a scheduler from the command line.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vnykmshr/taskpool/pkg/metrics"
	"github.com/vnykmshr/taskpool/pkg/scheduling/scheduler"
	"github.com/vnykmshr/taskpool/pkg/scheduling/threadpool"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "taskpool",
		Short:        "Run load against a bounded thread pool",
		SilenceUsage: true,
	}
	root.PersistentFlags().String("config", "", "YAML config file")

	root.AddCommand(newRunCmd(), newCronCmd(), newVersionCmd())
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "taskpool %s\n", version)
			return err
		},
	}
}

func newRunCmd() *cobra.Command {
	cfg := newRunConfig()
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Push squaring tasks, join or detach them, and verify the results",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			if err := load(cfg, cmd.Flags(), configFile); err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			summary, runErr := serve(cmd.Context(), cfg, logger)
			if summary == nil {
				return runErr
			}
			if err := renderSummary(cmd.OutOrStdout(), summary, runErr); err != nil {
				return err
			}
			return runErr
		},
	}
	bindRunFlags(cmd.Flags(), cfg)
	return cmd
}

// serve runs the load and, when configured, a metrics endpoint alongside it.
func serve(ctx context.Context, cfg *RunConfig, logger *zap.Logger) (*Summary, error) {
	if cfg.MetricsAddr == "" {
		return runLoad(ctx, cfg, logger, nil)
	}

	reg := metrics.NewRegistryWithConfig(metrics.Config{Enabled: true})
	ln, err := net.Listen("tcp", cfg.MetricsAddr)
	if err != nil {
		return nil, fmt.Errorf("metrics listener: %w", err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	var summary *Summary
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("serving metrics", zap.String("addr", ln.Addr().String()))
		if err := srv.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
		var err error
		summary, err = runLoad(gctx, cfg, logger, reg)
		return err
	})
	return summary, g.Wait()
}

func newCronCmd() *cobra.Command {
	cfg := newCronConfig()
	cmd := &cobra.Command{
		Use:   "cron",
		Short: "Fire squaring tasks on a cron expression for a fixed duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			configFile, _ := cmd.Flags().GetString("config")
			if err := load(cfg, cmd.Flags(), configFile); err != nil {
				return err
			}
			if err := scheduler.ValidateCronExpression(cfg.Expr); err != nil {
				return err
			}
			logger, err := newLogger(cfg.LogLevel)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			fired, dropped, err := runCron(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			desc, err := scheduler.DescribeCron(cfg.Expr, time.Now(), 1)
			if err != nil {
				return err
			}
			return renderCron(cmd.OutOrStdout(), cfg.Expr, fired, dropped, desc.NextRuns)
		},
	}
	bindCronFlags(cmd.Flags(), cfg)
	return cmd
}

// runCron runs a scheduler for cfg.Duration and reports how many entries
// fired and how many the pool refused.
func runCron(ctx context.Context, cfg *CronConfig, logger *zap.Logger) (fired, dropped int64, err error) {
	pool, err := threadpool.NewWithConfig(threadpool.Config{
		MaxWorkers: cfg.Workers,
		Name:       "cron",
		Logger:     logger,
	})
	if err != nil {
		return 0, 0, err
	}

	var s scheduler.Scheduler
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if s != nil {
			if serr := s.Stop(drainCtx); serr != nil && err == nil {
				err = serr
			}
		}
		if werr := pool.WaitIdle(drainCtx); werr != nil && err == nil {
			err = werr
		}
		if derr := pool.Delete(); derr != nil && err == nil {
			err = derr
		}
	}()

	var firedN, droppedN atomic.Int64
	s, err = scheduler.NewWithConfig(scheduler.Config{
		Pool:   pool,
		Name:   "cron",
		Logger: logger,
		OnFire: func(string, *threadpool.Task) { firedN.Add(1) },
		OnDrop: func(string, error) { droppedN.Add(1) },
	})
	if err != nil {
		return 0, 0, err
	}

	var n atomic.Int64
	square := func(interface{}) interface{} {
		x := int(n.Add(1))
		return x * x
	}
	if err := s.ScheduleCron("cli", cfg.Expr, square, nil); err != nil {
		return 0, 0, err
	}
	if err := s.Start(); err != nil {
		return 0, 0, err
	}

	select {
	case <-time.After(cfg.Duration):
	case <-ctx.Done():
	}

	// Stop before reading the counters so no entry fires after them.
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.Stop(stopCtx); err != nil {
		return 0, 0, err
	}
	return firedN.Load(), droppedN.Load(), nil
}

func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = lvl
	cfg.Encoding = "console"
	return cfg.Build()
}
