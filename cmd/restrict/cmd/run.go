package cmd

import (
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/psantana5/restrict/internal/cgroups"
	"github.com/psantana5/restrict/internal/config"
	"github.com/psantana5/restrict/internal/executor"
	"github.com/psantana5/restrict/internal/logging"
	"github.com/psantana5/restrict/internal/report"
	"github.com/psantana5/restrict/internal/restrict"
)

func runRestricted(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(v)
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat, Output: os.Stderr})
	if err != nil {
		return err
	}
	defer logger.Sync()

	group := cfg.Group
	if group == "" {
		group = restrict.DefaultScopeID(os.Getpid())
	}
	req, err := restrict.NewRequest(cfg.Shell, strings.Join(args, " "), group, cfg.Limits(), cfg.Debug)
	if err != nil {
		return err
	}

	var host *report.Host
	if h, err := report.ProbeHost(); err != nil {
		logger.Debug("host capacity unknown", zap.Error(err))
	} else {
		host = &h
		if cfg.MemoryMax != nil && h.ExceedsMemory(*cfg.MemoryMax) {
			logger.Warn("memory ceiling exceeds host memory",
				zap.Uint64("ceiling", *cfg.MemoryMax),
				zap.Uint64("host", h.MemoryTotal))
		}
	}

	metrics := report.NewMetrics()
	opts := []restrict.Option{
		restrict.WithLogger(logger),
		restrict.WithMetrics(metrics),
		restrict.WithSignalHold(),
	}
	if cfg.Debug {
		opts = append(opts, restrict.WithSummary(os.Stderr, host))
	}

	runner := restrict.NewRunner(
		cgroups.New(cgroups.WithRoot(cfg.CgroupRoot), cgroups.WithLogger(logger)),
		executor.New(logger),
		opts...,
	)
	result, runErr := runner.Run(cmd.Context(), req)

	if result != nil && cfg.Report != "" {
		if err := report.Encode(os.Stderr, result, cfg.Report); err != nil {
			logger.Warn("writing run report", zap.Error(err))
		}
	}
	if cfg.MetricsFile != "" {
		if err := report.WriteTextfile(cfg.MetricsFile, metrics.Gatherer()); err != nil {
			logger.Warn("writing metrics file", zap.String("path", cfg.MetricsFile), zap.Error(err))
		}
	}

	if runErr != nil {
		return runErr
	}
	status = statusOf(result)
	return nil
}
