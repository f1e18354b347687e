// Package cli implements the rxdemo command.
package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/spf13/cobra"
	"go.opencensus.io/stats/view"

	"github.com/xinjiayu/rxcore"
	"github.com/xinjiayu/rxcore/internal/config"
)

// DefaultTimeout bounds a single pipeline run.
const DefaultTimeout = 10 * time.Second

// RootOptions holds the rxdemo flags.
type RootOptions struct {
	ConfigPath string
	LogLevel   string
	Metrics    bool
	Timeout    time.Duration
}

// NewRootCommand creates the rxdemo command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "rxdemo <pipeline>",
		Short: "Run a sample reactive pipeline",
		Long: "Runs one sample pipeline and prints every signal it delivers, one per line.\n\n" +
			"Pipelines: " + strings.Join(pipelineNames(), ", "),
		Args:          cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs:     pipelineNames(),
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, opts)
			if err != nil {
				return err
			}
			return run(cmd, cfg, opts.Timeout, pipelines[args[0]])
		},
	}

	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to a YAML config file")
	cmd.Flags().StringVar(&opts.LogLevel, "log-level", "", "log level (debug|info|warn|error|none)")
	cmd.Flags().BoolVar(&opts.Metrics, "metrics", false, "print scheduler metrics after the run")
	cmd.Flags().DurationVar(&opts.Timeout, "timeout", DefaultTimeout, "maximum time to wait for the pipeline")

	return cmd
}

// resolveConfig loads the config file, then applies flags that were set.
func resolveConfig(cmd *cobra.Command, opts *RootOptions) (config.Config, error) {
	cfg := config.Default()
	if opts.ConfigPath != "" {
		loaded, err := config.Load(opts.ConfigPath)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Metrics {
		cfg.Metrics = true
	}
	return cfg, cfg.Validate()
}

// newLoggers 创建写入命令错误输出的日志
func newLoggers(cmd *cobra.Command, cfg config.Config) (ldlog.Loggers, error) {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return ldlog.Loggers{}, err
	}
	loggers := ldlog.NewDefaultLoggers()
	loggers.SetBaseLogger(log.New(cmd.ErrOrStderr(), "", log.LstdFlags))
	loggers.SetMinLevel(level)
	loggers.SetPrefix("[rxdemo]")
	return loggers, nil
}

func run(cmd *cobra.Command, cfg config.Config, timeout time.Duration, p pipeline) error {
	loggers, err := newLoggers(cmd, cfg)
	if err != nil {
		return err
	}
	rxcore.SetDefaultLoggers(loggers)

	if cfg.Metrics {
		if err := view.Register(rxcore.SchedulerViews()...); err != nil {
			return fmt.Errorf("failed to register scheduler views: %w", err)
		}
		defer view.Unregister(rxcore.SchedulerViews()...)
	}

	env := newEnvironment(cfg, loggers)

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	items, streamErr := rxcore.BlockingCollect(ctx, p.build(env))
	closeErr := env.CloseContext(ctx)
	if ctx.Err() != nil && errors.Is(streamErr, ctx.Err()) {
		return fmt.Errorf("pipeline did not finish: %w", streamErr)
	}
	if closeErr != nil {
		return closeErr
	}

	if p.sorted {
		sort.Strings(items)
	}
	out := cmd.OutOrStdout()
	writeSignals(out, items, streamErr)
	if cfg.Metrics {
		return writeMetrics(out)
	}
	return nil
}
