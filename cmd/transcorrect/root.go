package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/MrWong99/transcorrect/internal/config"
	"github.com/MrWong99/transcorrect/internal/health"
	"github.com/MrWong99/transcorrect/internal/observe"
)

const defaultConfigPath = "transcorrect.yaml"

// cli carries the state shared by all subcommands of one invocation.
type cli struct {
	registry *config.Registry

	configPath  string
	logLevel    string
	logFormat   string
	metricsAddr string

	cfg       *config.Config
	level     *slog.LevelVar
	telemetry *observe.Providers
	metrics   *observe.Metrics
	metricSrv *http.Server
	health    *health.Handler
}

func newRootCmd(reg *config.Registry) *cobra.Command {
	c := &cli{registry: reg, level: new(slog.LevelVar)}

	root := &cobra.Command{
		Use:   "transcorrect",
		Short: "Correct ASR transcripts with an LLM while keeping word timings",
		Long: `transcorrect splits a structured transcript into blocks of speaker turns,
has an LLM correct each block, validates and persists every answer, and maps
the corrected words back onto the original segments and their timings.

Interrupted runs resume: blocks already stored as completed are not sent again.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return c.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			return c.teardown(cmd.Context())
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&c.configPath, "config", "c", "", "path to the YAML configuration file (default "+defaultConfigPath+" when present)")
	pf.StringVar(&c.logLevel, "log-level", "", "override server.log_level: debug, info, warn, error")
	pf.StringVar(&c.logFormat, "log-format", "", "override server.log_format: text, json")
	pf.StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics, /healthz and /readyz on this address, e.g. :9090")

	root.AddCommand(
		newCorrectCmd(c),
		newApplyCmd(c),
		newStatusCmd(c),
		newStatsCmd(c),
	)
	return root
}

// setup loads the configuration and installs logging and telemetry.
func (c *cli) setup(cmd *cobra.Command) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	cfg.ApplyEnv(os.LookupEnv)
	if c.logLevel != "" {
		cfg.Server.LogLevel = config.LogLevel(c.logLevel)
	}
	if c.logFormat != "" {
		cfg.Server.LogFormat = config.LogFormat(c.logFormat)
	}
	if c.metricsAddr != "" {
		cfg.Server.MetricsAddr = c.metricsAddr
	}
	if err := config.Validate(cfg); err != nil {
		return err
	}
	c.cfg = cfg

	c.level.Set(slogLevel(cfg.Server.LogLevel))
	slog.SetDefault(newLogger(cmd.ErrOrStderr(), cfg.Server.LogFormat, c.level))

	runID := uuid.NewString()
	cmd.SetContext(observe.WithRunID(cmd.Context(), runID))

	c.telemetry, err = observe.InitProvider(cmd.Context(), observe.ProviderConfig{ServiceVersion: version})
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	c.metrics, err = observe.NewMetrics(otel.GetMeterProvider())
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	if cfg.Server.MetricsAddr != "" {
		if err := c.serveMetrics(cfg.Server.MetricsAddr); err != nil {
			return err
		}
	}

	observe.Logger(cmd.Context()).Debug("transcorrect starting",
		"command", cmd.Name(),
		"config", c.configPath,
		"llm", cfg.Providers.LLM.Name,
		"model", cfg.Providers.LLM.Model,
	)
	return nil
}

// loadConfig reads --config, or the default file when it exists. Without
// either the zero config is used.
func (c *cli) loadConfig() (*config.Config, error) {
	path := c.configPath
	if path == "" {
		if _, err := os.Stat(defaultConfigPath); errors.Is(err, fs.ErrNotExist) {
			return &config.Config{}, nil
		}
		path = defaultConfigPath
		c.configPath = path
	}
	cfg, err := config.Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("config file %q not found", path)
	}
	return cfg, err
}

func (c *cli) serveMetrics(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics listener: %w", err)
	}
	c.health = health.New()
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", observe.Middleware(c.metrics)(c.telemetry.MetricsHandler()))
	c.health.Register(mux)
	c.metricSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := c.metricSrv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server stopped", "err", err)
		}
	}()
	slog.Info("serving metrics", "addr", ln.Addr().String())
	return nil
}

// addReadiness registers readiness checks when the metrics server runs.
func (c *cli) addReadiness(checkers ...health.Checker) {
	if c.health != nil {
		c.health.Add(checkers...)
	}
}

func (c *cli) teardown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	var errs []error
	if c.metricSrv != nil {
		errs = append(errs, c.metricSrv.Shutdown(shutdownCtx))
	}
	if c.telemetry != nil {
		errs = append(errs, c.telemetry.Shutdown(shutdownCtx))
	}
	return errors.Join(errs...)
}

// watchConfig reloads the log level while a long command runs. Other
// changes are reported and ignored until the next run. The returned function
// stops the watcher.
func (c *cli) watchConfig() func() {
	if c.configPath == "" || c.logLevel != "" {
		return func() {}
	}
	w, err := config.NewWatcher(c.configPath, func(old, new *config.Config) {
		d := config.Diff(old, new)
		if d.LogLevelChanged {
			c.level.Set(slogLevel(d.NewLogLevel))
			slog.Info("log level changed", "level", string(d.NewLogLevel))
		}
		if len(d.RestartRequired) > 0 {
			slog.Warn("configuration changed; takes effect on the next run", "sections", strings.Join(d.RestartRequired, ","))
		}
	})
	if err != nil {
		slog.Warn("not watching configuration", "err", err)
		return func() {}
	}
	return w.Stop
}

func slogLevel(l config.LogLevel) slog.Level {
	switch l {
	case config.LogDebug:
		return slog.LevelDebug
	case config.LogWarn:
		return slog.LevelWarn
	case config.LogError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func newLogger(w io.Writer, format config.LogFormat, level slog.Leveler) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if format == config.LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
