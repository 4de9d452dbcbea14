package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/lastagent/lastagent/internal/config"
	"github.com/lastagent/lastagent/internal/decision"
	"github.com/lastagent/lastagent/internal/feedback"
	"github.com/lastagent/lastagent/internal/logger"
	"github.com/lastagent/lastagent/internal/tracer"
)

// app holds everything a subcommand needs after configuration is loaded.
type app struct {
	cfg      *config.Config
	registry *config.Registry
	log      *logger.MultiLogger
	closers  []func() error
}

// loadConfig reads --config when given, otherwise .lastagent/config.yaml in
// the working directory. A missing file yields defaults.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		cfg, err := config.LoadConfig(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		return cfg, nil
	}

	wd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}
	cfg, err := config.LoadConfigFromDir(wd)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newApp builds the shared pieces from an already merged and validated
// config. Callers must defer a.close().
func newApp(cmd *cobra.Command, cfg *config.Config) (*app, error) {
	registry, err := config.LoadRegistry(cfg.AgentsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load agent registry: %w", err)
	}

	a := &app{cfg: cfg, registry: registry}

	log, err := buildLogger(cmd.ErrOrStderr(), cfg.Logging)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, log.Close)

	shutdown, err := tracer.SetupWithWriter(cmd.Context(), cfg.Tracing, cmd.ErrOrStderr())
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to set up tracing: %w", err)
	}
	a.closers = append(a.closers, func() error { return shutdown(context.Background()) })

	return a, nil
}

func buildLogger(w io.Writer, cfg config.LoggingConfig) (*logger.MultiLogger, error) {
	console := logger.NewConsoleLogger(w, cfg.Level)
	if cfg.Dir == "" {
		return logger.NewMultiLogger(console), nil
	}
	file, err := logger.NewFileLoggerWithDirAndLevel(cfg.Dir, cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("failed to create file logger: %w", err)
	}
	return logger.NewMultiLogger(console, file), nil
}

// decisionLogger opens the decision log and replays the persisted file.
func (a *app) decisionLogger() *decision.Logger {
	dl := decision.NewLogger(decision.Options{
		Persist: a.cfg.Decisions.Persist,
		Path:    a.cfg.Decisions.Path,
	})
	if !a.cfg.Decisions.Persist {
		return dl
	}
	n, err := dl.Load()
	if err != nil {
		a.log.LogWarn(fmt.Sprintf("decision log %s: %v", dl.Path(), err))
	}
	a.log.LogDebug(fmt.Sprintf("loaded %d decisions from %s", n, dl.Path()))
	return dl
}

// feedbackCollector opens the configured feedback store.
func (a *app) feedbackCollector() (*feedback.Collector, error) {
	c, err := feedback.NewCollectorFromConfig(a.cfg.Feedback)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, c.Close)
	return c, nil
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && a.log != nil {
			a.log.LogWarn(err.Error())
		}
	}
	a.closers = nil
}

// setup loads, validates and wires config for the read-only subcommands.
func setup(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.MergeWithFlags(nil, nil, nil, &level, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return newApp(cmd, cfg)
}
