// Package app wires configuration, logging, the frame source, the pipeline
// and the sinks into runnable commands.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"gap-navigator/internal/config"
	"gap-navigator/internal/frame"
	"gap-navigator/internal/logger"
	"gap-navigator/internal/opencv/memory"
	"gap-navigator/internal/pipeline"
	"gap-navigator/internal/shutdown"
	"gap-navigator/internal/sink"

	"github.com/google/uuid"
)

const (
	AppName    = "gap-navigator"
	AppVersion = "1.0.0"
)

// Overrides are command-line values applied on top of the loaded config.
type Overrides struct {
	Strategy   string
	Policy     string
	SourceDir  string
	JSONLines  bool
	UDPAddr    string
	OverlayDir string
	LogLevel   string
	JSONLogs   bool
}

// LoadConfig reads path (or the defaults when path is empty), applies o and
// validates the result.
func LoadConfig(path string, o Overrides) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		loaded, err := config.Load(path)
		if err != nil {
			return cfg, err
		}
		cfg = loaded
	}

	if o.Strategy != "" {
		cfg.Segmentation.Strategy = o.Strategy
	}
	if o.Policy != "" {
		cfg.Opening.Policy = o.Policy
	}
	if o.SourceDir != "" {
		cfg.Source.Dir = o.SourceDir
	}
	if o.JSONLines {
		cfg.Sink.JSONLines = true
	}
	if o.UDPAddr != "" {
		cfg.Sink.UDPAddr = o.UDPAddr
	}
	if o.OverlayDir != "" {
		cfg.Sink.OverlayDir = o.OverlayDir
	}
	if o.LogLevel != "" {
		cfg.Log.Level = o.LogLevel
	}
	if o.JSONLogs {
		cfg.Log.JSON = true
	}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Application owns everything one command needs.
type Application struct {
	cfg      config.Config
	runID    string
	logger   *logger.ZerologAdapter
	memory   *memory.Manager
	shutdown *shutdown.Manager
	out      io.Writer
}

// New builds an application that writes logs to logOut and outcome streams to
// out.
func New(ctx context.Context, cfg config.Config, out, logOut io.Writer) (*Application, error) {
	level, err := logger.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, err
	}

	var base *logger.ZerologAdapter
	switch {
	case cfg.Log.JSON:
		base = logger.NewZerolog(logOut, level)
	case logOut == os.Stderr:
		base = logger.NewConsoleLogger(level)
	default:
		base = logger.NewZerolog(logOut, level)
	}

	runID := uuid.NewString()
	log := base.With("run_id", runID)

	return &Application{
		cfg:      cfg,
		runID:    runID,
		logger:   log,
		memory:   memory.NewManager(),
		shutdown: shutdown.NewManager(ctx, log),
		out:      out,
	}, nil
}

func (a *Application) Config() config.Config { return a.cfg }

func (a *Application) Logger() logger.Logger { return a.logger }

// Context is cancelled on SIGINT/SIGTERM once Listen has been called.
func (a *Application) Context() context.Context { return a.shutdown.Context() }

// Listen installs the signal handler.
func (a *Application) Listen() func() { return a.shutdown.Listen() }

// Close shuts down every registered resource.
func (a *Application) Close() error {
	err := a.shutdown.Shutdown()
	s := a.memory.Stats()
	a.logger.Debug("Application", "mat accounting", map[string]interface{}{
		"scopes":         s.Scopes,
		"open_scopes":    s.OpenScopes,
		"mats_released":  s.MatsReleased,
		"peak_per_frame": s.PeakPerScope,
	})
	return err
}

// OpenSource opens the recorded frame directory from the config and registers
// it for shutdown.
func (a *Application) OpenSource() (frame.Source, error) {
	if a.cfg.Source.Dir == "" {
		return nil, fmt.Errorf("no frame source: set source.dir or --source")
	}
	src, err := frame.NewDirSource(a.cfg.Source.Dir, a.cfg.Source.DepthScale)
	if err != nil {
		return nil, err
	}
	if src.Len() == 0 {
		return nil, fmt.Errorf("no frames found in %s", a.cfg.Source.Dir)
	}
	a.shutdown.Register("source", src)
	a.logger.Info("Application", "frame source opened", map[string]interface{}{
		"dir":    a.cfg.Source.Dir,
		"frames": src.Len(),
	})
	return src, nil
}

// Sinks builds the configured sinks. The log sink is always present.
func (a *Application) Sinks() (sink.Multi, error) {
	sinks := sink.Multi{sink.NewLog(a.logger)}
	if a.cfg.Sink.JSONLines {
		sinks = append(sinks, sink.NewJSONLines(a.out))
	}
	if a.cfg.Sink.UDPAddr != "" {
		udp, err := sink.NewUDP(a.cfg.Sink.UDPAddr)
		if err != nil {
			return nil, err
		}
		a.shutdown.Register("udp sink", udp)
		sinks = append(sinks, udp)
	}
	if a.cfg.Sink.OverlayDir != "" {
		overlay, err := sink.NewOverlay(a.cfg.Sink.OverlayDir)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, overlay)
	}

	names := make([]string, 0, len(sinks))
	for _, s := range sinks {
		names = append(names, fmt.Sprintf("%T", s))
	}
	a.logger.Debug("Application", "sinks configured", map[string]interface{}{
		"sinks": strings.Join(names, ","),
	})
	return sinks, nil
}

// Run drives the configured pipeline over src until it is exhausted or the
// application context is cancelled.
func (a *Application) Run(src frame.Source, out pipeline.Sink) (pipeline.Stats, error) {
	p, err := pipeline.New(a.cfg, a.memory, a.logger)
	if err != nil {
		return pipeline.Stats{}, err
	}
	runner := pipeline.NewRunner(p, a.logger, a.runID)
	err = runner.Run(a.Context(), src, out)
	return runner.Stats(), err
}
