package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"gap-navigator/internal/frame"
	"gap-navigator/internal/logger"
	"gap-navigator/internal/opening"
	"gap-navigator/internal/projection"

	"github.com/google/uuid"
)

// Sink receives every decided outcome. An error from Emit stops the run.
type Sink interface {
	Emit(ctx context.Context, o Outcome) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, o Outcome) error

func (f SinkFunc) Emit(ctx context.Context, o Outcome) error {
	return f(ctx, o)
}

// Stats counts what a run did. Skipped is keyed by SkipReason.
type Stats struct {
	Frames       int            `json:"frames"`
	Decided      int            `json:"decided"`
	Decisions    map[string]int `json:"decisions"`
	Skipped      map[string]int `json:"skipped"`
	TotalLatency time.Duration  `json:"total_latency_ns"`
	MaxLatency   time.Duration  `json:"max_latency_ns"`
}

// MeanLatency is the average pass duration over decided frames.
func (s Stats) MeanLatency() time.Duration {
	if s.Decided == 0 {
		return 0
	}
	return s.TotalLatency / time.Duration(s.Decided)
}

func (s Stats) clone() Stats {
	out := s
	out.Decisions = make(map[string]int, len(s.Decisions))
	for k, v := range s.Decisions {
		out.Decisions[k] = v
	}
	out.Skipped = make(map[string]int, len(s.Skipped))
	for k, v := range s.Skipped {
		out.Skipped[k] = v
	}
	return out
}

// SkipReason names the per-frame error class of err.
func SkipReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingFrame):
		return "missing_frame"
	case errors.Is(err, opening.ErrNoOpening):
		return "no_opening"
	case errors.Is(err, projection.ErrInvalidDepth):
		return "invalid_depth"
	case errors.Is(err, projection.ErrNonPlanar):
		return "non_planar"
	case errors.Is(err, projection.ErrOutsideGate):
		return "outside_gate"
	default:
		return "other"
	}
}

// Runner pulls frames from a source, one at a time, until the source ends or
// the context is cancelled.
type Runner struct {
	pipeline *Pipeline
	logger   logger.Logger
	runID    string

	mu    sync.Mutex
	stats Stats
}

// NewRunner stamps every outcome with runID, or with a fresh UUID when runID
// is empty.
func NewRunner(p *Pipeline, log logger.Logger, runID string) *Runner {
	if log == nil {
		log = logger.Nop()
	}
	if runID == "" {
		runID = uuid.NewString()
	}
	return &Runner{
		pipeline: p,
		logger:   log,
		runID:    runID,
		stats: Stats{
			Decisions: make(map[string]int),
			Skipped:   make(map[string]int),
		},
	}
}

func (r *Runner) RunID() string {
	return r.runID
}

// Stats returns a snapshot of the counters.
func (r *Runner) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stats.clone()
}

// Run processes frames until src returns io.EOF or ctx is done, both of which
// return nil. A source or sink failure stops the run and is returned.
func (r *Runner) Run(ctx context.Context, src frame.Source, sink Sink) error {
	r.logger.Info("Runner", "run started", map[string]interface{}{
		"run_id":   r.runID,
		"strategy": r.pipeline.Strategy().String(),
		"policy":   r.pipeline.Policy().String(),
	})

	for {
		if ctx.Err() != nil {
			r.finish("cancelled")
			return nil
		}

		f, err := src.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				r.finish("source exhausted")
				return nil
			case ctx.Err() != nil:
				r.finish("cancelled")
				return nil
			default:
				return fmt.Errorf("frame source failed: %w", err)
			}
		}

		err = r.cycle(ctx, &f, sink)
		f.Close()
		if err != nil {
			return err
		}
	}
}

func (r *Runner) cycle(ctx context.Context, f *frame.Frame, sink Sink) error {
	r.mu.Lock()
	r.stats.Frames++
	r.mu.Unlock()

	out, err := r.pipeline.Process(ctx, f)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		if !Skippable(err) {
			return fmt.Errorf("pipeline pass failed: %w", err)
		}
		reason := SkipReason(err)
		r.mu.Lock()
		r.stats.Skipped[reason]++
		r.mu.Unlock()
		r.logger.Debug("Runner", "frame skipped", map[string]interface{}{
			"seq":    f.Seq,
			"reason": reason,
			"detail": err.Error(),
		})
		return nil
	}

	out.RunID = r.runID
	r.mu.Lock()
	r.stats.Decided++
	r.stats.Decisions[out.Decision.String()]++
	r.stats.TotalLatency += out.Latency
	if out.Latency > r.stats.MaxLatency {
		r.stats.MaxLatency = out.Latency
	}
	r.mu.Unlock()

	if err := sink.Emit(ctx, out); err != nil {
		return fmt.Errorf("sink failed for frame %d: %w", out.Seq, err)
	}
	return nil
}

func (r *Runner) finish(reason string) {
	s := r.Stats()
	r.logger.Info("Runner", "run finished", map[string]interface{}{
		"run_id":       r.runID,
		"reason":       reason,
		"frames":       s.Frames,
		"decided":      s.Decided,
		"skipped":      s.Skipped,
		"mean_latency": s.MeanLatency().String(),
		"stage_mean":   r.pipeline.Timings().Averages(),
	})
}
