// Package sink delivers pipeline outcomes to logs, files and the network.
package sink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"gap-navigator/internal/logger"
	"gap-navigator/internal/pipeline"
)

// Log writes one structured log line per outcome.
type Log struct {
	logger logger.Logger
}

func NewLog(log logger.Logger) *Log {
	return &Log{logger: log}
}

func (s *Log) Emit(_ context.Context, o pipeline.Outcome) error {
	fields := map[string]interface{}{
		"seq":      o.Seq,
		"decision": o.Decision.String(),
		"passable": o.Passable,
		"box":      fmt.Sprintf("%d,%d %dx%d", o.Box.X, o.Box.Y, o.Box.W, o.Box.H),
		"dx":       o.DX,
		"dy":       o.DY,
	}
	if o.Fallback {
		fields["fallback"] = true
	}
	if m := o.Measurement; m != nil {
		fields["gap_m"] = fmt.Sprintf("%.3fx%.3f", m.WidthM, m.HeightM)
		fields["depth_m"] = m.DepthM
	}
	s.logger.Info("Decision", "frame decided", fields)
	return nil
}

// JSONLines writes each outcome as one JSON object per line.
type JSONLines struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func NewJSONLines(w io.Writer) *JSONLines {
	return &JSONLines{enc: json.NewEncoder(w)}
}

func (s *JSONLines) Emit(_ context.Context, o pipeline.Outcome) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(o); err != nil {
		return fmt.Errorf("failed to encode outcome: %w", err)
	}
	return nil
}

// Multi fans an outcome out to every sink in order and stops at the first
// error.
type Multi []pipeline.Sink

func (m Multi) Emit(ctx context.Context, o pipeline.Outcome) error {
	for _, s := range m {
		if err := s.Emit(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// Close closes every sink that holds a resource and joins their errors.
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if c, ok := s.(io.Closer); ok {
			if err := c.Close(); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}
