package frame

import (
	"context"
	"io"
	"sync"
)

// SyntheticSource replays prepared frames in order, then returns io.EOF.
// Ownership of each frame passes to the caller of Next.
type SyntheticSource struct {
	mu     sync.Mutex
	frames []Frame
	next   int
}

func NewSyntheticSource(frames ...Frame) *SyntheticSource {
	return &SyntheticSource{frames: frames}
}

func (s *SyntheticSource) Next(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.frames) {
		return Frame{}, io.EOF
	}
	f := s.frames[s.next]
	s.frames[s.next] = Frame{}
	s.next++
	if f.Seq == 0 {
		f.Seq = uint64(s.next)
	}
	return f, nil
}

// Close releases frames that were never handed out.
func (s *SyntheticSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := s.next; i < len(s.frames); i++ {
		s.frames[i].Close()
	}
	s.frames = nil
	return nil
}
