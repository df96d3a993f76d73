// Package timing records per-stage durations of the frame pipeline.
package timing

import (
	"sort"
	"sync"
	"time"
)

// Tracker accumulates durations per stage name. The zero value is not
// usable; call NewTracker.
type Tracker struct {
	mu      sync.RWMutex
	timings map[string][]time.Duration
	enabled bool
	now     func() time.Time
}

func NewTracker() *Tracker {
	return &Tracker{
		timings: make(map[string][]time.Duration),
		enabled: true,
		now:     time.Now,
	}
}

// Start begins timing stage and returns the function that ends it.
func (t *Tracker) Start(stage string) func() time.Duration {
	t.mu.RLock()
	enabled := t.enabled
	t.mu.RUnlock()
	if !enabled {
		return func() time.Duration { return 0 }
	}

	start := t.now()
	return func() time.Duration {
		d := t.now().Sub(start)
		t.Record(stage, d)
		return d
	}
}

func (t *Tracker) Record(stage string, d time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.enabled {
		return
	}
	t.timings[stage] = append(t.timings[stage], d)
}

func (t *Tracker) Timings(stage string) []time.Duration {
	t.mu.RLock()
	defer t.mu.RUnlock()

	timings := t.timings[stage]
	if timings == nil {
		return nil
	}
	result := make([]time.Duration, len(timings))
	copy(result, timings)
	return result
}

// Stages lists every stage with at least one sample, sorted by name.
func (t *Tracker) Stages() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	stages := make([]string, 0, len(t.timings))
	for stage := range t.timings {
		stages = append(stages, stage)
	}
	sort.Strings(stages)
	return stages
}

func (t *Tracker) Average(stage string) time.Duration {
	timings := t.Timings(stage)
	if len(timings) == 0 {
		return 0
	}

	var total time.Duration
	for _, d := range timings {
		total += d
	}
	return total / time.Duration(len(timings))
}

// Averages maps every stage to its mean duration, formatted for logging.
func (t *Tracker) Averages() map[string]interface{} {
	out := make(map[string]interface{})
	for _, stage := range t.Stages() {
		out[stage] = t.Average(stage).String()
	}
	return out
}

func (t *Tracker) SetEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.enabled = enabled
}

// Reset drops samples for stage, or for every stage when stage is empty.
func (t *Tracker) Reset(stage string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if stage == "" {
		t.timings = make(map[string][]time.Duration)
	} else {
		delete(t.timings, stage)
	}
}
