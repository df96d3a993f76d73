package timing

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartRecordsElapsed(t *testing.T) {
	tr := NewTracker()
	clock := time.Unix(0, 0)
	tr.now = func() time.Time { return clock }

	done := tr.Start("segment")
	clock = clock.Add(3 * time.Millisecond)
	assert.Equal(t, 3*time.Millisecond, done())

	done = tr.Start("segment")
	clock = clock.Add(5 * time.Millisecond)
	done()

	assert.Equal(t, []time.Duration{3 * time.Millisecond, 5 * time.Millisecond}, tr.Timings("segment"))
	assert.Equal(t, 4*time.Millisecond, tr.Average("segment"))
	assert.Equal(t, map[string]interface{}{"segment": "4ms"}, tr.Averages())
}

func TestStagesAndReset(t *testing.T) {
	tr := NewTracker()
	tr.Record("measure", time.Millisecond)
	tr.Record("extract", time.Millisecond)
	tr.Record("decide", time.Millisecond)
	assert.Equal(t, []string{"decide", "extract", "measure"}, tr.Stages())

	tr.Reset("extract")
	assert.Nil(t, tr.Timings("extract"))
	assert.Zero(t, tr.Average("extract"))

	tr.Reset("")
	assert.Empty(t, tr.Stages())
}

func TestDisabledTrackerRecordsNothing(t *testing.T) {
	tr := NewTracker()
	tr.SetEnabled(false)
	assert.Zero(t, tr.Start("segment")())
	tr.Record("segment", time.Second)
	assert.Empty(t, tr.Stages())
}

func TestConcurrentRecord(t *testing.T) {
	tr := NewTracker()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				tr.Record("roi", time.Microsecond)
			}
		}()
	}
	wg.Wait()
	require.Len(t, tr.Timings("roi"), 800)
}
