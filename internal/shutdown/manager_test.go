package shutdown

import (
	"context"
	"errors"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func TestShutdownClosesInReverseOrder(t *testing.T) {
	m := NewManager(context.Background(), nil)
	var order []string
	m.Register("source", closerFunc(func() error { order = append(order, "source"); return nil }))
	m.Register("sink", closerFunc(func() error { order = append(order, "sink"); return nil }))

	require.NoError(t, m.Shutdown())
	assert.Equal(t, []string{"sink", "source"}, order)
	assert.Error(t, m.Context().Err())

	select {
	case <-m.Done():
	default:
		t.Fatal("done channel not closed")
	}

	require.NoError(t, m.Shutdown())
	assert.Len(t, order, 2, "second shutdown is a no-op")
}

func TestShutdownJoinsErrors(t *testing.T) {
	m := NewManager(context.Background(), nil)
	boom := errors.New("boom")
	m.Register("a", closerFunc(func() error { return boom }))
	m.Register("b", closerFunc(func() error { return nil }))

	err := m.Shutdown()
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "a: boom")
	assert.ErrorIs(t, m.Shutdown(), boom)
}

func TestShutdownTimeout(t *testing.T) {
	m := NewManager(context.Background(), nil)
	m.SetTimeout(20 * time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	m.Register("stuck", closerFunc(func() error { <-release; return nil }))

	err := m.Shutdown()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timed out")
}

func TestListenCancelsOnSignal(t *testing.T) {
	m := NewManager(context.Background(), nil)
	stop := m.Listen()
	defer stop()

	require.NoError(t, syscall.Kill(syscall.Getpid(), syscall.SIGTERM))

	select {
	case <-m.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled by SIGTERM")
	}
}
