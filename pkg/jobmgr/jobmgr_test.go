package jobmgr

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) report(e Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) states(name string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, e := range r.events {
		if e.Name == name {
			out = append(out, e.State)
		}
	}
	return out
}

func blockUntilCancelled(ctx context.Context) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestStartAsyncRejectsDuplicateName(t *testing.T) {
	m := NewManager(nil)
	defer m.StopAll()

	require.NoError(t, m.StartAsync(context.Background(), "sync:1", blockUntilCancelled))
	err := m.StartAsync(context.Background(), "sync:1", blockUntilCancelled)
	assert.ErrorIs(t, err, ErrRunning)

	require.NoError(t, m.StartAsync(context.Background(), "sync:2", blockUntilCancelled))
	assert.Equal(t, []string{"sync:1", "sync:2"}, m.List())
}

func TestJobIsForgottenAfterCompletion(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.report)

	require.NoError(t, m.StartAsync(context.Background(), "a", func(context.Context) error { return nil }))
	require.Eventually(t, func() bool { return len(m.List()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"running", "done"}, rec.states("a"))

	// same name is free again
	require.NoError(t, m.StartAsync(context.Background(), "a", func(context.Context) error { return errors.New("boom") }))
	m.StopAll()
	assert.Equal(t, []string{"running", "done", "running", "error"}, rec.states("a"))
}

func TestStopCancelsAndWaits(t *testing.T) {
	m := NewManager(nil)
	returned := make(chan struct{})

	require.NoError(t, m.StartAsync(context.Background(), "a", func(ctx context.Context) error {
		defer close(returned)
		return blockUntilCancelled(ctx)
	}))
	require.NoError(t, m.Stop("a"))

	select {
	case <-returned:
	default:
		t.Fatal("Stop returned before the job did")
	}
	assert.ErrorIs(t, m.Stop("a"), ErrNotRunning)
}

func TestStopAllRejectsNewJobs(t *testing.T) {
	m := NewManager(nil)
	require.NoError(t, m.StartAsync(context.Background(), "a", blockUntilCancelled))

	m.StopAll()
	assert.Empty(t, m.List())
	assert.ErrorIs(t, m.StartAsync(context.Background(), "b", blockUntilCancelled), ErrStopped)
}

func TestParentCancellationStopsJob(t *testing.T) {
	rec := &recorder{}
	m := NewManager(rec.report)
	ctx, cancel := context.WithCancel(context.Background())

	require.NoError(t, m.StartAsync(ctx, "a", blockUntilCancelled))
	cancel()

	require.Eventually(t, func() bool { return len(m.List()) == 0 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"running", "error"}, rec.states("a"))
}
