// Package jobmgr runs named background jobs. A name can only be running once;
// starting it again while it runs fails with ErrRunning.
package jobmgr

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrRunning    = errors.New("job is already running")
	ErrNotRunning = errors.New("job is not running")
	ErrStopped    = errors.New("job manager is stopped")
)

// Event is a job lifecycle notification.
type Event struct {
	Name  string
	State string // running, done, error
	Err   error
}

// StatusReporter receives lifecycle events. It may be called from any goroutine.
type StatusReporter func(Event)

type job struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// Manager tracks running jobs. It is safe for concurrent use.
type Manager struct {
	Reporter StatusReporter

	mu      sync.Mutex
	jobs    map[string]*job
	stopped bool
	wg      sync.WaitGroup
}

// NewManager creates a Manager. reporter may be nil.
func NewManager(reporter StatusReporter) *Manager {
	return &Manager{
		jobs:     make(map[string]*job),
		Reporter: reporter,
	}
}

// StartAsync runs runner in its own goroutine under a context derived from
// parent. The job is forgotten once runner returns.
func (m *Manager) StartAsync(parent context.Context, name string, runner func(ctx context.Context) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stopped {
		return ErrStopped
	}
	if _, exists := m.jobs[name]; exists {
		return fmt.Errorf("%w: %s", ErrRunning, name)
	}

	ctx, cancel := context.WithCancel(parent)
	j := &job{cancel: cancel, done: make(chan struct{})}
	m.jobs[name] = j
	m.wg.Add(1)

	go func() {
		defer m.wg.Done()
		defer close(j.done)
		defer cancel()

		m.report(Event{Name: name, State: "running"})
		if err := runner(ctx); err != nil {
			m.report(Event{Name: name, State: "error", Err: err})
		} else {
			m.report(Event{Name: name, State: "done"})
		}

		m.mu.Lock()
		if m.jobs[name] == j {
			delete(m.jobs, name)
		}
		m.mu.Unlock()
	}()

	return nil
}

// Stop cancels a running job and waits for it to return.
func (m *Manager) Stop(name string) error {
	m.mu.Lock()
	j, ok := m.jobs[name]
	if ok {
		delete(m.jobs, name)
	}
	m.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrNotRunning, name)
	}
	j.cancel()
	<-j.done
	return nil
}

// StopAll cancels every job, waits for them and rejects new ones.
func (m *Manager) StopAll() {
	m.mu.Lock()
	m.stopped = true
	for _, j := range m.jobs {
		j.cancel()
	}
	m.mu.Unlock()

	m.wg.Wait()
}

// List returns the names of the running jobs, sorted.
func (m *Manager) List() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, len(m.jobs))
	for k := range m.jobs {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (m *Manager) report(e Event) {
	if m.Reporter != nil {
		m.Reporter(e)
	}
}
