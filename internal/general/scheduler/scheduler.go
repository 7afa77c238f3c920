// Package scheduler runs every periodic task of an agent from a single tick,
// so cancellation is one call and tests can step time deterministically.
package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"pickup-market/internal/general/clock"
	"pickup-market/internal/general/logger"
)

const defaultResolution = 250 * time.Millisecond

var (
	ErrDuplicateTask = errors.New("scheduler: task already registered")
	ErrBadPeriod     = errors.New("scheduler: period must be positive")
)

// TaskFunc is one run of a periodic task. Errors are logged, never retried early.
type TaskFunc func(ctx context.Context) error

type task struct {
	name   string
	period time.Duration
	next   time.Time
	run    TaskFunc
}

// Scheduler fans a single tick out to registered tasks. Tasks run one after
// another on the ticking goroutine; a slow task delays the others.
type Scheduler struct {
	clock      clock.Clock
	logger     *logger.Logger
	resolution time.Duration

	mu    sync.Mutex
	tasks map[string]*task

	runMu sync.Mutex // serializes Tick
}

// New creates a scheduler. resolution <= 0 uses 250ms.
func New(clk clock.Clock, logger *logger.Logger, resolution time.Duration) *Scheduler {
	if clk == nil {
		clk = clock.Real{}
	}
	if resolution <= 0 {
		resolution = defaultResolution
	}
	return &Scheduler{
		clock:      clk,
		logger:     logger,
		resolution: resolution,
		tasks:      make(map[string]*task),
	}
}

// Register adds a task whose first run is one period from now.
// The returned func unregisters it and is safe to call more than once.
func (s *Scheduler) Register(name string, period time.Duration, run TaskFunc) (func(), error) {
	if period <= 0 {
		return nil, ErrBadPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[name]; ok {
		return nil, ErrDuplicateTask
	}
	t := &task{name: name, period: period, next: s.clock.Now().Add(period), run: run}
	s.tasks[name] = t

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			if cur, ok := s.tasks[name]; ok && cur == t {
				delete(s.tasks, name)
			}
		})
	}, nil
}

// Tick runs every task due at now. A task that fell several periods behind runs once.
func (s *Scheduler) Tick(ctx context.Context, now time.Time) {
	s.runMu.Lock()
	defer s.runMu.Unlock()

	for _, t := range s.due(now) {
		// the task may have been unregistered by an earlier task in this tick
		if !s.registered(t) {
			continue
		}
		if err := t.run(ctx); err != nil && s.logger != nil {
			s.logger.Error(ctx, "scheduled_task_failed", "Periodic task returned an error", err, map[string]any{
				"task": t.name,
			})
		}
	}
}

// Run ticks at the configured resolution until ctx is done.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.resolution)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			s.Tick(ctx, s.clock.Now())
		}
	}
}

// Len reports the number of registered tasks.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *Scheduler) due(now time.Time) []*task {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*task
	for _, t := range s.tasks {
		if now.Before(t.next) {
			continue
		}
		// skip missed periods instead of bursting
		for !now.Before(t.next) {
			t.next = t.next.Add(t.period)
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

func (s *Scheduler) registered(t *task) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.tasks[t.name]
	return ok && cur == t
}
