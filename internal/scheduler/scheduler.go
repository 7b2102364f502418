// Package scheduler runs configured pipeline lists on cron expressions.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/nickelblock/forecast-maps/internal/config"
	"github.com/nickelblock/forecast-maps/internal/logging"
	"github.com/nickelblock/forecast-maps/internal/metrics"
)

var (
	// ErrUnknownJob is returned when a job name is not configured.
	ErrUnknownJob = errors.New("unknown schedule job")
	// ErrJobRunning is returned when a job is triggered while a run is in flight.
	ErrJobRunning = errors.New("schedule job already running")
	// ErrNotRunning is reported by Ready before Start and after Stop.
	ErrNotRunning = errors.New("scheduler not running")
)

// Runner executes one named pipeline, e.g. "download:spc".
type Runner interface {
	RunPipeline(ctx context.Context, pipeline string) error
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, pipeline string) error

// RunPipeline calls f.
func (f RunnerFunc) RunPipeline(ctx context.Context, pipeline string) error {
	return f(ctx, pipeline)
}

// JobInfo describes a configured job and its last outcome.
type JobInfo struct {
	Name      string    `json:"name"`
	Cron      string    `json:"cron"`
	Pipelines []string  `json:"pipelines"`
	NextRun   time.Time `json:"next_run,omitempty"`
	LastRun   time.Time `json:"last_run,omitempty"`
	LastError string    `json:"last_error,omitempty"`
	Running   bool      `json:"running"`
}

type entry struct {
	cfg  config.ScheduleJob
	job  *gocron.Job
	lock sync.Mutex

	mu      sync.Mutex
	lastRun time.Time
	lastErr error
	running bool
}

// Scheduler wraps a UTC gocron scheduler in singleton mode.
type Scheduler struct {
	cron   *gocron.Scheduler
	runner Runner
	clock  clockwork.Clock
	logger *zap.Logger

	entries map[string]*entry

	mu      sync.Mutex
	baseCtx context.Context
	cancel  context.CancelFunc
	started bool
}

// New registers every job. Jobs without a name are named after their
// cron expression. A nil clock uses the real one.
func New(jobs []config.ScheduleJob, runner Runner, clock clockwork.Clock, logger *zap.Logger) (*Scheduler, error) {
	if runner == nil {
		return nil, errors.New("scheduler requires a pipeline runner")
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	cron := gocron.NewScheduler(time.UTC)
	cron.SingletonModeAll()

	s := &Scheduler{
		cron:    cron,
		runner:  runner,
		clock:   clock,
		logger:  logging.OrNop(logger),
		entries: make(map[string]*entry, len(jobs)),
		baseCtx: context.Background(),
	}
	for _, jc := range jobs {
		if jc.Name == "" {
			jc.Name = jc.Cron
		}
		if _, dup := s.entries[jc.Name]; dup {
			return nil, fmt.Errorf("duplicate schedule job %q", jc.Name)
		}
		e := &entry{cfg: jc}
		job, err := cron.Cron(jc.Cron).Tag(jc.Name).Do(s.scheduled, e)
		if err != nil {
			return nil, fmt.Errorf("schedule job %q: %w", jc.Name, err)
		}
		e.job = job
		s.entries[jc.Name] = e
	}
	return s, nil
}

// Start begins firing jobs. Runs use a context derived from ctx, which is
// canceled by Stop.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.baseCtx, s.cancel = context.WithCancel(ctx)
	s.started = true
	s.cron.StartAsync()
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.entries)))
}

// Stop halts the scheduler and cancels in-flight runs.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.started = false
	s.logger.Info("scheduler stopped")
}

// Ready reports ErrNotRunning unless Start has been called.
func (s *Scheduler) Ready() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return ErrNotRunning
	}
	return nil
}

func (s *Scheduler) runContext() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.baseCtx
}

func (s *Scheduler) scheduled(e *entry) {
	if err := s.run(s.runContext(), e); err != nil && !errors.Is(err, ErrJobRunning) {
		s.logger.Warn("scheduled job failed", zap.String("job", e.cfg.Name), zap.Error(err))
	}
}

// RunJob runs the named job now, in the calling goroutine.
func (s *Scheduler) RunJob(ctx context.Context, name string) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	return s.run(ctx, e)
}

// Trigger starts the named job in the background. It fails fast when the
// job is unknown or already running.
func (s *Scheduler) Trigger(name string) error {
	e, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownJob, name)
	}
	if !e.lock.TryLock() {
		return fmt.Errorf("%w: %s", ErrJobRunning, name)
	}
	ctx := s.runContext()
	go func() {
		defer e.lock.Unlock()
		if err := s.runLocked(ctx, e); err != nil {
			s.logger.Warn("triggered job failed", zap.String("job", name), zap.Error(err))
		}
	}()
	return nil
}

func (s *Scheduler) run(ctx context.Context, e *entry) error {
	if !e.lock.TryLock() {
		metrics.ObserveScheduleRun(e.cfg.Name, metrics.StatusSkip)
		return fmt.Errorf("%w: %s", ErrJobRunning, e.cfg.Name)
	}
	defer e.lock.Unlock()
	return s.runLocked(ctx, e)
}

// runLocked runs every pipeline of the job in order. A failing pipeline
// does not stop the ones after it.
func (s *Scheduler) runLocked(ctx context.Context, e *entry) error {
	start := s.clock.Now()
	e.mu.Lock()
	e.running = true
	e.mu.Unlock()

	logger := s.logger.With(zap.String("job", e.cfg.Name))
	logger.Info("job started", zap.Strings("pipelines", e.cfg.Pipelines))
	var errs []error
	for _, p := range e.cfg.Pipelines {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		if err := s.runner.RunPipeline(ctx, p); err != nil {
			logger.Warn("pipeline failed", zap.String("pipeline", p), zap.Error(err))
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
		}
	}
	err := errors.Join(errs...)

	e.mu.Lock()
	e.running = false
	e.lastRun = start.UTC()
	e.lastErr = err
	e.mu.Unlock()

	metrics.ObserveScheduleRun(e.cfg.Name, metrics.StatusOf(err))
	logger.Info("job finished", zap.Duration("duration", s.clock.Since(start)), zap.Bool("ok", err == nil))
	return err
}

// Jobs lists the configured jobs sorted by name.
func (s *Scheduler) Jobs() []JobInfo {
	out := make([]JobInfo, 0, len(s.entries))
	for _, e := range s.entries {
		info := JobInfo{
			Name:      e.cfg.Name,
			Cron:      e.cfg.Cron,
			Pipelines: append([]string(nil), e.cfg.Pipelines...),
		}
		if e.job != nil {
			info.NextRun = e.job.NextRun()
		}
		e.mu.Lock()
		info.LastRun = e.lastRun
		info.Running = e.running
		if e.lastErr != nil {
			info.LastError = e.lastErr.Error()
		}
		e.mu.Unlock()
		out = append(out, info)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}
