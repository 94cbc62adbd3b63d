// Package jobs runs periodic maintenance for the scheduler on cron specs.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Lowii-3dy/campus-sched/internal/logging"
)

// DisabledSpec turns a job off.
const DisabledSpec = "-"

// Job is a named unit of periodic work.
type Job struct {
	Name string
	Spec string
	Run  func(ctx context.Context) error
}

// Runner schedules jobs with robfig/cron. Overlapping runs of the same job are
// skipped.
type Runner struct {
	cron   *cron.Cron
	logger *slog.Logger

	mu      sync.Mutex
	jobs    map[string]Job
	baseCtx context.Context
	stop    sync.Once
}

// NewRunner builds a runner evaluating specs in loc.
func NewRunner(logger *slog.Logger, loc *time.Location) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if loc == nil {
		loc = time.UTC
	}
	adapter := cronLogger{logger: logger.With("component", "jobs")}
	return &Runner{
		cron: cron.New(
			cron.WithLocation(loc),
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
		logger:  logger,
		jobs:    make(map[string]Job),
		baseCtx: context.Background(),
	}
}

// Add registers a job. Empty or "-" specs disable it.
func (r *Runner) Add(job Job) error {
	if strings.TrimSpace(job.Name) == "" || job.Run == nil {
		return errors.New("jobs: name and run function are required")
	}
	spec := strings.TrimSpace(job.Spec)
	if spec == "" || spec == DisabledSpec {
		r.logger.Info("job disabled", "job", job.Name)
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.jobs[job.Name]; exists {
		return fmt.Errorf("jobs: %s already registered", job.Name)
	}
	if _, err := r.cron.AddFunc(spec, func() { _ = r.execute(r.context(), job) }); err != nil {
		return fmt.Errorf("jobs: invalid spec %q for %s: %w", spec, job.Name, err)
	}
	job.Spec = spec
	r.jobs[job.Name] = job
	return nil
}

// Names returns the registered job names.
func (r *Runner) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.jobs))
	for name := range r.jobs {
		names = append(names, name)
	}
	return names
}

// Start begins scheduling. The runner stops when ctx is cancelled.
func (r *Runner) Start(ctx context.Context) {
	r.mu.Lock()
	r.baseCtx = ctx
	r.mu.Unlock()

	r.cron.Start()
	go func() {
		<-ctx.Done()
		r.Stop()
	}()
}

// Stop halts scheduling and waits for running jobs to finish.
func (r *Runner) Stop() {
	r.stop.Do(func() {
		<-r.cron.Stop().Done()
	})
}

// RunNow executes a registered job synchronously.
func (r *Runner) RunNow(ctx context.Context, name string) error {
	r.mu.Lock()
	job, ok := r.jobs[name]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("jobs: unknown job %q", name)
	}
	return r.execute(ctx, job)
}

func (r *Runner) context() context.Context {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.baseCtx
}

func (r *Runner) execute(ctx context.Context, job Job) error {
	logger := r.logger.With("job", job.Name)
	ctx = logging.ContextWithLogger(ctx, logger)
	start := time.Now()
	err := job.Run(ctx)
	if err != nil {
		logger.ErrorContext(ctx, "job failed", "error", err, "duration", time.Since(start))
		return err
	}
	logger.InfoContext(ctx, "job completed", "duration", time.Since(start))
	return nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	logger *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
