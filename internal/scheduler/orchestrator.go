package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/maintenance-service/internal/observability"
)

// ErrJobNotFound is returned when a trigger names an unregistered job.
var ErrJobNotFound = errors.New("job not found")

// RunFunc is one job execution. The context carries the per-run timeout.
type RunFunc func(ctx context.Context) error

// Job describes a registered background job.
type Job struct {
	Name     string
	Interval time.Duration
	Run      RunFunc
}

// JobStatus is a point-in-time view of one job for the status endpoint.
type JobStatus struct {
	Name      string     `json:"name"`
	Interval  string     `json:"interval"`
	Running   bool       `json:"running"`
	Scheduled bool       `json:"scheduled"`
	Runs      int64      `json:"runs"`
	Failures  int64      `json:"failures"`
	LastRun   *time.Time `json:"last_run,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

// RunResult reports the outcome of a manually triggered run.
type RunResult struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	Err      error         `json:"-"`
	Skipped  bool          `json:"skipped"`
}

type jobState struct {
	job       Job
	mu        sync.Mutex
	running   bool
	runs      int64
	failures  int64
	lastRun   *time.Time
	lastError string
}

// Orchestrator owns the background jobs: periodic execution on per-job
// timers, manual triggering, and status reporting. A job never runs
// concurrently with itself; an overlapping tick or trigger is skipped.
type Orchestrator struct {
	mu         sync.RWMutex
	jobs       map[string]*jobState
	order      []string
	runTimeout time.Duration
	logger     *zap.Logger
	metrics    *observability.Metrics
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	started    bool
}

// NewOrchestrator builds an empty orchestrator.
func NewOrchestrator(runTimeout time.Duration, logger *zap.Logger, metrics *observability.Metrics) *Orchestrator {
	if runTimeout <= 0 {
		runTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		jobs:       make(map[string]*jobState),
		runTimeout: runTimeout,
		logger:     logger,
		metrics:    metrics,
	}
}

// Register adds a job. Must be called before Start.
func (o *Orchestrator) Register(job Job) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, exists := o.jobs[job.Name]; exists {
		return
	}
	o.jobs[job.Name] = &jobState{job: job}
	o.order = append(o.order, job.Name)
}

// Start launches one timer goroutine per registered job.
func (o *Orchestrator) Start() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.started {
		return
	}
	o.started = true

	ctx, cancel := context.WithCancel(context.Background())
	o.cancel = cancel

	for _, name := range o.order {
		state := o.jobs[name]
		if state.job.Interval <= 0 {
			continue
		}
		o.wg.Add(1)
		go o.loop(ctx, state)
	}
	o.logger.Info("job orchestrator started", zap.Int("jobs", len(o.order)))
}

// Stop cancels all timers and waits for in-flight runs to finish.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	if !o.started {
		o.mu.Unlock()
		return
	}
	o.started = false
	cancel := o.cancel
	o.mu.Unlock()

	cancel()
	o.wg.Wait()
	o.logger.Info("job orchestrator stopped")
}

// Trigger runs a job immediately by name, outside its timer cadence.
func (o *Orchestrator) Trigger(ctx context.Context, name string) (RunResult, error) {
	o.mu.RLock()
	state, ok := o.jobs[name]
	o.mu.RUnlock()
	if !ok {
		return RunResult{}, ErrJobNotFound
	}
	return o.execute(ctx, state), nil
}

// Status reports every job's run counters and last outcome.
func (o *Orchestrator) Status() []JobStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()

	result := make([]JobStatus, 0, len(o.order))
	for _, name := range o.order {
		state := o.jobs[name]
		state.mu.Lock()
		result = append(result, JobStatus{
			Name:      name,
			Interval:  state.job.Interval.String(),
			Running:   state.running,
			Scheduled: o.started && state.job.Interval > 0,
			Runs:      state.runs,
			Failures:  state.failures,
			LastRun:   state.lastRun,
			LastError: state.lastError,
		})
		state.mu.Unlock()
	}
	return result
}

func (o *Orchestrator) loop(ctx context.Context, state *jobState) {
	defer o.wg.Done()

	ticker := time.NewTicker(state.job.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			o.execute(ctx, state)
		}
	}
}

func (o *Orchestrator) execute(ctx context.Context, state *jobState) RunResult {
	state.mu.Lock()
	if state.running {
		state.mu.Unlock()
		o.logger.Debug("job still running, skipping", zap.String("job", state.job.Name))
		return RunResult{Name: state.job.Name, Skipped: true}
	}
	state.running = true
	state.mu.Unlock()

	runCtx, cancel := context.WithTimeout(ctx, o.runTimeout)
	defer cancel()

	start := time.Now()
	err := o.run(runCtx, state)
	duration := time.Since(start)

	o.metrics.RecordJobRun(state.job.Name, err != nil, duration)

	state.mu.Lock()
	state.running = false
	state.runs++
	now := start.UTC()
	state.lastRun = &now
	if err != nil {
		state.failures++
		state.lastError = err.Error()
	} else {
		state.lastError = ""
	}
	state.mu.Unlock()

	if err != nil {
		o.logger.Error("job run failed",
			zap.String("job", state.job.Name),
			zap.Duration("duration", duration),
			zap.Error(err))
	} else {
		o.logger.Debug("job run finished",
			zap.String("job", state.job.Name),
			zap.Duration("duration", duration))
	}
	return RunResult{Name: state.job.Name, Duration: duration, Err: err}
}

// run invokes the job, converting a panic into an ordinary failure so one
// bad job cannot take down the process or wedge its single-flight guard.
func (o *Orchestrator) run(ctx context.Context, state *jobState) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("job panicked: %v", r)
			o.logger.Error("job panicked",
				zap.String("job", state.job.Name),
				zap.Any("panic", r))
		}
	}()
	return state.job.Run(ctx)
}
