package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/onnwee/currents/internal/jobs"
)

// JobMetrics provides centralized background job metrics tracking.
// This interface allows the job to report to the centralized job metrics system.
type JobMetrics interface {
	IncJobsTotal(jobType, status string)
	ObserveJobDuration(jobType string, seconds float64)
	IncJobErrors(jobType, errorType string)
}

// DefaultCronSpec runs the generation cycle at the top of every hour.
const DefaultCronSpec = "0 * * * *"

// DefaultCycleTimeout bounds one scheduled generation cycle.
const DefaultCycleTimeout = 5 * time.Minute

// GenerateJobConfig configures the scheduled generation job.
type GenerateJobConfig struct {
	// CronSpec is the cron schedule expression.
	CronSpec string
	// Timeout for each generation cycle.
	Timeout time.Duration
	// Logger for job activity.
	Logger *slog.Logger
	// JobMetrics for centralized background job tracking.
	JobMetrics JobMetrics
}

// GenerateJob runs the hourly generation cycle on a cron schedule. Cycles
// are idempotent per (date, hour) and never overlap: the engine serializes
// them and the job additionally skips a tick while a run is in flight.
type GenerateJob struct {
	config GenerateJobConfig
	engine *Engine
	cron   *cron.Cron

	mu       sync.Mutex
	running  bool
	inFlight bool
}

// NewGenerateJob creates a scheduled generation job.
func NewGenerateJob(config GenerateJobConfig, engine *Engine) *GenerateJob {
	if config.CronSpec == "" {
		config.CronSpec = DefaultCronSpec
	}
	if config.Timeout == 0 {
		config.Timeout = DefaultCycleTimeout
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &GenerateJob{config: config, engine: engine}
}

// Start schedules the job. Returns immediately; cycles run in cron's
// goroutine.
func (j *GenerateJob) Start(ctx context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.running {
		return nil
	}

	j.cron = cron.New()
	_, err := j.cron.AddFunc(j.config.CronSpec, func() { j.runCycle(ctx) })
	if err != nil {
		return err
	}
	j.cron.Start()
	j.running = true
	j.config.Logger.Info("generation job scheduled", "cron", j.config.CronSpec)
	return nil
}

// Stop halts the schedule and waits for an in-flight cycle to finish.
func (j *GenerateJob) Stop() {
	j.mu.Lock()
	if !j.running {
		j.mu.Unlock()
		return
	}
	j.running = false
	c := j.cron
	j.mu.Unlock()

	<-c.Stop().Done()
}

// IsRunning returns whether the job is currently scheduled.
func (j *GenerateJob) IsRunning() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.running
}

// RunNow executes one cycle immediately, outside the schedule.
func (j *GenerateJob) RunNow(ctx context.Context) {
	j.runCycle(ctx)
}

func (j *GenerateJob) runCycle(parentCtx context.Context) {
	j.mu.Lock()
	if j.inFlight {
		j.mu.Unlock()
		j.config.Logger.Warn("skipping generation tick, previous cycle still running")
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.IncJobErrors(jobs.JobTypeTrendingGenerate, "overlap")
		}
		return
	}
	j.inFlight = true
	j.mu.Unlock()
	defer func() {
		j.mu.Lock()
		j.inFlight = false
		j.mu.Unlock()
	}()

	ctx, cancel := context.WithTimeout(parentCtx, j.config.Timeout)
	defer cancel()

	start := time.Now()
	snap, err := j.engine.GenerateCycle(ctx, j.engine.now(), CycleOptions{
		UseOracle:     true,
		OnlyIfMissing: true,
	})
	duration := time.Since(start).Seconds()

	status := jobs.StatusSuccess
	if err != nil {
		status = jobs.StatusFailure
		j.config.Logger.Error("scheduled generation cycle failed", "error", err)
		if j.config.JobMetrics != nil {
			j.config.JobMetrics.IncJobErrors(jobs.JobTypeTrendingGenerate, "cycle_error")
		}
	} else {
		j.config.Logger.Info("scheduled generation cycle completed",
			"date", snap.Date,
			"hour", snap.Hour,
			"items", len(snap.Items),
			"duration_seconds", duration)
	}

	if j.config.JobMetrics != nil {
		j.config.JobMetrics.IncJobsTotal(jobs.JobTypeTrendingGenerate, status)
		j.config.JobMetrics.ObserveJobDuration(jobs.JobTypeTrendingGenerate, duration)
	}
}
