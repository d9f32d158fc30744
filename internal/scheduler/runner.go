package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/report"
	"github.com/adpulse/adpulse/internal/service"
	"github.com/adpulse/adpulse/internal/webhook"
)

const (
	// DefaultTickInterval is the time between ticks in Run.
	DefaultTickInterval = time.Minute
	// DefaultMaxTickDuration bounds how long a tick keeps starting jobs.
	DefaultMaxTickDuration = 4 * time.Minute
	// DefaultLockTTL bounds how long a job lock outlives a crashed runner.
	DefaultLockTTL = 10 * time.Minute

	lockKeyPrefix  = "schedule:"
	markRunTimeout = 5 * time.Second
)

// ErrScheduleNotFound is returned by RunJobNow for unknown jobs.
var ErrScheduleNotFound = errors.New("schedule not found")

// JobStore reads jobs and records runs.
type JobStore interface {
	ListActiveSchedules(ctx context.Context) ([]*model.ScheduledJob, error)
	GetSchedule(ctx context.Context, userID, id string) (*model.ScheduledJob, error)
	MarkScheduleRun(ctx context.Context, id string, at time.Time) error
}

// ReportGenerator produces metrics for a job's window.
type ReportGenerator interface {
	Generate(ctx context.Context, input service.GenerateInput) (*model.ReportMetrics, error)
}

// Dispatcher delivers a rendered report.
type Dispatcher interface {
	Dispatch(ctx context.Context, target webhook.Target, body model.WebhookBody) model.DeliveryResult
}

// Locker guards a job against concurrent processing by other ticks.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, acquired bool, err error)
}

// Clock returns the current instant.
type Clock func() time.Time

// ZoneResolver maps an IANA zone name to a location.
type ZoneResolver func(name string) (*time.Location, error)

// Config configures a Runner.
type Config struct {
	TickInterval    time.Duration
	MaxTickDuration time.Duration
	LockTTL         time.Duration
	Policy          Policy
	Clock           Clock
	Zones           ZoneResolver
}

// Runner evaluates active jobs on every tick and delivers the due ones.
type Runner struct {
	store      JobStore
	reports    ReportGenerator
	formatter  *report.Formatter
	dispatcher Dispatcher
	locker     Locker

	interval time.Duration
	maxTick  time.Duration
	lockTTL  time.Duration
	policy   Policy
	clock    Clock
	zones    ZoneResolver

	logger  *slog.Logger
	metrics metrics.Recorder

	tickMu  sync.Mutex
	mu      sync.Mutex
	started bool
}

// NewRunner creates a Runner. locker may be nil.
func NewRunner(cfg Config, store JobStore, reports ReportGenerator, formatter *report.Formatter, dispatcher Dispatcher, locker Locker, logger *slog.Logger, recorder metrics.Recorder) *Runner {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = DefaultTickInterval
	}
	if cfg.MaxTickDuration <= 0 {
		cfg.MaxTickDuration = DefaultMaxTickDuration
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = DefaultLockTTL
	}
	if cfg.Policy.Cooldown <= 0 {
		cfg.Policy.Cooldown = DefaultCooldown
	}
	if cfg.Policy.Window <= 0 {
		cfg.Policy.Window = DefaultWindow
	}
	if cfg.Clock == nil {
		cfg.Clock = time.Now
	}
	if cfg.Zones == nil {
		cfg.Zones = NewZoneCache().Load
	}
	if logger == nil {
		logger = slog.Default()
	}
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if formatter == nil {
		formatter = report.NewFormatter("", "")
	}

	return &Runner{
		store:      store,
		reports:    reports,
		formatter:  formatter,
		dispatcher: dispatcher,
		locker:     locker,
		interval:   cfg.TickInterval,
		maxTick:    cfg.MaxTickDuration,
		lockTTL:    cfg.LockTTL,
		policy:     cfg.Policy,
		clock:      cfg.Clock,
		zones:      cfg.Zones,
		logger:     logger.With("component", "scheduler"),
		metrics:    recorder,
	}
}

// Run starts the ticker loop. Blocks until context is cancelled.
func (r *Runner) Run(ctx context.Context) error {
	r.mu.Lock()
	if r.started {
		r.mu.Unlock()
		return errors.New("scheduler already started")
	}
	r.started = true
	r.mu.Unlock()

	r.logger.Info("scheduler started", "interval", r.interval.String())

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("scheduler stopping")
			return nil
		case <-ticker.C:
			r.safeTick(ctx)
		}
	}
}

func (r *Runner) safeTick(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("scheduler tick panicked", "panic", fmt.Sprint(rec))
		}
	}()

	if _, err := r.Tick(ctx); err != nil && !errors.Is(err, context.Canceled) {
		r.logger.Error("scheduler tick failed", "error", err)
	}
}

// Tick processes every due job once and returns the per-job results.
// Overlapping calls are serialized. Due jobs not started before the tick
// deadline are reported as skipped.
func (r *Runner) Tick(ctx context.Context) (*model.TickResult, error) {
	r.tickMu.Lock()
	defer r.tickMu.Unlock()

	now := r.clock()
	result := &model.TickResult{
		StartedAt: now.UTC(),
		Results:   []model.JobResult{},
	}

	jobs, err := r.store.ListActiveSchedules(ctx)
	if err != nil {
		return nil, fmt.Errorf("list active schedules: %w", err)
	}
	result.Active = len(jobs)

	deadline := now.Add(r.maxTick)
	for _, job := range jobs {
		loc, err := r.zones(job.Timezone)
		if err != nil {
			r.logger.Warn("schedule has invalid timezone",
				"schedule_id", job.ID,
				"timezone", job.Timezone,
			)
			result.Results = append(result.Results, model.JobResult{
				ScheduleID: job.ID,
				ClientName: clientName(job),
				Status:     model.JobStatusError,
				Error:      fmt.Sprintf("invalid timezone %q", job.Timezone),
			})
			continue
		}

		due, reason := r.policy.IsDue(job, now, loc)
		if !due {
			r.logger.Debug("schedule not due", "schedule_id", job.ID, "reason", reason)
			continue
		}

		if ctx.Err() != nil || r.clock().After(deadline) {
			result.Results = append(result.Results, model.JobResult{
				ScheduleID: job.ID,
				ClientName: clientName(job),
				Status:     model.JobStatusSkipped,
				Error:      "tick deadline exceeded",
			})
			continue
		}

		result.Results = append(result.Results, r.runDue(ctx, job, now, loc))
	}

	result.FinishedAt = r.clock().UTC()
	r.metrics.ObserveSchedulerTick(result.FinishedAt.Sub(result.StartedAt), result.Active)
	for _, res := range result.Results {
		r.metrics.IncSchedulerJob(string(res.Status))
	}

	if len(result.Results) > 0 {
		r.logger.Info("scheduler tick finished",
			"active", result.Active,
			"success", result.Count(model.JobStatusSuccess),
			"error", result.Count(model.JobStatusError),
			"skipped", result.Count(model.JobStatusSkipped),
		)
	}
	return result, nil
}

// runDue processes one due job under its lock and records the run.
// last_run_at is written whether or not the job succeeded.
func (r *Runner) runDue(ctx context.Context, job *model.ScheduledJob, now time.Time, loc *time.Location) model.JobResult {
	release, ok := r.lock(ctx, job)
	if !ok {
		return model.JobResult{
			ScheduleID: job.ID,
			ClientName: clientName(job),
			Status:     model.JobStatusSkipped,
			Error:      "schedule is locked by another run",
		}
	}
	defer release()

	// Another runner may have delivered the job between the listing and the
	// lock, so the due check is repeated against the stored row.
	fresh, err := r.store.GetSchedule(ctx, job.UserID, job.ID)
	if err != nil {
		r.logger.Warn("failed to reload schedule", "schedule_id", job.ID, "error", err)
		return model.JobResult{
			ScheduleID: job.ID,
			ClientName: clientName(job),
			Status:     model.JobStatusError,
			Error:      "reload schedule: " + err.Error(),
		}
	}
	if !fresh.IsActive {
		return model.JobResult{
			ScheduleID: job.ID,
			ClientName: clientName(job),
			Status:     model.JobStatusSkipped,
			Error:      "schedule is no longer active",
		}
	}
	if fresh.Client == nil {
		fresh.Client = job.Client
	}
	if due, reason := r.policy.IsDue(fresh, now, loc); !due {
		r.logger.Info("schedule no longer due after lock", "schedule_id", job.ID, "reason", reason)
		return model.JobResult{
			ScheduleID: job.ID,
			ClientName: clientName(fresh),
			Status:     model.JobStatusSkipped,
			Error:      "not due: " + reason,
		}
	}

	res := r.execute(ctx, fresh, PreviousWeek(now, loc), now)

	// The run is recorded even when the caller has gone away.
	markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), markRunTimeout)
	defer cancel()
	if err := r.store.MarkScheduleRun(markCtx, job.ID, now.UTC()); err != nil {
		r.logger.Error("failed to record schedule run",
			"schedule_id", job.ID,
			"error", err,
		)
	}
	return res
}

// RunJobNow generates and delivers a job's report immediately, ignoring the
// due check and cooldown. last_run_at is not touched.
func (r *Runner) RunJobNow(ctx context.Context, userID, scheduleID string) (model.JobResult, error) {
	job, err := r.store.GetSchedule(ctx, userID, scheduleID)
	if err != nil {
		return model.JobResult{}, err
	}
	if job == nil {
		return model.JobResult{}, ErrScheduleNotFound
	}

	loc, err := r.zones(job.Timezone)
	if err != nil {
		return model.JobResult{}, fmt.Errorf("invalid timezone %q: %w", job.Timezone, err)
	}

	release, ok := r.lock(ctx, job)
	if !ok {
		return model.JobResult{
			ScheduleID: job.ID,
			ClientName: clientName(job),
			Status:     model.JobStatusSkipped,
			Error:      "schedule is locked by another run",
		}, nil
	}
	defer release()

	now := r.clock()
	return r.execute(ctx, job, PreviousWeek(now, loc), now), nil
}

// execute runs the generate, render and dispatch pipeline for one job.
func (r *Runner) execute(ctx context.Context, job *model.ScheduledJob, window model.ReportWindow, now time.Time) model.JobResult {
	res := model.JobResult{
		ScheduleID: job.ID,
		ClientName: clientName(job),
	}
	logger := r.logger.With("schedule_id", job.ID, "client_name", res.ClientName)

	if job.Client == nil {
		res.Status = model.JobStatusError
		res.Error = "client not found"
		logger.Warn("schedule has no client")
		return res
	}

	m, err := r.reports.Generate(ctx, service.GenerateInput{
		UserID:      job.UserID,
		AccountID:   job.Client.AccountID,
		Window:      window,
		BestAdScope: job.BestAdScope,
		Source:      metrics.SourceScheduled,
		SkipCache:   true,
	})
	if err != nil {
		res.Status = model.JobStatusError
		res.Error = err.Error()
		logger.Warn("scheduled report generation failed",
			"window", window.String(),
			"error", err,
		)
		return res
	}

	rendered := r.formatter.Render(report.RenderInput{
		Metrics:     m,
		Format:      job.Format,
		ClientName:  job.Client.Name,
		AccountID:   job.Client.AccountID,
		Window:      window,
		GeneratedAt: now,
	})

	delivery := r.dispatcher.Dispatch(ctx, webhook.Target{URL: job.WebhookURL, ScheduleID: job.ID}, rendered.Body)
	if !delivery.Success {
		res.Status = model.JobStatusError
		res.Error = "webhook delivery failed: " + delivery.Error
		return res
	}

	res.Status = model.JobStatusSuccess
	logger.Info("scheduled report delivered", "window", window.String())
	return res
}

// lock takes the job's distributed lock. A failing lock backend does not
// block delivery; the cooldown still prevents a second send.
func (r *Runner) lock(ctx context.Context, job *model.ScheduledJob) (func(), bool) {
	if r.locker == nil {
		return func() {}, true
	}

	release, acquired, err := r.locker.TryLock(ctx, lockKeyPrefix+job.ID, r.lockTTL)
	if err != nil {
		r.logger.Warn("schedule lock unavailable, continuing without it",
			"schedule_id", job.ID,
			"error", err,
		)
		return func() {}, true
	}
	if !acquired {
		r.logger.Info("schedule locked by another run", "schedule_id", job.ID)
		return nil, false
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := release(releaseCtx); err != nil {
			r.logger.Warn("failed to release schedule lock", "schedule_id", job.ID, "error", err)
		}
	}, true
}

func clientName(job *model.ScheduledJob) string {
	if job.Client == nil {
		return ""
	}
	return job.Client.Name
}

// ZoneCache memoizes time.LoadLocation.
type ZoneCache struct {
	mu    sync.RWMutex
	zones map[string]*time.Location
}

// NewZoneCache creates an empty ZoneCache.
func NewZoneCache() *ZoneCache {
	return &ZoneCache{zones: make(map[string]*time.Location)}
}

// Load resolves name, caching successful lookups.
func (c *ZoneCache) Load(name string) (*time.Location, error) {
	c.mu.RLock()
	loc, ok := c.zones[name]
	c.mu.RUnlock()
	if ok {
		return loc, nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.zones[name] = loc
	c.mu.Unlock()
	return loc, nil
}
