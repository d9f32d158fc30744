package scheduler

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/service"
	"github.com/adpulse/adpulse/internal/webhook"
)

type memoryStore struct {
	mu     sync.Mutex
	jobs   map[string]*model.ScheduledJob
	order  []string
	marked map[string]time.Time
}

func newMemoryStore(jobs ...*model.ScheduledJob) *memoryStore {
	s := &memoryStore{jobs: make(map[string]*model.ScheduledJob), marked: make(map[string]time.Time)}
	for _, j := range jobs {
		s.jobs[j.ID] = j
		s.order = append(s.order, j.ID)
	}
	return s
}

func (s *memoryStore) ListActiveSchedules(_ context.Context) ([]*model.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*model.ScheduledJob
	for _, id := range s.order {
		j := *s.jobs[id]
		if j.IsActive {
			out = append(out, &j)
		}
	}
	return out, nil
}

func (s *memoryStore) GetSchedule(_ context.Context, userID, id string) (*model.ScheduledJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok || j.UserID != userID {
		return nil, ErrScheduleNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *memoryStore) MarkScheduleRun(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked[id] = at
	if j, ok := s.jobs[id]; ok {
		ts := at
		j.LastRunAt = &ts
	}
	return nil
}

func (s *memoryStore) markedAt(id string) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.marked[id]
	return at, ok
}

type stubGenerator struct {
	mu     sync.Mutex
	inputs []service.GenerateInput
	errFor map[string]error
}

func (g *stubGenerator) Generate(_ context.Context, in service.GenerateInput) (*model.ReportMetrics, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs = append(g.inputs, in)
	if err := g.errFor[in.AccountID]; err != nil {
		return nil, err
	}
	return &model.ReportMetrics{
		Reach:       1200,
		Impressions: 34000,
		TotalSpend:  150,
		BestAd:      model.BestAd{Scope: model.BestAdScopeAll, Name: "Ad 1"},
		BestAdScope: model.BestAdScopeAll,
	}, nil
}

func (g *stubGenerator) calls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.inputs)
}

type stubDispatcher struct {
	mu      sync.Mutex
	targets []webhook.Target
	bodies  []model.WebhookBody
	failFor map[string]bool
}

func (d *stubDispatcher) Dispatch(_ context.Context, target webhook.Target, body model.WebhookBody) model.DeliveryResult {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.targets = append(d.targets, target)
	d.bodies = append(d.bodies, body)
	if d.failFor[target.URL] {
		return model.DeliveryResult{HTTPStatus: 500, Error: "HTTP 500"}
	}
	return model.DeliveryResult{Success: true, HTTPStatus: 200}
}

func (d *stubDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.targets)
}

type stubLocker struct {
	mu       sync.Mutex
	held     map[string]bool
	err      error
	released []string
}

func (l *stubLocker) TryLock(_ context.Context, key string, _ time.Duration) (func(context.Context) error, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return nil, false, l.err
	}
	if l.held[key] {
		return nil, false, nil
	}
	if l.held == nil {
		l.held = make(map[string]bool)
	}
	l.held[key] = true
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		delete(l.held, key)
		l.released = append(l.released, key)
		return nil
	}, true, nil
}

func mondayJob(id, account string) *model.ScheduledJob {
	return &model.ScheduledJob{
		ID:          id,
		UserID:      "user-1",
		ClientID:    "client-" + id,
		WebhookURL:  "https://hooks.example.com/" + id,
		DayOfWeek:   1,
		RunTime:     "09:00",
		Timezone:    "America/Sao_Paulo",
		IsActive:    true,
		BestAdScope: model.BestAdScopeAll,
		Client:      &model.Client{ID: "client-" + id, Name: "Loja " + id, AccountID: account, IsActive: true},
	}
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}

func newTestRunner(t *testing.T, store JobStore, gen ReportGenerator, disp Dispatcher, locker Locker, clock Clock, rec metrics.Recorder) *Runner {
	t.Helper()
	return NewRunner(Config{Clock: clock}, store, gen, nil, disp, locker, nil, rec)
}

func TestRunnerTick_DeliversDueJob(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 3, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	gen := &stubGenerator{}
	disp := &stubDispatcher{}
	locker := &stubLocker{}
	rec := metrics.NewInMemory()

	runner := newTestRunner(t, store, gen, disp, locker, fixedClock(now), rec)
	res, err := runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	if res.Active != 1 || len(res.Results) != 1 {
		t.Fatalf("unexpected tick result %+v", res)
	}
	jr := res.Results[0]
	if jr.Status != model.JobStatusSuccess || jr.ClientName != "Loja a" || jr.ScheduleID != "a" {
		t.Errorf("unexpected job result %+v", jr)
	}

	if len(gen.inputs) != 1 {
		t.Fatalf("generate calls = %d, want 1", len(gen.inputs))
	}
	in := gen.inputs[0]
	if in.Window.Since() != "2024-06-03" || in.Window.Until() != "2024-06-09" {
		t.Errorf("window = %s, want 2024-06-03..2024-06-09", in.Window)
	}
	if in.Source != metrics.SourceScheduled || !in.SkipCache || in.UserID != "user-1" || in.AccountID != "act_1" {
		t.Errorf("unexpected generate input %+v", in)
	}

	if disp.count() != 1 {
		t.Fatalf("dispatch calls = %d, want 1", disp.count())
	}
	body := disp.bodies[0]
	if disp.targets[0].ScheduleID != "a" || disp.targets[0].URL != "https://hooks.example.com/a" {
		t.Errorf("unexpected target %+v", disp.targets[0])
	}
	if !strings.Contains(body.WhatsAppText, "RELATÓRIO SEMANAL - LOJA A") {
		t.Errorf("text missing header: %q", body.WhatsAppText)
	}
	if body.Payload.Period.Start != "2024-06-03" || body.Payload.FormatName != model.DefaultFormatName {
		t.Errorf("unexpected payload %+v", body.Payload)
	}

	at, ok := store.markedAt("a")
	if !ok || !at.Equal(now) || at.Location() != time.UTC {
		t.Errorf("last_run_at = %v (marked %v), want %v in UTC", at, ok, now.UTC())
	}
	if len(locker.released) != 1 {
		t.Errorf("lock not released")
	}

	snap := rec.Snapshot()
	if snap.SchedulerTicks != 1 || snap.SchedulerJobs[string(model.JobStatusSuccess)] != 1 {
		t.Errorf("unexpected metrics %+v", snap)
	}
}

func TestRunnerTick_SkipsJobsNotDue(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 3, 0, 0, sp)

	tuesday := mondayJob("tue", "act_2")
	tuesday.DayOfWeek = 2
	inactive := mondayJob("off", "act_3")
	inactive.IsActive = false
	recent := mondayJob("recent", "act_4")
	lastRun := now.Add(-10 * time.Minute)
	recent.LastRunAt = &lastRun

	store := newMemoryStore(tuesday, inactive, recent)
	gen := &stubGenerator{}
	disp := &stubDispatcher{}

	res, err := newTestRunner(t, store, gen, disp, nil, fixedClock(now), nil).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if res.Active != 2 {
		t.Errorf("active = %d, want 2", res.Active)
	}
	if len(res.Results) != 0 {
		t.Errorf("expected no results, got %+v", res.Results)
	}
	if gen.calls() != 0 || disp.count() != 0 {
		t.Error("jobs that are not due must not run")
	}
	if _, ok := store.markedAt("recent"); ok {
		t.Error("cooldown job must not be marked")
	}
}

func TestRunnerTick_FailuresStillRecordRun(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, sp)

	genFail := mondayJob("gen", "act_gen")
	noToken := mondayJob("token", "act_token")
	deliveryFail := mondayJob("hook", "act_hook")
	ok := mondayJob("ok", "act_ok")

	store := newMemoryStore(genFail, noToken, deliveryFail, ok)
	gen := &stubGenerator{errFor: map[string]error{
		"act_gen":   errors.New("campaign insights: Invalid OAuth access token."),
		"act_token": service.ErrNotConfigured,
	}}
	disp := &stubDispatcher{failFor: map[string]bool{"https://hooks.example.com/hook": true}}

	res, err := newTestRunner(t, store, gen, disp, nil, fixedClock(now), nil).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}

	want := map[string]model.JobStatus{
		"gen":   model.JobStatusError,
		"token": model.JobStatusError,
		"hook":  model.JobStatusError,
		"ok":    model.JobStatusSuccess,
	}
	if len(res.Results) != len(want) {
		t.Fatalf("results = %d, want %d", len(res.Results), len(want))
	}
	for _, jr := range res.Results {
		if jr.Status != want[jr.ScheduleID] {
			t.Errorf("%s: status = %s, want %s", jr.ScheduleID, jr.Status, want[jr.ScheduleID])
		}
		if _, marked := store.markedAt(jr.ScheduleID); !marked {
			t.Errorf("%s: last_run_at not recorded", jr.ScheduleID)
		}
	}
	if res.Results[0].Error != "campaign insights: Invalid OAuth access token." {
		t.Errorf("upstream message not surfaced: %q", res.Results[0].Error)
	}
	if res.Results[1].Error != service.ErrNotConfigured.Error() {
		t.Errorf("configuration error not surfaced: %q", res.Results[1].Error)
	}
	if res.Results[2].Error != "webhook delivery failed: HTTP 500" {
		t.Errorf("delivery error = %q", res.Results[2].Error)
	}
	if disp.count() != 2 {
		t.Errorf("dispatch calls = %d, want 2", disp.count())
	}
	if res.Count(model.JobStatusError) != 3 || res.Count(model.JobStatusSuccess) != 1 {
		t.Errorf("unexpected counts in %+v", res.Results)
	}
}

func TestRunnerTick_LockedJobSkipped(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	locker := &stubLocker{held: map[string]bool{"schedule:a": true}}
	gen := &stubGenerator{}

	res, err := newTestRunner(t, store, gen, &stubDispatcher{}, locker, fixedClock(now), nil).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusSkipped {
		t.Fatalf("expected skipped result, got %+v", res.Results)
	}
	if gen.calls() != 0 {
		t.Error("locked job must not generate")
	}
	if _, ok := store.markedAt("a"); ok {
		t.Error("locked job must not be marked")
	}
}

func TestRunnerTick_LockBackendDownStillRuns(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 0, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	locker := &stubLocker{err: errors.New("redis: connection refused")}

	res, err := newTestRunner(t, store, &stubGenerator{}, &stubDispatcher{}, locker, fixedClock(now), nil).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusSuccess {
		t.Fatalf("expected success, got %+v", res.Results)
	}
}

func TestRunnerTick_DeadlineSkipsRemainingJobs(t *testing.T) {
	sp := saoPaulo(t)
	start := time.Date(2024, 6, 10, 9, 0, 0, 0, sp)

	var mu sync.Mutex
	calls := 0
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		calls++
		return start.Add(time.Duration(calls-1) * time.Minute)
	}

	store := newMemoryStore(mondayJob("a", "act_1"), mondayJob("b", "act_2"))
	gen := &stubGenerator{}
	runner := NewRunner(Config{Clock: clock, MaxTickDuration: 90 * time.Second}, store, gen, nil, &stubDispatcher{}, nil, nil, nil)

	res, err := runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(res.Results))
	}
	if res.Results[0].Status != model.JobStatusSuccess {
		t.Errorf("first job status = %s, want success", res.Results[0].Status)
	}
	if res.Results[1].Status != model.JobStatusSkipped {
		t.Errorf("second job status = %s, want skipped", res.Results[1].Status)
	}
	if gen.calls() != 1 {
		t.Errorf("generate calls = %d, want 1", gen.calls())
	}
	if _, ok := store.markedAt("b"); ok {
		t.Error("skipped job must not be marked")
	}
}

func TestRunnerTick_InvalidTimezone(t *testing.T) {
	sp := saoPaulo(t)
	job := mondayJob("a", "act_1")
	job.Timezone = "Nowhere/Land"
	store := newMemoryStore(job)

	res, err := newTestRunner(t, store, &stubGenerator{}, &stubDispatcher{}, nil, fixedClock(time.Date(2024, 6, 10, 9, 0, 0, 0, sp)), nil).Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusError {
		t.Fatalf("expected error result, got %+v", res.Results)
	}
}

func TestRunnerTick_ConcurrentTicksRunJobOnce(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 2, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	disp := &stubDispatcher{}
	runner := newTestRunner(t, store, &stubGenerator{}, disp, &stubLocker{}, fixedClock(now), nil)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := runner.Tick(context.Background()); err != nil {
				t.Errorf("Tick failed: %v", err)
			}
		}()
	}
	wg.Wait()

	if disp.count() != 1 {
		t.Errorf("dispatch calls = %d, want exactly 1", disp.count())
	}
}

func TestRunnerRunJobNow(t *testing.T) {
	sp := saoPaulo(t)
	// Wednesday afternoon, and the job ran five minutes ago.
	now := time.Date(2024, 6, 12, 15, 0, 0, 0, sp)
	job := mondayJob("a", "act_1")
	lastRun := now.Add(-5 * time.Minute)
	job.LastRunAt = &lastRun
	store := newMemoryStore(job)
	gen := &stubGenerator{}
	disp := &stubDispatcher{}

	runner := newTestRunner(t, store, gen, disp, nil, fixedClock(now), nil)
	jr, err := runner.RunJobNow(context.Background(), "user-1", "a")
	if err != nil {
		t.Fatalf("RunJobNow failed: %v", err)
	}
	if jr.Status != model.JobStatusSuccess {
		t.Fatalf("unexpected result %+v", jr)
	}
	if gen.inputs[0].Window.Since() != "2024-06-03" {
		t.Errorf("window = %s, want week of 2024-06-03", gen.inputs[0].Window)
	}
	if _, ok := store.markedAt("a"); ok {
		t.Error("RunJobNow must not touch last_run_at")
	}

	if _, err := runner.RunJobNow(context.Background(), "user-2", "a"); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound for another user, got %v", err)
	}
}

func TestRunnerRun_StopsOnCancel(t *testing.T) {
	store := newMemoryStore()
	runner := NewRunner(Config{TickInterval: 10 * time.Millisecond}, store, &stubGenerator{}, nil, &stubDispatcher{}, nil, nil, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(30 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Run returned %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Run did not stop after cancel")
	}

	if err := runner.Run(context.Background()); err == nil {
		t.Error("second Run should fail")
	}
}

// staleListStore serves a listing taken before another runner's tick while
// reads and writes go to the shared store.
type staleListStore struct {
	*memoryStore
	listed []*model.ScheduledJob
}

func (s *staleListStore) ListActiveSchedules(_ context.Context) ([]*model.ScheduledJob, error) {
	return s.listed, nil
}

func TestRunnerTick_SecondReplicaRechecksAfterLock(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 2, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	locker := &stubLocker{}
	disp := &stubDispatcher{}

	listed, err := store.ListActiveSchedules(context.Background())
	if err != nil {
		t.Fatalf("ListActiveSchedules failed: %v", err)
	}

	first := newTestRunner(t, store, &stubGenerator{}, disp, locker, fixedClock(now), nil)
	if _, err := first.Tick(context.Background()); err != nil {
		t.Fatalf("first Tick failed: %v", err)
	}

	second := newTestRunner(t, &staleListStore{memoryStore: store, listed: listed}, &stubGenerator{}, disp, locker, fixedClock(now.Add(time.Minute)), nil)
	res, err := second.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}

	if disp.count() != 1 {
		t.Errorf("dispatch calls = %d, want 1", disp.count())
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusSkipped {
		t.Fatalf("expected skipped result, got %+v", res.Results)
	}
	if !strings.Contains(res.Results[0].Error, ReasonCooldown) {
		t.Errorf("error = %q, want cooldown reason", res.Results[0].Error)
	}
	if at, _ := store.markedAt("a"); !at.Equal(now) {
		t.Errorf("last_run_at = %v, want first run %v", at, now)
	}
}

func TestRunnerTick_DeactivatedAfterListingSkipped(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 2, 0, 0, sp)
	store := newMemoryStore(mondayJob("a", "act_1"))
	listed, _ := store.ListActiveSchedules(context.Background())
	store.jobs["a"].IsActive = false
	disp := &stubDispatcher{}

	runner := newTestRunner(t, &staleListStore{memoryStore: store, listed: listed}, &stubGenerator{}, disp, nil, fixedClock(now), nil)
	res, err := runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusSkipped {
		t.Fatalf("expected skipped result, got %+v", res.Results)
	}
	if disp.count() != 0 {
		t.Errorf("dispatch calls = %d, want 0", disp.count())
	}
}

// ctxStore fails writes whose context is already done.
type ctxStore struct {
	*memoryStore
}

func (s *ctxStore) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.memoryStore.MarkScheduleRun(ctx, id, at)
}

// cancellingDispatcher delivers, then cancels the tick's context the way a
// disconnecting HTTP caller would.
type cancellingDispatcher struct {
	stubDispatcher
	cancel context.CancelFunc
}

func (d *cancellingDispatcher) Dispatch(ctx context.Context, target webhook.Target, body model.WebhookBody) model.DeliveryResult {
	res := d.stubDispatcher.Dispatch(ctx, target, body)
	d.cancel()
	return res
}

func TestRunnerTick_RecordsRunWhenCallerCancels(t *testing.T) {
	sp := saoPaulo(t)
	now := time.Date(2024, 6, 10, 9, 2, 0, 0, sp)
	store := &ctxStore{memoryStore: newMemoryStore(mondayJob("a", "act_1"))}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	disp := &cancellingDispatcher{cancel: cancel}

	runner := newTestRunner(t, store, &stubGenerator{}, disp, nil, fixedClock(now), nil)
	res, err := runner.Tick(ctx)
	if err != nil {
		t.Fatalf("Tick failed: %v", err)
	}
	if len(res.Results) != 1 || res.Results[0].Status != model.JobStatusSuccess {
		t.Fatalf("expected success, got %+v", res.Results)
	}
	if _, ok := store.markedAt("a"); !ok {
		t.Fatal("last_run_at not recorded after the caller cancelled")
	}

	again, err := runner.Tick(context.Background())
	if err != nil {
		t.Fatalf("second Tick failed: %v", err)
	}
	if len(again.Results) != 0 || disp.count() != 1 {
		t.Errorf("job delivered again: results=%+v dispatches=%d", again.Results, disp.count())
	}
}
