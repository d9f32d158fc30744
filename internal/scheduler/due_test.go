package scheduler

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/adpulse/adpulse/internal/model"
)

func saoPaulo(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	return loc
}

func TestPreviousWeek(t *testing.T) {
	sp := saoPaulo(t)

	tests := []struct {
		name      string
		now       time.Time
		loc       *time.Location
		wantStart string
		wantEnd   string
	}{
		{"sunday late evening stays on prior week", time.Date(2024, 6, 9, 23, 50, 0, 0, sp), sp, "2024-05-27", "2024-06-02"},
		{"monday just after midnight", time.Date(2024, 6, 10, 0, 5, 0, 0, sp), sp, "2024-06-03", "2024-06-09"},
		{"monday morning", time.Date(2024, 6, 10, 9, 3, 0, 0, sp), sp, "2024-06-03", "2024-06-09"},
		{"wednesday", time.Date(2024, 6, 12, 15, 0, 0, 0, sp), sp, "2024-06-03", "2024-06-09"},
		{"saturday", time.Date(2024, 6, 15, 12, 0, 0, 0, sp), sp, "2024-06-03", "2024-06-09"},
		{"utc instant read in zone", time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC), sp, "2024-05-27", "2024-06-02"},
		{"same utc instant in utc", time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC), time.UTC, "2024-06-03", "2024-06-09"},
		{"year boundary", time.Date(2025, 1, 1, 10, 0, 0, 0, sp), sp, "2024-12-23", "2024-12-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PreviousWeek(tt.now, tt.loc)
			if w.Since() != tt.wantStart || w.Until() != tt.wantEnd {
				t.Errorf("PreviousWeek = %s, want %s..%s", w, tt.wantStart, tt.wantEnd)
			}
			if !w.IsISOWeek() {
				t.Errorf("window %s is not a Monday..Sunday week", w)
			}
		})
	}
}

func TestPolicyIsDue(t *testing.T) {
	sp := saoPaulo(t)
	monday0903 := time.Date(2024, 6, 10, 9, 3, 0, 0, sp)
	ago := func(d time.Duration) *time.Time {
		ts := monday0903.Add(-d)
		return &ts
	}

	tests := []struct {
		name       string
		job        model.ScheduledJob
		now        time.Time
		wantDue    bool
		wantReason string
	}{
		{
			name:       "monday 09:03 for 09:00 job",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00"},
			now:        monday0903,
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "seconds in run_time accepted",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00:00"},
			now:        monday0903,
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "five minutes early is inside window",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:08"},
			now:        monday0903,
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "six minutes late is outside window",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "08:57"},
			now:        monday0903,
			wantDue:    false,
			wantReason: ReasonOutsideWindow,
		},
		{
			name:       "wrong weekday",
			job:        model.ScheduledJob{DayOfWeek: 2, RunTime: "09:00"},
			now:        monday0903,
			wantDue:    false,
			wantReason: ReasonWrongWeekday,
		},
		{
			name:       "weekday evaluated in job zone",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "23:00"},
			now:        time.Date(2024, 6, 10, 2, 0, 0, 0, time.UTC),
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "ran ten minutes ago",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00", LastRunAt: ago(10 * time.Minute)},
			now:        monday0903,
			wantDue:    false,
			wantReason: ReasonCooldown,
		},
		{
			name:       "ran last week",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00", LastRunAt: ago(7 * 24 * time.Hour)},
			now:        monday0903,
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "cooldown boundary",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00", LastRunAt: ago(30 * time.Minute)},
			now:        monday0903,
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "invalid run time",
			job:        model.ScheduledJob{DayOfWeek: 1, RunTime: "9h"},
			now:        monday0903,
			wantDue:    false,
			wantReason: ReasonInvalidRunTime,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, reason := DefaultPolicy.IsDue(&tt.job, tt.now, sp)
			if due != tt.wantDue || reason != tt.wantReason {
				t.Errorf("IsDue = (%v, %q), want (%v, %q)", due, reason, tt.wantDue, tt.wantReason)
			}
		})
	}
}

func TestPreviousWeek_DSTTransitions(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}

	tests := []struct {
		name      string
		now       time.Time
		wantStart string
	}{
		{"spring forward sunday", time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC), "2024-02-26"},
		{"monday after spring forward", time.Date(2024, 3, 11, 4, 30, 0, 0, time.UTC), "2024-03-04"},
		{"fall back sunday night", time.Date(2024, 11, 4, 4, 30, 0, 0, time.UTC), "2024-10-21"},
		{"monday after fall back", time.Date(2024, 11, 4, 5, 30, 0, 0, time.UTC), "2024-10-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := PreviousWeek(tt.now, ny)
			if w.Since() != tt.wantStart {
				t.Errorf("PreviousWeek = %s, want week of %s", w, tt.wantStart)
			}
			if !w.IsISOWeek() {
				t.Errorf("window %s is not a Monday..Sunday week", w)
			}
		})
	}
}

func TestPolicyIsDue_DSTTransitions(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load zone: %v", err)
	}
	at := func(ts time.Time) *time.Time { return &ts }

	tests := []struct {
		name       string
		job        model.ScheduledJob
		now        time.Time
		wantDue    bool
		wantReason string
	}{
		{
			name:       "spring forward 09:00 EDT",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "09:00"},
			now:        time.Date(2024, 3, 10, 13, 2, 0, 0, time.UTC),
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "spring forward standard offset is an hour late",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "09:00"},
			now:        time.Date(2024, 3, 10, 14, 2, 0, 0, time.UTC),
			wantDue:    false,
			wantReason: ReasonOutsideWindow,
		},
		{
			name:       "run time inside skipped hour",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "02:30"},
			now:        time.Date(2024, 3, 10, 7, 0, 0, 0, time.UTC),
			wantDue:    false,
			wantReason: ReasonOutsideWindow,
		},
		{
			name:       "fall back 09:00 EST",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "09:00"},
			now:        time.Date(2024, 11, 3, 14, 2, 0, 0, time.UTC),
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name:       "fall back daylight offset is an hour early",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "09:00"},
			now:        time.Date(2024, 11, 3, 13, 2, 0, 0, time.UTC),
			wantDue:    false,
			wantReason: ReasonOutsideWindow,
		},
		{
			name:       "repeated hour first pass",
			job:        model.ScheduledJob{DayOfWeek: 0, RunTime: "01:30"},
			now:        time.Date(2024, 11, 3, 5, 32, 0, 0, time.UTC),
			wantDue:    true,
			wantReason: ReasonDue,
		},
		{
			name: "repeated hour second pass after a run",
			job: model.ScheduledJob{
				DayOfWeek: 0,
				RunTime:   "01:30",
				LastRunAt: at(time.Date(2024, 11, 3, 5, 32, 0, 0, time.UTC)),
			},
			now:        time.Date(2024, 11, 3, 6, 32, 0, 0, time.UTC),
			wantDue:    false,
			wantReason: ReasonAlreadyRan,
		},
		{
			name: "repeated hour second pass when first was missed",
			job: model.ScheduledJob{
				DayOfWeek: 0,
				RunTime:   "01:30",
				LastRunAt: at(time.Date(2024, 10, 27, 5, 31, 0, 0, time.UTC)),
			},
			now:        time.Date(2024, 11, 3, 6, 32, 0, 0, time.UTC),
			wantDue:    true,
			wantReason: ReasonDue,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			due, reason := DefaultPolicy.IsDue(&tt.job, tt.now, ny)
			if due != tt.wantDue || reason != tt.wantReason {
				t.Errorf("IsDue = (%v, %q), want (%v, %q)", due, reason, tt.wantDue, tt.wantReason)
			}
		})
	}
}

func TestIsDue_UsesDefaults(t *testing.T) {
	sp := saoPaulo(t)
	job := &model.ScheduledJob{DayOfWeek: 1, RunTime: "09:00"}

	if due, _ := IsDue(job, time.Date(2024, 6, 10, 9, 5, 0, 0, sp), sp); !due {
		t.Error("09:05 should be due for a 09:00 job")
	}
	if due, _ := IsDue(job, time.Date(2024, 6, 10, 9, 6, 0, 0, sp), sp); due {
		t.Error("09:06 should not be due for a 09:00 job")
	}
}

func TestZoneCache(t *testing.T) {
	zc := NewZoneCache()

	first, err := zc.Load("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	second, err := zc.Load("America/Sao_Paulo")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if first != second {
		t.Error("expected cached location")
	}
	if _, err := zc.Load("Mars/Olympus_Mons"); err == nil {
		t.Error("expected error for unknown zone")
	}
}
