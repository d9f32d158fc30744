// Package scheduler runs weekly report jobs in each job's own time zone.
package scheduler

import (
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

const (
	// DefaultCooldown suppresses a job that ran this recently.
	DefaultCooldown = 30 * time.Minute
	// DefaultWindow is how far from run_time a tick may fire a job.
	DefaultWindow = 5 * time.Minute
)

// Reasons reported by Policy.IsDue.
const (
	ReasonDue            = "due"
	ReasonCooldown       = "cooldown"
	ReasonAlreadyRan     = "already_ran"
	ReasonWrongWeekday   = "wrong_weekday"
	ReasonOutsideWindow  = "outside_window"
	ReasonInvalidRunTime = "invalid_run_time"
)

// Policy decides whether a job is due at a given instant.
type Policy struct {
	Cooldown time.Duration
	Window   time.Duration
}

// DefaultPolicy uses DefaultCooldown and DefaultWindow.
var DefaultPolicy = Policy{Cooldown: DefaultCooldown, Window: DefaultWindow}

// IsDue reports whether job is due at now using DefaultPolicy.
func IsDue(job *model.ScheduledJob, now time.Time, loc *time.Location) (bool, string) {
	return DefaultPolicy.IsDue(job, now, loc)
}

// IsDue reports whether job is due at now, evaluated in loc. A job whose
// last run is within the cooldown, or inside today's window, is never due.
func (p Policy) IsDue(job *model.ScheduledJob, now time.Time, loc *time.Location) (bool, string) {
	if job.LastRunAt != nil && now.Sub(*job.LastRunAt) < p.Cooldown {
		return false, ReasonCooldown
	}

	scheduled, err := model.ParseRunTime(job.RunTime)
	if err != nil {
		return false, ReasonInvalidRunTime
	}

	local := now.In(loc)
	if local.Weekday() != job.Weekday() {
		return false, ReasonWrongWeekday
	}

	if !p.inWindow(local, scheduled) {
		return false, ReasonOutsideWindow
	}

	// A repeated wall-clock hour (DST fall back) revisits the same window an
	// hour later, past the cooldown.
	if job.LastRunAt != nil {
		last := job.LastRunAt.In(loc)
		if sameDate(last, local) && p.inWindow(last, scheduled) {
			return false, ReasonAlreadyRan
		}
	}
	return true, ReasonDue
}

func (p Policy) inWindow(local time.Time, scheduled int) bool {
	diff := local.Hour()*60 + local.Minute() - scheduled
	if diff < 0 {
		diff = -diff
	}
	return time.Duration(diff)*time.Minute <= p.Window
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// PreviousWeek returns the most recently completed Monday..Sunday week as
// seen on the calendar in loc. On a Sunday the current week is still open,
// so the week before it is returned.
func PreviousWeek(now time.Time, loc *time.Location) model.ReportWindow {
	local := now.In(loc)
	today := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(today.Weekday()) + 6) % 7
	thisMonday := today.AddDate(0, 0, -sinceMonday)
	return model.NewReportWindow(thisMonday.AddDate(0, 0, -7))
}
