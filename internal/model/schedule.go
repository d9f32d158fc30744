package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ScheduledJob is a weekly report delivery for one client.
// The scheduler only ever writes LastRunAt.
type ScheduledJob struct {
	ID             string      `json:"id"`
	UserID         string      `json:"user_id"`
	ClientID       string      `json:"client_id"`
	ReportFormatID *string     `json:"report_format_id,omitempty"`
	WebhookURL     string      `json:"webhook_url"`
	DayOfWeek      int         `json:"day_of_week"`
	RunTime        string      `json:"run_time"`
	Timezone       string      `json:"timezone"`
	IsActive       bool        `json:"is_active"`
	BestAdScope    BestAdScope `json:"best_ad_scope"`
	LastRunAt      *time.Time  `json:"last_run_at,omitempty"`
	CreatedAt      time.Time   `json:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at"`

	// Populated by joins when jobs are listed for a tick.
	Client *Client       `json:"client,omitempty"`
	Format *ReportFormat `json:"report_format,omitempty"`
}

// Weekday returns DayOfWeek as a time.Weekday (0=Sunday).
func (j *ScheduledJob) Weekday() time.Weekday { return time.Weekday(j.DayOfWeek) }

// Validate checks the user-editable fields.
func (j *ScheduledJob) Validate() error {
	if j.ClientID == "" {
		return errors.New("client_id is required")
	}
	if j.WebhookURL == "" {
		return errors.New("webhook_url is required")
	}
	if j.DayOfWeek < 0 || j.DayOfWeek > 6 {
		return fmt.Errorf("day_of_week must be 0..6, got %d", j.DayOfWeek)
	}
	if _, err := ParseRunTime(j.RunTime); err != nil {
		return err
	}
	if j.Timezone == "" {
		return errors.New("timezone is required")
	}
	if _, err := time.LoadLocation(j.Timezone); err != nil {
		return fmt.Errorf("unknown timezone %q", j.Timezone)
	}
	if _, err := ParseBestAdScope(string(j.BestAdScope)); err != nil {
		return err
	}
	return nil
}

// ParseRunTime parses HH:MM or HH:MM:SS into minutes after midnight.
func ParseRunTime(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0, fmt.Errorf("invalid run_time %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("invalid run_time %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("invalid run_time %q", s)
	}
	if len(parts) == 3 {
		if sec, err := strconv.Atoi(parts[2]); err != nil || sec < 0 || sec > 59 {
			return 0, fmt.Errorf("invalid run_time %q", s)
		}
	}
	return hour*60 + minute, nil
}

// JobStatus is the outcome of one job within a tick.
type JobStatus string

const (
	JobStatusSuccess JobStatus = "success"
	JobStatusError   JobStatus = "error"
	JobStatusSkipped JobStatus = "skipped"
)

// JobResult reports what happened to one due job.
type JobResult struct {
	ScheduleID string    `json:"schedule_id"`
	ClientName string    `json:"client_name"`
	Status     JobStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
}

// TickResult is the aggregated outcome of one scheduler tick.
type TickResult struct {
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at"`
	Active     int         `json:"active"`
	Results    []JobResult `json:"results"`
}

// Count returns the number of results with the given status.
func (r *TickResult) Count(status JobStatus) int {
	n := 0
	for _, res := range r.Results {
		if res.Status == status {
			n++
		}
	}
	return n
}
