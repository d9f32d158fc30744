package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// DateLayout is the calendar-date layout used by the ads platform and the API.
const DateLayout = "2006-01-02"

// ReportWindow is an inclusive Monday..Sunday calendar range.
// Dates are stored as midnight UTC and carry no zone meaning.
type ReportWindow struct {
	StartDate time.Time
	EndDate   time.Time
}

// NewReportWindow builds the window starting at the calendar date of start.
func NewReportWindow(start time.Time) ReportWindow {
	s := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, time.UTC)
	return ReportWindow{
		StartDate: s,
		EndDate:   s.AddDate(0, 0, 6),
	}
}

// ParseReportWindow parses explicit since/until dates from an API request.
// On-demand reports accept arbitrary ranges, so only ordering is enforced.
func ParseReportWindow(since, until string) (ReportWindow, error) {
	s, err := time.Parse(DateLayout, since)
	if err != nil {
		return ReportWindow{}, fmt.Errorf("parse start date: %w", err)
	}
	u, err := time.Parse(DateLayout, until)
	if err != nil {
		return ReportWindow{}, fmt.Errorf("parse end date: %w", err)
	}
	if u.Before(s) {
		return ReportWindow{}, errors.New("end date before start date")
	}
	return ReportWindow{StartDate: s, EndDate: u}, nil
}

// Since returns the start date as YYYY-MM-DD.
func (w ReportWindow) Since() string { return w.StartDate.Format(DateLayout) }

// Until returns the end date as YYYY-MM-DD.
func (w ReportWindow) Until() string { return w.EndDate.Format(DateLayout) }

// IsISOWeek reports whether the window is exactly one Monday..Sunday week.
func (w ReportWindow) IsISOWeek() bool {
	return w.StartDate.Weekday() == time.Monday &&
		w.EndDate.Equal(w.StartDate.AddDate(0, 0, 6))
}

// String implements fmt.Stringer.
func (w ReportWindow) String() string { return w.Since() + ".." + w.Until() }

type reportWindowJSON struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// MarshalJSON encodes the window as calendar dates.
func (w ReportWindow) MarshalJSON() ([]byte, error) {
	return json.Marshal(reportWindowJSON{StartDate: w.Since(), EndDate: w.Until()})
}

// UnmarshalJSON decodes calendar dates.
func (w *ReportWindow) UnmarshalJSON(data []byte) error {
	var raw reportWindowJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	parsed, err := ParseReportWindow(raw.StartDate, raw.EndDate)
	if err != nil {
		return err
	}
	*w = parsed
	return nil
}
