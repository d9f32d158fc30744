package repository

import "errors"

// Sentinel errors returned by lookups. Callers map them with errors.Is.
var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrClientNotFound   = errors.New("client not found")
	ErrFormatNotFound   = errors.New("report format not found")
	ErrScheduleNotFound = errors.New("scheduled report not found")
	ErrReportNotFound   = errors.New("report not found")
	ErrDuplicateFormat  = errors.New("report format name already exists")
)
