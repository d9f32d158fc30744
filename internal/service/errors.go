package service

import "errors"

// Service errors.
var (
	ErrNotConfigured     = errors.New("ads platform access token not configured")
	ErrInvalidAccount    = errors.New("account_id is required")
	ErrInvalidScope      = errors.New("invalid best_ad_scope")
	ErrClientNotFound    = errors.New("client not found")
	ErrClientInactive    = errors.New("client is inactive")
	ErrInvalidClient     = errors.New("invalid client")
	ErrFormatNotFound    = errors.New("report format not found")
	ErrInvalidFormat     = errors.New("invalid report format")
	ErrDuplicateFormat   = errors.New("report format name already exists")
	ErrScheduleNotFound  = errors.New("schedule not found")
	ErrInvalidSchedule   = errors.New("invalid schedule")
	ErrInvalidWebhookURL = errors.New("invalid webhook URL")
	ErrInvalidSettings   = errors.New("invalid settings")
	ErrReportNotFound    = errors.New("report not found")
	ErrInvalidWindow     = errors.New("invalid report window")
)
