// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"time"

	"github.com/adpulse/adpulse/internal/model"
)

// ErrorResponse represents an API error.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// ListResponse wraps a collection.
type ListResponse[T any] struct {
	Data []T `json:"data"`
}

// NewList wraps items, encoding nil as an empty array.
func NewList[T any](items []T) ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return ListResponse[T]{Data: items}
}

// GenerateReportRequest is the body of POST /reports/generate. Either
// AccountID or ClientID is required; a ClientID report is saved.
type GenerateReportRequest struct {
	AccountID      string  `json:"account_id,omitempty"`
	ClientID       string  `json:"client_id,omitempty"`
	StartDate      string  `json:"start_date"`
	EndDate        string  `json:"end_date"`
	BestAdScope    string  `json:"best_ad_scope,omitempty"`
	ReportFormatID *string `json:"report_format_id,omitempty"`
	// ClientName titles a preview rendered for a bare account id.
	ClientName string `json:"client_name,omitempty"`
	Refresh    bool   `json:"refresh,omitempty"`
}

// PreviewResponse is a rendered report as a webhook consumer would see it.
type PreviewResponse struct {
	Text    string              `json:"text"`
	Payload model.ReportPayload `json:"payload"`
}

// CreateScheduleRequest is the body of POST /schedules.
type CreateScheduleRequest struct {
	ClientID       string  `json:"client_id"`
	ReportFormatID *string `json:"report_format_id,omitempty"`
	WebhookURL     string  `json:"webhook_url"`
	DayOfWeek      *int    `json:"day_of_week"`
	RunTime        string  `json:"run_time"`
	Timezone       string  `json:"timezone,omitempty"`
	BestAdScope    string  `json:"best_ad_scope,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// UpdateScheduleRequest is the body of PATCH /schedules/{id}.
type UpdateScheduleRequest struct {
	ReportFormatID *string `json:"report_format_id,omitempty"`
	WebhookURL     *string `json:"webhook_url,omitempty"`
	DayOfWeek      *int    `json:"day_of_week,omitempty"`
	RunTime        *string `json:"run_time,omitempty"`
	Timezone       *string `json:"timezone,omitempty"`
	BestAdScope    *string `json:"best_ad_scope,omitempty"`
	IsActive       *bool   `json:"is_active,omitempty"`
}

// CreateFormatRequest is the body of POST /formats.
type CreateFormatRequest struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metrics     []model.Metric `json:"metrics"`
	IsDefault   bool           `json:"is_default,omitempty"`
}

// UpdateFormatRequest is the body of PATCH /formats/{id}. Omitted fields
// keep their stored value.
type UpdateFormatRequest struct {
	Name        *string        `json:"name,omitempty"`
	Description *string        `json:"description,omitempty"`
	Metrics     []model.Metric `json:"metrics,omitempty"`
	IsDefault   *bool          `json:"is_default,omitempty"`
}

// UpdateSettingsRequest is the body of PUT /settings.
type UpdateSettingsRequest struct {
	AccessToken string `json:"access_token"`
	APIVersion  string `json:"api_version,omitempty"`
}

// SettingsResponse never echoes the access token.
type SettingsResponse struct {
	Configured bool      `json:"configured"`
	APIVersion string    `json:"api_version"`
	UpdatedAt  time.Time `json:"updated_at,omitempty"`
}

// ToSettingsResponse converts settings for display.
func ToSettingsResponse(s *model.Settings) SettingsResponse {
	return SettingsResponse{
		Configured: s.HasToken(),
		APIVersion: s.Version(),
		UpdatedAt:  s.UpdatedAt,
	}
}

// CreateClientRequest is the body of POST /clients.
type CreateClientRequest struct {
	Name           string  `json:"name"`
	AccountID      string  `json:"account_id"`
	ReportFormatID *string `json:"report_format_id,omitempty"`
}

// UpdateClientRequest is the body of PATCH /clients/{id}.
type UpdateClientRequest struct {
	IsActive *bool `json:"is_active"`
}

// CreateAPIKeyRequest is the body of POST /api-keys.
type CreateAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

// APIKeyResponse describes a key without its secret.
type APIKeyResponse struct {
	ID            string     `json:"id"`
	Name          string     `json:"name,omitempty"`
	KeyPrefix     string     `json:"key_prefix"`
	Scopes        []string   `json:"scopes"`
	RateLimitTier string     `json:"rate_limit_tier"`
	LastUsedAt    *time.Time `json:"last_used_at,omitempty"`
	RevokedAt     *time.Time `json:"revoked_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// CreateAPIKeyResponse carries the plaintext key. It is returned once.
type CreateAPIKeyResponse struct {
	APIKeyResponse
	Key string `json:"key"`
}

// ToAPIKeyResponse converts a stored key for display.
func ToAPIKeyResponse(k *model.APIKey) APIKeyResponse {
	return APIKeyResponse{
		ID:            k.ID,
		Name:          k.Name,
		KeyPrefix:     k.KeyPrefix,
		Scopes:        k.Scopes,
		RateLimitTier: k.RateLimitTier,
		LastUsedAt:    k.LastUsedAt,
		RevokedAt:     k.RevokedAt,
		CreatedAt:     k.CreatedAt,
	}
}
