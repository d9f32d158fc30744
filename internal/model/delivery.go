package model

import "time"

// DeliveryStatus is the outcome recorded for one webhook POST.
type DeliveryStatus string

const (
	DeliveryStatusSuccess DeliveryStatus = "success"
	DeliveryStatusFailed  DeliveryStatus = "failed"
)

// DeliveryResult is returned by the dispatcher instead of an error.
type DeliveryResult struct {
	Success    bool          `json:"success"`
	HTTPStatus int           `json:"http_status,omitempty"`
	Error      string        `json:"error,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Status maps the result to a stored delivery status.
func (r DeliveryResult) Status() DeliveryStatus {
	if r.Success {
		return DeliveryStatusSuccess
	}
	return DeliveryStatusFailed
}

// WebhookDelivery is one row of the delivery log.
type WebhookDelivery struct {
	ID         string         `json:"id"`
	ScheduleID string         `json:"schedule_id,omitempty"`
	TargetHost string         `json:"target_host"`
	Status     DeliveryStatus `json:"status"`
	HTTPStatus *int           `json:"http_status,omitempty"`
	Error      string         `json:"error,omitempty"`
	DurationMS int64          `json:"duration_ms"`
	CreatedAt  time.Time      `json:"created_at"`
}

// ReportPeriod is the window as sent to webhook consumers.
type ReportPeriod struct {
	Start string `json:"inicio"`
	End   string `json:"fim"`
}

// ReportPayload is the structured part of a webhook body.
type ReportPayload struct {
	Client      string         `json:"cliente"`
	AccountID   string         `json:"account_id"`
	Period      ReportPeriod   `json:"periodo"`
	Metrics     *ReportMetrics `json:"metricas"`
	FormatName  string         `json:"format_name"`
	GeneratedAt time.Time      `json:"gerado_em"`
}

// WebhookBody is the JSON document POSTed to a job's webhook.
type WebhookBody struct {
	Payload      ReportPayload `json:"payload"`
	WhatsAppText string        `json:"whatsapp_text"`
}
