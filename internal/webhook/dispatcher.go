package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/adpulse/adpulse/internal/metrics"
	"github.com/adpulse/adpulse/internal/model"
)

// maxResponseDrain bounds how much of a response body is read.
const maxResponseDrain = 1024

// DeliveryLog records delivery attempts.
type DeliveryLog interface {
	RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error
}

// Target identifies where a report is delivered.
type Target struct {
	URL        string
	ScheduleID string
}

// DispatcherConfig configures a Dispatcher.
type DispatcherConfig struct {
	Timeout       time.Duration
	SigningSecret string
}

// Dispatcher POSTs rendered reports to webhook consumers. Each call makes
// exactly one attempt.
type Dispatcher struct {
	client  *http.Client
	signer  *Signer
	log     DeliveryLog
	logger  *slog.Logger
	metrics metrics.Recorder
	now     func() time.Time
}

// NewDispatcher creates a Dispatcher. log may be nil.
func NewDispatcher(cfg DispatcherConfig, log DeliveryLog, logger *slog.Logger, recorder metrics.Recorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		client:  NewHTTPClient(cfg.Timeout),
		signer:  NewSigner(cfg.SigningSecret),
		log:     log,
		logger:  logger.With("component", "webhook.dispatcher"),
		metrics: recorder,
		now:     time.Now,
	}
}

// Dispatch sends body to target. Failures are reported in the result and
// never returned as errors.
func (d *Dispatcher) Dispatch(ctx context.Context, target Target, body model.WebhookBody) model.DeliveryResult {
	deliveryID := ulid.Make().String()
	host := ExtractHost(target.URL)
	start := d.now()

	result := d.send(ctx, deliveryID, target.URL, body)
	result.Duration = d.now().Sub(start)

	outcome := metrics.OutcomeSuccess
	if !result.Success {
		outcome = metrics.OutcomeError
	}
	d.metrics.ObserveWebhookDelivery(outcome, result.Duration)

	if result.Success {
		d.logger.Info("webhook delivered",
			"delivery_id", deliveryID,
			"schedule_id", target.ScheduleID,
			"target_host", host,
			"http_status", result.HTTPStatus,
			"duration_ms", result.Duration.Milliseconds(),
		)
	} else {
		d.logger.Warn("webhook delivery failed",
			"delivery_id", deliveryID,
			"schedule_id", target.ScheduleID,
			"target_host", host,
			"http_status", result.HTTPStatus,
			"error", result.Error,
		)
	}

	d.record(ctx, deliveryID, target, host, result)
	return result
}

func (d *Dispatcher) send(ctx context.Context, deliveryID, targetURL string, body model.WebhookBody) model.DeliveryResult {
	if targetURL == "" {
		return model.DeliveryResult{Error: ErrEmptyTarget.Error()}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return model.DeliveryResult{Error: fmt.Sprintf("encode body: %v", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, targetURL, bytes.NewReader(payload))
	if err != nil {
		return model.DeliveryResult{Error: "invalid webhook URL"}
	}

	timestamp, signature := d.signer.Sign(payload)
	SetWebhookHeaders(req, HTTPHeaders{
		Signature:  signature,
		Timestamp:  timestamp,
		DeliveryID: deliveryID,
	})

	resp, err := d.client.Do(req)
	if err != nil {
		return model.DeliveryResult{Error: transportError(err)}
	}
	defer resp.Body.Close()

	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseDrain))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return model.DeliveryResult{Success: true, HTTPStatus: resp.StatusCode}
	}
	return model.DeliveryResult{
		HTTPStatus: resp.StatusCode,
		Error:      fmt.Sprintf("HTTP %d", resp.StatusCode),
	}
}

// transportError describes a client failure without the request URL.
func transportError(err error) string {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return "timeout"
		}
		err = urlErr.Err
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return err.Error()
}

func (d *Dispatcher) record(ctx context.Context, deliveryID string, target Target, host string, result model.DeliveryResult) {
	if d.log == nil {
		return
	}

	entry := &model.WebhookDelivery{
		ID:         deliveryID,
		ScheduleID: target.ScheduleID,
		TargetHost: host,
		Status:     result.Status(),
		Error:      result.Error,
		DurationMS: result.Duration.Milliseconds(),
		CreatedAt:  d.now().UTC(),
	}
	if result.HTTPStatus != 0 {
		code := result.HTTPStatus
		entry.HTTPStatus = &code
	}

	// The tick context may already be done; the log write gets its own budget.
	logCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := d.log.RecordDelivery(logCtx, entry); err != nil {
		d.logger.Warn("failed to record webhook delivery",
			"delivery_id", deliveryID,
			"error", err,
		)
	}
}
