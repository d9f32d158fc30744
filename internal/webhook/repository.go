package webhook

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/lib/pq"

	"github.com/adpulse/adpulse/internal/model"
)

// DefaultDeliveryListLimit caps delivery log listings.
const DefaultDeliveryListLimit = 50

// Repository stores the webhook delivery log.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new delivery log repository.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// RecordDelivery appends one delivery attempt to the log.
func (r *Repository) RecordDelivery(ctx context.Context, d *model.WebhookDelivery) error {
	query := `
		INSERT INTO webhook_deliveries (
			id, schedule_id, target_host, status, http_status,
			error, duration_ms, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.ExecContext(ctx, query,
		d.ID,
		nullString(d.ScheduleID),
		d.TargetHost,
		string(d.Status),
		d.HTTPStatus,
		nullString(d.Error),
		d.DurationMS,
		d.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert webhook delivery: %w", err)
	}
	return nil
}

// DeliveryFilter narrows a delivery log listing.
type DeliveryFilter struct {
	ScheduleID string
	Statuses   []model.DeliveryStatus
	Limit      int
}

// ListDeliveries returns the newest deliveries matching filter.
func (r *Repository) ListDeliveries(ctx context.Context, filter DeliveryFilter) ([]*model.WebhookDelivery, error) {
	limit := filter.Limit
	if limit <= 0 || limit > DefaultDeliveryListLimit {
		limit = DefaultDeliveryListLimit
	}

	var statuses []string
	for _, s := range filter.Statuses {
		statuses = append(statuses, string(s))
	}

	query := `
		SELECT id, schedule_id, target_host, status, http_status,
			   error, duration_ms, created_at
		FROM webhook_deliveries
		WHERE ($1 = '' OR schedule_id = $1)
		  AND (cardinality($2::text[]) = 0 OR status = ANY($2::text[]))
		ORDER BY created_at DESC, id DESC
		LIMIT $3
	`

	if statuses == nil {
		statuses = []string{}
	}
	rows, err := r.db.QueryContext(ctx, query, filter.ScheduleID, pq.Array(statuses), limit)
	if err != nil {
		return nil, fmt.Errorf("query webhook deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*model.WebhookDelivery
	for rows.Next() {
		var (
			d          model.WebhookDelivery
			scheduleID sql.NullString
			status     string
			httpStatus sql.NullInt64
			errMsg     sql.NullString
		)
		if err := rows.Scan(
			&d.ID,
			&scheduleID,
			&d.TargetHost,
			&status,
			&httpStatus,
			&errMsg,
			&d.DurationMS,
			&d.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan webhook delivery: %w", err)
		}
		d.ScheduleID = scheduleID.String
		d.Status = model.DeliveryStatus(status)
		d.Error = errMsg.String
		if httpStatus.Valid {
			code := int(httpStatus.Int64)
			d.HTTPStatus = &code
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
