package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/adpulse/adpulse/internal/model"
)

// DefaultReportListLimit bounds ListReports when no limit is given.
const DefaultReportListLimit = 50

const reportColumns = `id, user_id, client_id, report_format_id, title, start_date, end_date, data, status, created_at`

// CreateReport saves a generated report.
func (r *Repository) CreateReport(ctx context.Context, rep *model.Report) error {
	var data []byte
	if rep.Data != nil {
		encoded, err := json.Marshal(rep.Data)
		if err != nil {
			return fmt.Errorf("encode report data: %w", err)
		}
		data = encoded
	}

	_, err := r.pool.Exec(ctx, `
		INSERT INTO reports (`+reportColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		rep.ID, rep.UserID, rep.ClientID, rep.ReportFormatID, rep.Title,
		rep.Window.StartDate, rep.Window.EndDate, data, string(rep.Status), rep.CreatedAt,
	)
	if isForeignKeyViolation(err) {
		return ErrClientNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to create report: %w", err)
	}
	return nil
}

// GetReport returns one of the user's saved reports.
func (r *Repository) GetReport(ctx context.Context, userID, id string) (*model.Report, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+reportColumns+` FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	rep, err := scanReport(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrReportNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return rep, nil
}

// ListReports returns the user's reports, newest first. An empty clientID
// lists reports for every client.
func (r *Repository) ListReports(ctx context.Context, userID, clientID string, limit int) ([]*model.Report, error) {
	if limit <= 0 {
		limit = DefaultReportListLimit
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+reportColumns+` FROM reports
		WHERE user_id = $1 AND ($2 = '' OR client_id = $2)
		ORDER BY created_at DESC
		LIMIT $3`, userID, clientID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	var reports []*model.Report
	for rows.Next() {
		rep, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

// DeleteReport removes one of the user's saved reports.
func (r *Repository) DeleteReport(ctx context.Context, userID, id string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM reports WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("failed to delete report: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrReportNotFound
	}
	return nil
}

func scanReport(row pgx.Row) (*model.Report, error) {
	var (
		rep    model.Report
		status string
		data   []byte
	)
	if err := row.Scan(
		&rep.ID,
		&rep.UserID,
		&rep.ClientID,
		&rep.ReportFormatID,
		&rep.Title,
		&rep.Window.StartDate,
		&rep.Window.EndDate,
		&data,
		&status,
		&rep.CreatedAt,
	); err != nil {
		return nil, err
	}
	rep.Status = model.ReportStatus(status)
	if len(data) > 0 {
		var m model.ReportMetrics
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("decode report data: %w", err)
		}
		rep.Data = &m
	}
	return &rep, nil
}
