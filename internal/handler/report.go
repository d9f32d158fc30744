package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/report"
	"github.com/adpulse/adpulse/internal/service"
)

// ReportGenerator generates and looks up reports.
type ReportGenerator interface {
	Generate(ctx context.Context, input service.GenerateInput) (*model.ReportMetrics, error)
	GenerateForClient(ctx context.Context, input service.ClientReportInput) (*model.Report, error)
	GetReport(ctx context.Context, userID, id string) (*model.Report, error)
	ListReports(ctx context.Context, userID, clientID string, limit int) ([]*model.Report, error)
	DeleteReport(ctx context.Context, userID, id string) error
}

// FormatGetter loads one of the user's report formats.
type FormatGetter interface {
	Get(ctx context.Context, userID, id string) (*model.ReportFormat, error)
}

// ReportHandler handles on-demand report generation and report history.
type ReportHandler struct {
	svc       ReportGenerator
	formats   FormatGetter
	formatter *report.Formatter
	logger    *slog.Logger
	now       func() time.Time
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(svc ReportGenerator, formats FormatGetter, formatter *report.Formatter, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{
		svc:       svc,
		formats:   formats,
		formatter: formatter,
		logger:    logger,
		now:       time.Now,
	}
}

// parseGenerate validates the shared part of generate and preview requests.
func parseGenerate(w http.ResponseWriter, req *dto.GenerateReportRequest) (model.ReportWindow, model.BestAdScope, bool) {
	window, err := model.ParseReportWindow(req.StartDate, req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_WINDOW",
			fmt.Sprintf("start_date and end_date must be YYYY-MM-DD with start <= end: %v", err))
		return model.ReportWindow{}, "", false
	}
	scope, err := model.ParseBestAdScope(req.BestAdScope)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "best_ad_scope must be all, by_campaign or by_objective")
		return model.ReportWindow{}, "", false
	}
	return window, scope, true
}

// Generate handles POST /api/v1/reports/generate.
// With client_id the report is saved and returned with 201; with account_id
// the metrics are returned directly.
func (h *ReportHandler) Generate(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.GenerateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	window, scope, ok := parseGenerate(w, &req)
	if !ok {
		return
	}

	if req.ClientID != "" {
		rec, err := h.svc.GenerateForClient(r.Context(), service.ClientReportInput{
			UserID:         uid,
			ClientID:       req.ClientID,
			ReportFormatID: req.ReportFormatID,
			Window:         window,
			BestAdScope:    scope,
		})
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		h.logger.Info("report_saved", "report_id", rec.ID, "client_id", rec.ClientID, "window", window.String())
		writeJSON(w, http.StatusCreated, rec)
		return
	}

	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "account_id or client_id is required")
		return
	}
	m, err := h.svc.Generate(r.Context(), service.GenerateInput{
		UserID:      uid,
		AccountID:   req.AccountID,
		Window:      window,
		BestAdScope: scope,
		SkipCache:   req.Refresh,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Preview handles POST /api/v1/reports/preview. It generates the report and
// renders it exactly as a scheduled delivery would, without sending it.
func (h *ReportHandler) Preview(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.GenerateReportRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	window, scope, ok := parseGenerate(w, &req)
	if !ok {
		return
	}
	if req.AccountID == "" {
		writeError(w, http.StatusBadRequest, "INVALID_ACCOUNT", "account_id is required")
		return
	}

	var format *model.ReportFormat
	if req.ReportFormatID != nil && *req.ReportFormatID != "" {
		f, err := h.formats.Get(r.Context(), uid, *req.ReportFormatID)
		if err != nil {
			handleServiceError(w, h.logger, err)
			return
		}
		format = f
	}

	m, err := h.svc.Generate(r.Context(), service.GenerateInput{
		UserID:      uid,
		AccountID:   req.AccountID,
		Window:      window,
		BestAdScope: scope,
		SkipCache:   req.Refresh,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	name := req.ClientName
	if name == "" {
		name = req.AccountID
	}
	rendered := h.formatter.Render(report.RenderInput{
		Metrics:     m,
		Format:      format,
		ClientName:  name,
		AccountID:   req.AccountID,
		Window:      window,
		GeneratedAt: h.now(),
	})
	writeJSON(w, http.StatusOK, dto.PreviewResponse{Text: rendered.Text, Payload: rendered.Body.Payload})
}

// Get handles GET /api/v1/reports/{id}.
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	rec, err := h.svc.GetReport(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/v1/reports/{id}.
func (h *ReportHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.DeleteReport(r.Context(), uid, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("report_deleted", "report_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// List handles GET /api/v1/reports?client_id=&limit=.
func (h *ReportHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	reports, err := h.svc.ListReports(r.Context(), uid, r.URL.Query().Get("client_id"), parseLimit(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(reports))
}
