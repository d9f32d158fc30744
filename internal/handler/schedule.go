package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/adpulse/adpulse/internal/handler/dto"
	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/service"
)

// ScheduleManager manages scheduled report jobs.
type ScheduleManager interface {
	Create(ctx context.Context, input service.CreateScheduleInput) (*model.ScheduledJob, error)
	Get(ctx context.Context, userID, id string) (*model.ScheduledJob, error)
	List(ctx context.Context, userID string) ([]*model.ScheduledJob, error)
	Update(ctx context.Context, userID, id string, input service.UpdateScheduleInput) (*model.ScheduledJob, error)
	Delete(ctx context.Context, userID, id string) error
	Deliveries(ctx context.Context, userID, id string, limit int) ([]*model.WebhookDelivery, error)
}

// JobRunner runs the scheduler on demand.
type JobRunner interface {
	Tick(ctx context.Context) (*model.TickResult, error)
	RunJobNow(ctx context.Context, userID, scheduleID string) (model.JobResult, error)
}

// ScheduleHandler handles schedule CRUD, test runs and manual ticks.
type ScheduleHandler struct {
	svc    ScheduleManager
	runner JobRunner
	logger *slog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(svc ScheduleManager, runner JobRunner, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{svc: svc, runner: runner, logger: logger}
}

// Create handles POST /api/v1/schedules.
func (h *ScheduleHandler) Create(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.CreateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.DayOfWeek == nil {
		writeError(w, http.StatusBadRequest, "VALIDATION_ERROR", "day_of_week is required (0=Sunday .. 6=Saturday)")
		return
	}
	scope, err := model.ParseBestAdScope(req.BestAdScope)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "best_ad_scope must be all, by_campaign or by_objective")
		return
	}

	job, err := h.svc.Create(r.Context(), service.CreateScheduleInput{
		UserID:         uid,
		ClientID:       req.ClientID,
		ReportFormatID: req.ReportFormatID,
		WebhookURL:     req.WebhookURL,
		DayOfWeek:      *req.DayOfWeek,
		RunTime:        req.RunTime,
		Timezone:       req.Timezone,
		BestAdScope:    scope,
		IsActive:       req.IsActive,
	})
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}

	h.logger.Info("schedule_created",
		"schedule_id", job.ID,
		"client_id", job.ClientID,
		"day_of_week", job.DayOfWeek,
		"run_time", job.RunTime,
		"timezone", job.Timezone,
	)
	writeJSON(w, http.StatusCreated, job)
}

// Get handles GET /api/v1/schedules/{id}.
func (h *ScheduleHandler) Get(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	job, err := h.svc.Get(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// List handles GET /api/v1/schedules.
func (h *ScheduleHandler) List(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	jobs, err := h.svc.List(r.Context(), uid)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(jobs))
}

// Update handles PATCH /api/v1/schedules/{id}.
func (h *ScheduleHandler) Update(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req dto.UpdateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	input := service.UpdateScheduleInput{
		ReportFormatID: req.ReportFormatID,
		WebhookURL:     req.WebhookURL,
		DayOfWeek:      req.DayOfWeek,
		RunTime:        req.RunTime,
		Timezone:       req.Timezone,
		IsActive:       req.IsActive,
	}
	if req.BestAdScope != nil {
		scope, err := model.ParseBestAdScope(*req.BestAdScope)
		if err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_SCOPE", "best_ad_scope must be all, by_campaign or by_objective")
			return
		}
		input.BestAdScope = &scope
	}

	job, err := h.svc.Update(r.Context(), uid, chi.URLParam(r, "id"), input)
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("schedule_updated", "schedule_id", job.ID)
	writeJSON(w, http.StatusOK, job)
}

// Delete handles DELETE /api/v1/schedules/{id}.
func (h *ScheduleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")
	if err := h.svc.Delete(r.Context(), uid, id); err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("schedule_deleted", "schedule_id", id)
	w.WriteHeader(http.StatusNoContent)
}

// Run handles POST /api/v1/schedules/{id}/run. The job is generated and
// delivered now; its cooldown and last run are left alone.
func (h *ScheduleHandler) Run(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	res, err := h.runner.RunJobNow(r.Context(), uid, chi.URLParam(r, "id"))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Deliveries handles GET /api/v1/schedules/{id}/deliveries.
func (h *ScheduleHandler) Deliveries(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	deliveries, err := h.svc.Deliveries(r.Context(), uid, chi.URLParam(r, "id"), parseLimit(r))
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewList(deliveries))
}

// Tick handles POST /api/v1/scheduler/tick, for deployments that drive
// the scheduler from an external cron instead of the in-process loop.
func (h *ScheduleHandler) Tick(w http.ResponseWriter, r *http.Request) {
	res, err := h.runner.Tick(r.Context())
	if err != nil {
		handleServiceError(w, h.logger, err)
		return
	}
	h.logger.Info("scheduler_tick_triggered",
		"active", res.Active,
		"success", res.Count(model.JobStatusSuccess),
		"error", res.Count(model.JobStatusError),
	)
	writeJSON(w, http.StatusOK, res)
}
