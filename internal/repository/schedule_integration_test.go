//go:build integration

package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/testutil"
)

func seedClient(ctx context.Context, t *testing.T, repo *Repository, userID string, active bool) *model.Client {
	t.Helper()
	c := testutil.NewTestClient(t, userID)
	c.IsActive = active
	if err := repo.CreateClient(ctx, c); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	return c
}

func TestIntegrationScheduleRepository_ListActiveJoinsClientAndFormat(t *testing.T) {
	ctx, repo := newTestRepo(t)

	formats, err := repo.SeedDefaultFormats(ctx, "user-1")
	if err != nil {
		t.Fatalf("SeedDefaultFormats failed: %v", err)
	}

	client := testutil.NewTestClient(t, "user-1")
	client.ReportFormatID = &formats[0].ID
	if err := repo.CreateClient(ctx, client); err != nil {
		t.Fatalf("CreateClient failed: %v", err)
	}
	inactiveClient := seedClient(ctx, t, repo, "user-1", false)

	job := testutil.NewTestSchedule(t, "user-1", client.ID)
	if err := repo.CreateSchedule(ctx, job); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	paused := testutil.NewTestSchedule(t, "user-1", client.ID)
	paused.IsActive = false
	if err := repo.CreateSchedule(ctx, paused); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}
	orphaned := testutil.NewTestSchedule(t, "user-1", inactiveClient.ID)
	if err := repo.CreateSchedule(ctx, orphaned); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	jobs, err := repo.ListActiveSchedules(ctx)
	if err != nil {
		t.Fatalf("ListActiveSchedules failed: %v", err)
	}
	if len(jobs) != 1 {
		t.Fatalf("active jobs = %d, want 1", len(jobs))
	}
	got := jobs[0]
	if got.ID != job.ID || got.RunTime != "09:00" || got.DayOfWeek != 1 {
		t.Errorf("unexpected job %+v", got)
	}
	if got.Client == nil || got.Client.Name != client.Name || got.Client.AccountID != client.AccountID {
		t.Errorf("client not joined: %+v", got.Client)
	}
	if got.Format == nil || got.Format.Name != formats[0].Name || len(got.Format.Metrics) == 0 {
		t.Errorf("format not inherited from client: %+v", got.Format)
	}
	if got.LastRunAt != nil {
		t.Error("new schedule should not have last_run_at")
	}
}

func TestIntegrationScheduleRepository_MarkRun(t *testing.T) {
	ctx, repo := newTestRepo(t)

	client := seedClient(ctx, t, repo, "user-1", true)
	job := testutil.NewTestSchedule(t, "user-1", client.ID)
	if err := repo.CreateSchedule(ctx, job); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	at := time.Date(2024, 6, 10, 12, 3, 0, 0, time.UTC)
	if err := repo.MarkScheduleRun(ctx, job.ID, at); err != nil {
		t.Fatalf("MarkScheduleRun failed: %v", err)
	}
	got, err := repo.GetSchedule(ctx, "user-1", job.ID)
	if err != nil {
		t.Fatalf("GetSchedule failed: %v", err)
	}
	if got.LastRunAt == nil || !got.LastRunAt.Equal(at) {
		t.Errorf("last_run_at = %v, want %v", got.LastRunAt, at)
	}

	if err := repo.MarkScheduleRun(ctx, "missing", at); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestIntegrationScheduleRepository_UpdateAndDelete(t *testing.T) {
	ctx, repo := newTestRepo(t)

	client := seedClient(ctx, t, repo, "user-1", true)
	job := testutil.NewTestSchedule(t, "user-1", client.ID)
	if err := repo.CreateSchedule(ctx, job); err != nil {
		t.Fatalf("CreateSchedule failed: %v", err)
	}

	day := 5
	scope := model.BestAdScopeByCampaign
	updated, err := repo.UpdateSchedule(ctx, "user-1", job.ID, ScheduleUpdate{DayOfWeek: &day, BestAdScope: &scope})
	if err != nil {
		t.Fatalf("UpdateSchedule failed: %v", err)
	}
	if updated.DayOfWeek != 5 || updated.BestAdScope != model.BestAdScopeByCampaign {
		t.Errorf("update not applied: %+v", updated)
	}
	if updated.WebhookURL != job.WebhookURL {
		t.Errorf("untouched field changed: %q", updated.WebhookURL)
	}

	if _, err := repo.UpdateSchedule(ctx, "user-2", job.ID, ScheduleUpdate{DayOfWeek: &day}); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("update by other user: expected ErrScheduleNotFound, got %v", err)
	}

	if err := repo.DeleteSchedule(ctx, "user-1", job.ID); err != nil {
		t.Fatalf("DeleteSchedule failed: %v", err)
	}
	if _, err := repo.GetSchedule(ctx, "user-1", job.ID); !errors.Is(err, ErrScheduleNotFound) {
		t.Errorf("expected ErrScheduleNotFound after delete, got %v", err)
	}
}

func TestIntegrationScheduleRepository_UnknownClient(t *testing.T) {
	ctx, repo := newTestRepo(t)

	job := testutil.NewTestSchedule(t, "user-1", "missing-client")
	if err := repo.CreateSchedule(ctx, job); !errors.Is(err, ErrClientNotFound) {
		t.Errorf("expected ErrClientNotFound, got %v", err)
	}
}
