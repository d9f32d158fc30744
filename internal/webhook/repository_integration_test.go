//go:build integration

package webhook

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/adpulse/adpulse/internal/model"
	"github.com/adpulse/adpulse/internal/testutil"
)

func newDeliveryRepo(t *testing.T) (context.Context, *Repository, *pgxpool.Pool) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration tests in short mode")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, testutil.RequireEnv(t, "TEST_DATABASE_URL"))
	if err != nil {
		t.Fatalf("connect db: %v", err)
	}
	t.Cleanup(pool.Close)

	unlock, err := testutil.AcquireDBLock(ctx, pool)
	if err != nil {
		t.Fatalf("acquire db lock: %v", err)
	}
	t.Cleanup(func() { _ = unlock() })

	if err := testutil.ResetSchema(ctx, pool); err != nil {
		t.Fatalf("reset schema: %v", err)
	}

	db := stdlib.OpenDBFromPool(pool)
	t.Cleanup(func() { _ = db.Close() })
	return ctx, NewRepository(db), pool
}

func TestIntegrationDeliveryRepository_RecordAndList(t *testing.T) {
	ctx, repo, pool := newDeliveryRepo(t)

	if _, err := pool.Exec(ctx, `
		INSERT INTO clients (id, user_id, name, account_id) VALUES ('c1', 'u1', 'Loja', 'act_1');
		INSERT INTO scheduled_reports (id, user_id, client_id, webhook_url, day_of_week, run_time)
		VALUES ('s1', 'u1', 'c1', 'https://hooks.example.com', 1, '09:00')`); err != nil {
		t.Fatalf("seed schedule: %v", err)
	}

	base := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	ok := 200
	entries := []*model.WebhookDelivery{
		{ID: "d1", ScheduleID: "s1", TargetHost: "hooks.example.com", Status: model.DeliveryStatusSuccess, HTTPStatus: &ok, DurationMS: 120, CreatedAt: base},
		{ID: "d2", ScheduleID: "s1", TargetHost: "hooks.example.com", Status: model.DeliveryStatusFailed, Error: "timeout", DurationMS: 15000, CreatedAt: base.Add(time.Minute)},
		{ID: "d3", TargetHost: "other.example.com", Status: model.DeliveryStatusSuccess, HTTPStatus: &ok, CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, e := range entries {
		if err := repo.RecordDelivery(ctx, e); err != nil {
			t.Fatalf("RecordDelivery %s failed: %v", e.ID, err)
		}
	}

	all, err := repo.ListDeliveries(ctx, DeliveryFilter{ScheduleID: "s1"})
	if err != nil {
		t.Fatalf("ListDeliveries failed: %v", err)
	}
	if len(all) != 2 || all[0].ID != "d2" {
		t.Fatalf("expected d2 then d1, got %d entries", len(all))
	}
	if all[0].HTTPStatus != nil || all[0].Error != "timeout" {
		t.Errorf("failed entry not restored: %+v", all[0])
	}
	if all[1].HTTPStatus == nil || *all[1].HTTPStatus != 200 {
		t.Errorf("http status not restored: %+v", all[1])
	}

	failed, err := repo.ListDeliveries(ctx, DeliveryFilter{Statuses: []model.DeliveryStatus{model.DeliveryStatusFailed}})
	if err != nil {
		t.Fatalf("ListDeliveries failed: %v", err)
	}
	if len(failed) != 1 || failed[0].ID != "d2" {
		t.Errorf("status filter returned %d entries", len(failed))
	}

	unscheduled, err := repo.ListDeliveries(ctx, DeliveryFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListDeliveries failed: %v", err)
	}
	if len(unscheduled) != 1 || unscheduled[0].ScheduleID != "" {
		t.Errorf("limit or null schedule handling wrong: %+v", unscheduled)
	}
}
