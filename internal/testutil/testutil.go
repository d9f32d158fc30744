package testutil

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/adpulse/adpulse/internal/model"
)

// Migrations lists the schema migrations in apply order.
var Migrations = []string{
	"000001_accounts",
	"000002_scheduled_reports",
	"000003_reports",
	"000004_api_keys",
	"000005_webhook_deliveries",
}

// RequireEnv returns an environment variable or skips the test if missing.
func RequireEnv(t testing.TB, key string) string {
	t.Helper()
	value := os.Getenv(key)
	if value == "" {
		t.Skipf("%s not set", key)
	}
	return value
}

const advisoryLockID int64 = 730731

// AcquireDBLock grabs a global advisory lock to serialize DB tests.
func AcquireDBLock(ctx context.Context, pool *pgxpool.Pool) (func() error, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if _, err := conn.Exec(ctx, "SELECT pg_advisory_lock($1)", advisoryLockID); err != nil {
		conn.Release()
		return nil, fmt.Errorf("acquire advisory lock: %w", err)
	}

	unlock := func() error {
		defer conn.Release()
		if _, err := conn.Exec(ctx, "SELECT pg_advisory_unlock($1)", advisoryLockID); err != nil {
			return fmt.Errorf("release advisory lock: %w", err)
		}
		return nil
	}

	return unlock, nil
}

// ResetSchema applies every down migration in reverse order, then every up
// migration.
func ResetSchema(ctx context.Context, pool *pgxpool.Pool) error {
	for i := len(Migrations) - 1; i >= 0; i-- {
		if err := applyMigration(ctx, pool, Migrations[i], "down"); err != nil {
			return err
		}
	}
	for _, name := range Migrations {
		if err := applyMigration(ctx, pool, name, "up"); err != nil {
			return err
		}
	}
	return nil
}

func applyMigration(ctx context.Context, pool *pgxpool.Pool, name, direction string) error {
	root, err := ProjectRoot()
	if err != nil {
		return err
	}

	path := filepath.Join(root, "migrations", name+"."+direction+".sql")
	sql, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s migration %s: %w", direction, name, err)
	}
	if _, err := pool.Exec(ctx, string(sql)); err != nil {
		return fmt.Errorf("apply %s migration %s: %w", direction, name, err)
	}
	return nil
}

// FlushRedis clears the current Redis database.
func FlushRedis(ctx context.Context, client *redis.Client) error {
	return client.FlushDB(ctx).Err()
}

// ProjectRoot returns the project root directory.
func ProjectRoot() (string, error) {
	_, filename, _, ok := runtime.Caller(0)
	if !ok {
		return "", fmt.Errorf("failed to resolve testutil path")
	}
	root := filepath.Clean(filepath.Join(filepath.Dir(filename), "..", ".."))
	return root, nil
}

// ============================================================================
// Test Data Factories
// ============================================================================

// UniqueID generates a unique ID for tests.
func UniqueID(prefix string) string {
	return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
}

// NewTestAPIKey creates a test API key with sensible defaults.
func NewTestAPIKey(t testing.TB, userID string) *model.APIKey {
	t.Helper()
	now := time.Now().UTC()
	return &model.APIKey{
		ID:            UniqueID("key"),
		UserID:        userID,
		KeyHash:       UniqueID("hash"),
		KeyPrefix:     "a1b2c3",
		Scopes:        []string{model.ScopeReports, model.ScopeSchedules},
		RateLimitTier: model.TierFree,
		Name:          "Test Key",
		CreatedAt:     now,
	}
}

// NewTestClient creates an active test client.
func NewTestClient(t testing.TB, userID string) *model.Client {
	t.Helper()
	now := time.Now().UTC()
	return &model.Client{
		ID:        UniqueID("client"),
		UserID:    userID,
		Name:      "Loja Teste",
		AccountID: "act_123456",
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTestSchedule creates an active Monday 09:00 Sao Paulo schedule.
func NewTestSchedule(t testing.TB, userID, clientID string) *model.ScheduledJob {
	t.Helper()
	now := time.Now().UTC()
	return &model.ScheduledJob{
		ID:          UniqueID("schedule"),
		UserID:      userID,
		ClientID:    clientID,
		WebhookURL:  "https://hooks.example.com/report",
		DayOfWeek:   1,
		RunTime:     "09:00",
		Timezone:    "America/Sao_Paulo",
		IsActive:    true,
		BestAdScope: model.BestAdScopeAll,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
