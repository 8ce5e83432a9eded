// Package testhelpers spins up disposable PostgreSQL containers for
// integration tests.
package testhelpers

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/quantline/papertrader/internal/db"
)

// PostgresContainer holds the container and a connected pool
type PostgresContainer struct {
	Container     *postgres.PostgresContainer
	ConnectionStr string
	Pool          *pgxpool.Pool
	t             *testing.T
}

// SetupTestDatabase starts a PostgreSQL container, runs all migrations,
// and returns a connected pool. Everything tears down with the test.
func SetupTestDatabase(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("papertrader_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpassword"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	sqlDB, err := db.OpenForMigration(connStr)
	if err != nil {
		t.Fatalf("failed to open database for migration: %v", err)
	}
	if err := db.NewMigrator(sqlDB).Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}
	if err := sqlDB.Close(); err != nil {
		t.Fatalf("failed to close migration connection: %v", err)
	}

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to create connection pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := pool.Ping(ctx); err != nil {
		t.Fatalf("failed to ping database: %v", err)
	}

	return &PostgresContainer{
		Container:     container,
		ConnectionStr: connStr,
		Pool:          pool,
		t:             t,
	}
}

// TruncateAll clears every data table between tests
func (tc *PostgresContainer) TruncateAll() {
	tc.t.Helper()
	ctx := context.Background()
	tables := []string{
		"trades", "positions", "candles", "features",
		"nav", "event_log", "config", "sentiment",
	}
	for _, table := range tables {
		if _, err := tc.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			tc.t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}
