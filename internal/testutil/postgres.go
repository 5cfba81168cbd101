// Package testutil starts throwaway PostgreSQL databases for repository tests.
package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/cory-johannsen/raid/internal/config"
	"github.com/cory-johannsen/raid/internal/storage/postgres"
	"github.com/cory-johannsen/raid/migrations"
)

const postgresImage = "postgres:16-alpine"

// startPostgres runs a container and returns the config that reaches it. The
// container is terminated when t ends.
//
// Precondition: Docker must be available.
func startPostgres(t *testing.T, ctx context.Context) config.DatabaseConfig {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        postgresImage,
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "raid",
				"POSTGRES_PASSWORD": "raid",
				"POSTGRES_DB":       "raid_test",
			},
			// postgres logs readiness twice: once for the init server, once for the real one.
			WaitingFor: wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("starting %s: %v", postgresImage, err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("container port: %v", err)
	}
	return config.DatabaseConfig{
		Host:             host,
		Port:             port.Int(),
		User:             "raid",
		Password:         "raid",
		Name:             "raid_test",
		SSLMode:          "disable",
		MaxConns:         4,
		MinConns:         1,
		MaxConnLifetime:  5 * time.Minute,
		StatementTimeout: 10 * time.Second,
	}
}

// migrateUp applies the embedded schema the same way `raid migrate` does.
func migrateUp(t *testing.T, cfg config.DatabaseConfig) {
	t.Helper()
	m, err := migrations.New(cfg.DSN())
	if err != nil {
		t.Fatalf("migrator: %v", err)
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		t.Fatalf("migrating up: %v", err)
	}
	if _, dirty, err := m.Version(); err != nil || dirty {
		t.Fatalf("schema version after up: dirty=%v err=%v", dirty, err)
	}
}

// NewMigratedPool starts a PostgreSQL container, applies every migration and
// returns a pool built by postgres.NewPool. Skipped under -short.
//
// Postcondition: the pool and the container are released when t ends.
func NewMigratedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()
	start := time.Now()

	cfg := startPostgres(t, ctx)
	migrateUp(t, cfg)

	pool, err := postgres.NewPool(ctx, cfg, 0, nil)
	if err != nil {
		t.Fatalf("connecting to test postgres: %v", err)
	}
	t.Cleanup(pool.Close)
	t.Logf("migrated %s ready [%s]", postgresImage, time.Since(start))
	return pool.DB()
}
