//go:build integration

package testutil

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pawtap/server/internal/app"
	"github.com/pawtap/server/internal/cache"
	"github.com/pawtap/server/internal/game"
	"github.com/pawtap/server/internal/handler"
	"github.com/pawtap/server/internal/infra"
)

const (
	TestJWTSecret   = "integration-test-secret-0123456789abcdef"
	TestBotToken    = "424242:integration-bot-token"
	TestDBHost      = "localhost"
	TestDBPort      = 5435
	TestDBUser      = "pawtap"
	TestDBPass      = "pawtap"
	TestDBName      = "pawtap_test"
	TestAdminPass   = "integration-admin-pass"
	TestCORSOrigins = "*"
)

// TestEnv holds all resources for an integration test.
type TestEnv struct {
	Server *httptest.Server
	Pool   *pgxpool.Pool
	App    *app.App
	t      *testing.T
}

var (
	sharedPool *pgxpool.Pool
	poolOnce   sync.Once
	poolErr    error
)

func testDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, TestDBName)
}

func bootstrapDSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
		TestDBUser, TestDBPass, TestDBHost, TestDBPort, "pawtap")
}

func ensureTestDB() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	bPool, err := pgxpool.New(ctx, bootstrapDSN())
	if err != nil {
		return fmt.Errorf("connect bootstrap db: %w", err)
	}
	defer bPool.Close()

	var exists bool
	err = bPool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM pg_database WHERE datname = $1)", TestDBName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check db exists: %w", err)
	}

	if !exists {
		if _, err := bPool.Exec(ctx, "CREATE DATABASE "+TestDBName); err != nil {
			return fmt.Errorf("create test db: %w", err)
		}
	}
	return nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func getSharedPool(t *testing.T) *pgxpool.Pool {
	t.Helper()
	poolOnce.Do(func() {
		if err := ensureTestDB(); err != nil {
			poolErr = err
			return
		}
		if err := infra.RunMigrations(testDSN(), quietLogger()); err != nil {
			poolErr = fmt.Errorf("run migrations: %w", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		poolCfg, err := pgxpool.ParseConfig(testDSN())
		if err != nil {
			poolErr = fmt.Errorf("parse pool config: %w", err)
			return
		}
		poolCfg.MaxConns = 10
		poolCfg.MinConns = 1

		sharedPool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			poolErr = fmt.Errorf("create pool: %w", err)
		}
	})

	if poolErr != nil {
		t.Fatalf("failed to initialize test pool: %v", poolErr)
	}
	return sharedPool
}

// TestConfig is the API configuration integration tests run with.
func TestConfig() *infra.Config {
	return &infra.Config{
		JWTSecret:          TestJWTSecret,
		JWTPlayerExpiry:    time.Hour,
		JWTAdminExpiry:     time.Hour,
		TelegramBotToken:   TestBotToken,
		InitDataMaxAge:     time.Hour,
		CORSAllowedOrigins: TestCORSOrigins,
		SessionIdleTimeout: time.Minute,
		SnapshotInterval:   time.Minute,
		TapFlushInterval:   time.Minute,
		TapRatePerSecond:   1000,
		TapBurst:           1000,
		CareCooldown:       time.Minute,
		LoginRateLimit:     1000,
	}
}

// NewTestEnv creates a test environment with an httptest.Server backed by the real router and test DB.
func NewTestEnv(t *testing.T) *TestEnv {
	t.Helper()

	pool := getSharedPool(t)
	logger := quietLogger()

	ctx, cancel := context.WithCancel(context.Background())
	a := app.New(ctx, app.Deps{
		Config: TestConfig(),
		Pool:   pool,
		Cache:  cache.New(cache.NewMemoryBackend(), logger),
		Rules:  game.DefaultRules(),
		Checks: map[string]handler.HealthCheck{
			"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
		},
		Logger: logger,
	})

	server := httptest.NewServer(a.Router)

	env := &TestEnv{
		Server: server,
		Pool:   pool,
		App:    a,
		t:      t,
	}

	t.Cleanup(func() {
		server.Close()
		cancel()
		env.CleanAll()
	})

	// Clean before test to ensure isolation
	env.CleanAll()

	return env
}
