package integration

import (
	"context"
	"os"
	"testing"

	"github.com/filingpulse/filingpulse/internal/domain"
	postgres "github.com/filingpulse/filingpulse/internal/infrastructure/persistence/postgres"
	"github.com/stretchr/testify/require"
)

const truncateAll = `TRUNCATE TABLE ratings, generated_content, documents, filings, pipeline_runs, jobs, companies CASCADE`

// getTestDSN returns the integration database DSN, skipping the test when it
// is not configured.
func getTestDSN(t *testing.T) string {
	t.Helper()

	dsn := os.Getenv("FILINGPULSE_STORAGE_DSN")
	if dsn == "" {
		t.Skip("set FILINGPULSE_STORAGE_DSN to run integration tests")
	}
	return dsn
}

// setupStore connects to the test database, runs migrations, and truncates
// every table before and after the test.
func setupStore(t *testing.T) *postgres.Store {
	t.Helper()

	ctx := context.Background()
	store, err := postgres.NewPostgresStore(ctx, getTestDSN(t))
	require.NoError(t, err)

	_, err = store.Pool().Exec(ctx, truncateAll)
	require.NoError(t, err)

	t.Cleanup(func() {
		store.Pool().Exec(ctx, truncateAll)
		store.Close()
	})
	return store
}

// setupStoreWithClock is setupStore with a pinned clock.
func setupStoreWithClock(t *testing.T, clock domain.Clock) *postgres.Store {
	t.Helper()

	store := setupStore(t)
	pinned := postgres.NewStore(store.Pool(), clock)
	return pinned
}
