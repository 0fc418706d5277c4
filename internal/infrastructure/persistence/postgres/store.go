package postgres

import (
	"github.com/filingpulse/filingpulse/internal/application/pipeline"
	"github.com/filingpulse/filingpulse/internal/application/scheduler"
	"github.com/filingpulse/filingpulse/internal/application/worker"
	"github.com/filingpulse/filingpulse/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store provides the PostgreSQL implementation of every repository interface:
// the job queue, the pipeline run repository, and the content store shared by
// worker handlers and the scheduler.
type Store struct {
	pool  *pgxpool.Pool
	clock domain.Clock
}

// Compile-time verification that Store implements all repository interfaces.
var (
	_ worker.Queue           = (*Store)(nil)
	_ worker.ContentStore    = (*Store)(nil)
	_ pipeline.Repository    = (*Store)(nil)
	_ scheduler.CompanyStore = (*Store)(nil)
)

// NewStore creates a store over an existing pool. A nil clock defaults to the
// system clock.
func NewStore(pool *pgxpool.Pool, clock domain.Clock) *Store {
	if clock == nil {
		clock = domain.SystemClock{}
	}
	return &Store{pool: pool, clock: clock}
}

// Pool returns the underlying connection pool.
// This is useful for transaction management and raw queries.
func (s *Store) Pool() *pgxpool.Pool {
	return s.pool
}

// Close closes the database connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}
