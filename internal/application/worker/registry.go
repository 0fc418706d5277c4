package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/filingpulse/filingpulse/internal/domain"
)

// Handler executes one job. Params arrive as the opaque payload stored on the
// job row; a non-nil result is stored verbatim. Handlers must be idempotent:
// the queue guarantees at-most-one execution per lease, but a job may be
// re-dispatched after a worker crash.
type Handler func(ctx context.Context, job *domain.Job) (json.RawMessage, error)

// Registry is a frozen map from job type to handler. It is built once at
// process start and never mutated afterwards, so the poll loop reads it
// without locking.
type Registry struct {
	handlers map[domain.JobType]Handler
}

// NewRegistry copies the given handler map into an immutable registry.
// Registering an unknown job type is a startup error.
func NewRegistry(handlers map[domain.JobType]Handler) (*Registry, error) {
	frozen := make(map[domain.JobType]Handler, len(handlers))
	for jobType, handler := range handlers {
		if !jobType.Valid() {
			return nil, fmt.Errorf("%w: %q", domain.ErrUnknownJobType, jobType)
		}
		if handler == nil {
			return nil, fmt.Errorf("nil handler for job type %q", jobType)
		}
		frozen[jobType] = handler
	}
	return &Registry{handlers: frozen}, nil
}

// Get returns the handler for a job type.
func (r *Registry) Get(jobType domain.JobType) (Handler, bool) {
	handler, ok := r.handlers[jobType]
	return handler, ok
}

// Types lists registered job types in lexicographic order. Administrative.
func (r *Registry) Types() []domain.JobType {
	types := make([]domain.JobType, 0, len(r.handlers))
	for jobType := range r.handlers {
		types = append(types, jobType)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
