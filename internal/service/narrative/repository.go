package narrative

import (
	"context"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// Repository defines the data access contract for annotations.
// Implementations must be safe for concurrent use.
type Repository interface {
	// Get returns the annotation for id and whether one was stored.
	Get(ctx context.Context, id domain.RowID) (domain.Annotation, bool, error)

	// Put upserts the annotation for id, replacing both text fields.
	Put(ctx context.Context, id domain.RowID, a domain.Annotation) error

	// All returns every stored annotation.
	All(ctx context.Context) (map[domain.RowID]domain.Annotation, error)

	// Clear removes every stored annotation.
	Clear(ctx context.Context) error
}
