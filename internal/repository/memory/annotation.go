// Package memory provides process-local repository implementations. It is
// the default annotation backend for a single reviewer session.
package memory

import (
	"context"
	"sync"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// AnnotationRepo implements narrative.Repository with a mutex-guarded map.
type AnnotationRepo struct {
	mu    sync.RWMutex
	items map[domain.RowID]domain.Annotation
}

// NewAnnotationRepo creates an empty in-memory annotation repository.
func NewAnnotationRepo() *AnnotationRepo {
	return &AnnotationRepo{items: make(map[domain.RowID]domain.Annotation)}
}

func (r *AnnotationRepo) Get(_ context.Context, id domain.RowID) (domain.Annotation, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.items[id]
	return a, ok, nil
}

func (r *AnnotationRepo) Put(_ context.Context, id domain.RowID, a domain.Annotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[id] = a
	return nil
}

func (r *AnnotationRepo) All(_ context.Context) (map[domain.RowID]domain.Annotation, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[domain.RowID]domain.Annotation, len(r.items))
	for k, v := range r.items {
		out[k] = v
	}
	return out, nil
}

func (r *AnnotationRepo) Clear(_ context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = make(map[domain.RowID]domain.Annotation)
	return nil
}
