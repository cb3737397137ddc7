package narrative

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/pkg/distlock"
)

// Store implements annotation business logic on top of a Repository.
type Store struct {
	repo  Repository
	locks distlock.Factory
}

// NewStore creates a narrative store backed by the given repository.
func NewStore(repo Repository) *Store {
	return &Store{repo: repo}
}

// WithLocks makes Set hold a per-row lock while writing. Used when several
// server replicas share one backend; last writer wins per row.
func (s *Store) WithLocks(f distlock.Factory) *Store {
	s.locks = f
	return s
}

// Get returns the annotation for id, or an empty annotation if none exists.
func (s *Store) Get(ctx context.Context, id domain.RowID) (domain.Annotation, error) {
	if err := validateID(id); err != nil {
		return domain.Annotation{}, err
	}
	a, _, err := s.repo.Get(ctx, id)
	if err != nil {
		return domain.Annotation{}, fmt.Errorf("get annotation: %w", err)
	}
	return a, nil
}

// Set upserts the annotation for id. Both fields are replaced. Line breaks
// are stored as LF.
func (s *Store) Set(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	if err := validateID(id); err != nil {
		return err
	}
	a = a.Normalize()
	put := func() error {
		if err := s.repo.Put(ctx, id, a); err != nil {
			return fmt.Errorf("put annotation: %w", err)
		}
		return nil
	}
	if s.locks == nil {
		return put()
	}
	err := distlock.WithLock(ctx, s.locks("annotation:"+id.Key()), put)
	if errors.Is(err, distlock.ErrNotAcquired) {
		return fmt.Errorf("%w: %s", ErrRowBusy, id)
	}
	return err
}

// SetAll upserts a batch of annotations, stopping at the first failure.
func (s *Store) SetAll(ctx context.Context, annotations map[domain.RowID]domain.Annotation) error {
	for id, a := range annotations {
		if err := s.Set(ctx, id, a); err != nil {
			return err
		}
	}
	return nil
}

// Merge left-joins stored annotations onto rows by identity. Rows without
// an annotation get empty text. Row order is preserved.
func (s *Store) Merge(ctx context.Context, rows []domain.ComputedRecord) ([]domain.AnnotatedRecord, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list annotations: %w", err)
	}
	out := make([]domain.AnnotatedRecord, len(rows))
	for i, r := range rows {
		out[i] = domain.AnnotatedRecord{
			ComputedRecord: r,
			Annotation:     all[r.Record.ID()],
		}
	}
	return out, nil
}

// Remerge refreshes the annotations of already merged rows. Calling it on
// the output of Merge with no Set in between returns an equal slice.
func (s *Store) Remerge(ctx context.Context, rows []domain.AnnotatedRecord) ([]domain.AnnotatedRecord, error) {
	computed := make([]domain.ComputedRecord, len(rows))
	for i, r := range rows {
		computed[i] = r.ComputedRecord
	}
	return s.Merge(ctx, computed)
}

// Reset discards every annotation.
func (s *Store) Reset(ctx context.Context) error {
	if err := s.repo.Clear(ctx); err != nil {
		return fmt.Errorf("clear annotations: %w", err)
	}
	return nil
}

func validateID(id domain.RowID) error {
	if id.Date == "" || strings.TrimSpace(id.CampaignName) == "" {
		return fmt.Errorf("%w: %q", ErrInvalidRow, id.String())
	}
	return nil
}
