// Package session holds the state of one weekly review: the loaded campaign
// records, their computed metrics and the reviewer narrative.
//
// Metrics are recomputed from scratch on every Load and never edited in
// place. Narrative lives in the narrative store, keyed by row identity, and
// is joined onto the computed records each time rows are read, so a reload
// never clobbers text a reviewer has entered. Reset discards both.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/ignite/wbr-monitor/internal/chart"
	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/pkg/logger"
	"github.com/ignite/wbr-monitor/internal/service/narrative"
	"github.com/ignite/wbr-monitor/internal/wbr"
)

// Source labels where the loaded dataset came from.
const (
	SourceSample    = "sample"
	SourceUpload    = "upload"
	SourceFile      = "file"
	SourceS3        = "s3"
	SourceWarehouse = "warehouse"
)

// Info summarizes the session for status endpoints.
type Info struct {
	Loaded    bool      `json:"loaded"`
	Source    string    `json:"source,omitempty"`
	LoadedAt  time.Time `json:"loaded_at,omitempty"`
	Records   int       `json:"records"`
	OffTrack  int       `json:"off_track"`
	Threshold float64   `json:"off_track_threshold"`
}

// Session is safe for concurrent use.
type Session struct {
	pipeline *wbr.Pipeline
	store    *narrative.Store
	now      func() time.Time

	mu       sync.RWMutex
	computed []domain.ComputedRecord
	ids      map[domain.RowID]struct{}
	source   string
	loadedAt time.Time
}

// New creates an empty session.
func New(pipeline *wbr.Pipeline, store *narrative.Store) *Session {
	return &Session{pipeline: pipeline, store: store, now: time.Now}
}

// Load replaces the dataset and recomputes every metric. Non-blank narrative
// carried in the dataset is written to the store after the new dataset is in
// place; all other stored narrative is kept.
func (s *Session) Load(ctx context.Context, ds *ingest.Dataset, source string) error {
	if ds == nil || len(ds.Records) == 0 {
		return ErrNoRecords
	}
	ids := make(map[domain.RowID]struct{}, len(ds.Records))
	for _, r := range ds.Records {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrInvalidRecord, r.ID(), err)
		}
		id := r.ID()
		if _, dup := ids[id]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateRow, id)
		}
		ids[id] = struct{}{}
	}

	seed := make(map[domain.RowID]domain.Annotation, len(ds.Annotations))
	for id, a := range ds.Annotations {
		if _, ok := ids[id]; ok && !a.IsEmpty() {
			seed[id] = a
		}
	}

	computed := s.pipeline.Compute(ds.Records)

	s.mu.Lock()
	s.computed = computed
	s.ids = ids
	s.source = source
	s.loadedAt = s.now().UTC()
	s.mu.Unlock()

	logger.Info("dataset loaded",
		"source", source,
		"records", len(computed),
		"annotations_seeded", len(seed),
		"off_track", countOffTrack(computed))

	if err := s.store.SetAll(ctx, seed); err != nil {
		return fmt.Errorf("seed annotations: %w", err)
	}
	return nil
}

// Computed returns the computed records in chronological order.
func (s *Session) Computed() ([]domain.ComputedRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.computed == nil {
		return nil, ErrNotLoaded
	}
	out := make([]domain.ComputedRecord, len(s.computed))
	copy(out, s.computed)
	return out, nil
}

// Rows returns the review table, most recent period first.
func (s *Session) Rows(ctx context.Context) ([]domain.ReportRow, error) {
	computed, err := s.Computed()
	if err != nil {
		return nil, err
	}
	merged, err := s.store.Merge(ctx, computed)
	if err != nil {
		return nil, err
	}
	return wbr.Assemble(merged), nil
}

// Chart returns the open-rate trend series.
func (s *Session) Chart() (chart.Series, error) {
	computed, err := s.Computed()
	if err != nil {
		return chart.Series{}, err
	}
	return chart.FromComputed(computed), nil
}

// Annotation returns the narrative for a loaded row.
func (s *Session) Annotation(ctx context.Context, id domain.RowID) (domain.Annotation, error) {
	if err := s.checkRow(id); err != nil {
		return domain.Annotation{}, err
	}
	return s.store.Get(ctx, id)
}

// Annotate replaces the narrative for a loaded row.
func (s *Session) Annotate(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	if err := s.checkRow(id); err != nil {
		return err
	}
	if err := s.store.Set(ctx, id, a); err != nil {
		return err
	}
	logger.Debug("annotation saved", "row", id.String(), "hypothesis", a.RootCauseHypothesis)
	return nil
}

// ImportAnnotations applies narrative read back from an exported report.
// Entries for rows outside the loaded dataset are skipped and counted.
func (s *Session) ImportAnnotations(ctx context.Context, in map[domain.RowID]domain.Annotation) (applied, skipped int, err error) {
	s.mu.RLock()
	if s.ids == nil {
		s.mu.RUnlock()
		return 0, 0, ErrNotLoaded
	}
	known := make(map[domain.RowID]domain.Annotation, len(in))
	for id, a := range in {
		if _, ok := s.ids[id]; ok {
			known[id] = a
		} else {
			skipped++
		}
	}
	s.mu.RUnlock()

	if err := s.store.SetAll(ctx, known); err != nil {
		return 0, skipped, fmt.Errorf("import annotations: %w", err)
	}
	return len(known), skipped, nil
}

// Reset drops the dataset and every annotation.
func (s *Session) Reset(ctx context.Context) error {
	s.mu.Lock()
	s.computed = nil
	s.ids = nil
	s.source = ""
	s.loadedAt = time.Time{}
	s.mu.Unlock()

	if err := s.store.Reset(ctx); err != nil {
		return err
	}
	logger.Info("session reset")
	return nil
}

// Loaded reports whether a dataset is present.
func (s *Session) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.computed != nil
}

// LoadedAt returns when the current dataset was loaded.
func (s *Session) LoadedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loadedAt
}

// Info returns a summary of the session.
func (s *Session) Info() Info {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Info{
		Loaded:    s.computed != nil,
		Source:    s.source,
		LoadedAt:  s.loadedAt,
		Records:   len(s.computed),
		OffTrack:  countOffTrack(s.computed),
		Threshold: s.pipeline.Threshold(),
	}
}

func (s *Session) checkRow(id domain.RowID) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.ids == nil {
		return ErrNotLoaded
	}
	if _, ok := s.ids[id]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownRow, id)
	}
	return nil
}

func countOffTrack(rows []domain.ComputedRecord) int {
	n := 0
	for _, r := range rows {
		if r.Metrics.Status == domain.StatusOffTrack {
			n++
		}
	}
	return n
}
