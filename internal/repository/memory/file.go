package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// FileAnnotationRepo is an AnnotationRepo that rewrites a JSON snapshot on
// every change, so narrative survives a restart on a single host.
type FileAnnotationRepo struct {
	*AnnotationRepo
	path string

	writeMu sync.Mutex
}

type fileEntry struct {
	Date       string            `json:"date"`
	Campaign   string            `json:"campaign_name"`
	Annotation domain.Annotation `json:"annotation"`
}

// NewFileAnnotationRepo opens (or creates on first write) the snapshot at path.
func NewFileAnnotationRepo(path string) (*FileAnnotationRepo, error) {
	r := &FileAnnotationRepo{AnnotationRepo: NewAnnotationRepo(), path: path}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read annotations file: %w", err)
	}
	var entries []fileEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode annotations file: %w", err)
	}
	for _, e := range entries {
		id, err := domain.ParseRowID(e.Date, e.Campaign)
		if err != nil {
			return nil, err
		}
		r.items[id] = e.Annotation
	}
	return r, nil
}

func (r *FileAnnotationRepo) Put(ctx context.Context, id domain.RowID, a domain.Annotation) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.AnnotationRepo.Put(ctx, id, a); err != nil {
		return err
	}
	return r.flush()
}

func (r *FileAnnotationRepo) Clear(ctx context.Context) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()
	if err := r.AnnotationRepo.Clear(ctx); err != nil {
		return err
	}
	return r.flush()
}

// flush replaces the snapshot atomically: a crash mid-write leaves the
// previous file intact. Callers hold writeMu.
func (r *FileAnnotationRepo) flush() error {
	r.mu.RLock()
	entries := make([]fileEntry, 0, len(r.items))
	for id, a := range r.items {
		entries = append(entries, fileEntry{Date: id.Date, Campaign: id.CampaignName, Annotation: a})
	}
	r.mu.RUnlock()
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Date != entries[j].Date {
			return entries[i].Date < entries[j].Date
		}
		return entries[i].Campaign < entries[j].Campaign
	})

	dir := filepath.Dir(r.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create annotations dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(r.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create annotations temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(entries); err != nil {
		tmp.Close()
		return fmt.Errorf("encode annotations: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync annotations: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close annotations temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), r.path); err != nil {
		return fmt.Errorf("replace annotations file: %w", err)
	}
	return nil
}
