// Package storage archives exported reports and opens CSV inputs, on the
// local filesystem or in S3 depending on configuration.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ignite/wbr-monitor/internal/config"
	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/export"
)

var (
	ErrS3NotConfigured = errors.New("s3 storage is not configured")
	ErrInvalidURI      = errors.New("invalid object uri")
)

// Archive describes a stored report.
type Archive struct {
	ID        string    `json:"id"`
	Key       string    `json:"key"`
	Location  string    `json:"location"`
	Filename  string    `json:"filename"`
	Size      int       `json:"size"`
	Rows      int       `json:"rows"`
	CreatedAt time.Time `json:"created_at"`
}

// Storage provides report persistence
type Storage struct {
	config config.StorageConfig
	aws    *AWSStorage
	now    func() time.Time
}

// New creates a storage backend from configuration.
func New(ctx context.Context, cfg config.StorageConfig) (*Storage, error) {
	s := &Storage{config: cfg, now: time.Now}

	switch cfg.Type {
	case "aws":
		awsStorage, err := NewAWSStorage(ctx, cfg.S3Bucket, cfg.AWSRegion, cfg.GetAWSProfile())
		if err != nil {
			return nil, fmt.Errorf("initializing AWS storage: %w", err)
		}
		s.aws = awsStorage
	case "local":
		if err := os.MkdirAll(cfg.LocalPath, 0755); err != nil {
			return nil, fmt.Errorf("creating storage directory: %w", err)
		}
	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}
	return s, nil
}

// Type returns the configured backend type.
func (s *Storage) Type() string { return s.config.Type }

// ReportKey is the object key of a report archived at t.
func ReportKey(prefix string, t time.Time, id string) string {
	t = t.UTC()
	return path.Join(prefix, "reports", t.Format("2006/01/02"), id, export.Filename(t))
}

// SaveReport writes rows as a CSV and stores it under a fresh report ID.
func (s *Storage) SaveReport(ctx context.Context, rows []domain.ReportRow) (*Archive, error) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}

	now := s.now().UTC()
	id := uuid.New().String()
	a := &Archive{
		ID:        id,
		Key:       ReportKey(s.config.S3Prefix, now, id),
		Filename:  export.Filename(now),
		Size:      buf.Len(),
		Rows:      len(rows),
		CreatedAt: now,
	}

	switch s.config.Type {
	case "aws":
		if err := s.aws.PutObject(ctx, s.aws.bucket, a.Key, buf.Bytes(), export.ContentType); err != nil {
			return nil, err
		}
		a.Location = "s3://" + s.aws.bucket + "/" + a.Key
	default:
		p := filepath.Join(s.config.LocalPath, filepath.FromSlash(a.Key))
		if err := saveToFile(p, buf.Bytes()); err != nil {
			return nil, fmt.Errorf("write report: %w", err)
		}
		a.Location = p
	}
	return a, nil
}

// OpenReport opens an archived report by key.
func (s *Storage) OpenReport(ctx context.Context, key string) (io.ReadCloser, error) {
	if s.config.Type == "aws" {
		return s.aws.GetObject(ctx, s.aws.bucket, key)
	}
	clean := filepath.Clean("/" + filepath.FromSlash(key))
	return os.Open(filepath.Join(s.config.LocalPath, clean))
}

// Open opens an input object. "s3://bucket/key" reads from S3; anything
// else is a local path.
func (s *Storage) Open(ctx context.Context, uri string) (io.ReadCloser, error) {
	if !strings.HasPrefix(uri, "s3://") {
		return os.Open(strings.TrimPrefix(uri, "file://"))
	}
	bucket, key, err := ParseS3URI(uri)
	if err != nil {
		return nil, err
	}
	if s.aws == nil {
		return nil, ErrS3NotConfigured
	}
	return s.aws.GetObject(ctx, bucket, key)
}

// Check verifies the backend is reachable.
func (s *Storage) Check(ctx context.Context) error {
	if s.config.Type == "aws" {
		return s.aws.HeadBucket(ctx)
	}
	info, err := os.Stat(s.config.LocalPath)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", s.config.LocalPath)
	}
	return nil
}

// ParseS3URI splits "s3://bucket/key" into its parts.
func ParseS3URI(uri string) (bucket, key string, err error) {
	rest, ok := strings.CutPrefix(uri, "s3://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	bucket, key, _ = strings.Cut(rest, "/")
	if bucket == "" || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURI, uri)
	}
	return bucket, key, nil
}

func saveToFile(p string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
		return err
	}
	return os.WriteFile(p, data, 0644)
}
