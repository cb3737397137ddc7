package api

import (
	"context"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/ignite/wbr-monitor/internal/digest"
	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/session"
	"github.com/ignite/wbr-monitor/internal/storage"
)

// RecordSource loads a dataset from an external system.
type RecordSource interface {
	Dataset(ctx context.Context) (*ingest.Dataset, error)
}

// ReportStore archives reports and opens input objects.
type ReportStore interface {
	SaveReport(ctx context.Context, rows []domain.ReportRow) (*storage.Archive, error)
	Open(ctx context.Context, uri string) (io.ReadCloser, error)
}

// DigestSender delivers a rendered digest.
type DigestSender interface {
	SendDigest(ctx context.Context, subject, markdown string) (string, error)
	Recipients() []string
}

// Deps are the collaborators of the HTTP handlers. Store, Warehouse and
// Mailer are optional; their endpoints answer 503 when unset.
type Deps struct {
	Session   *session.Session
	Digest    *digest.Renderer
	Store     ReportStore
	Warehouse RecordSource
	Mailer    DigestSender
	Ingest    ingest.Options
	// MaxUploadBytes bounds multipart uploads; zero means 10 MiB.
	MaxUploadBytes int64
}

// Handlers contains all HTTP handlers
type Handlers struct {
	session   *session.Session
	digest    *digest.Renderer
	store     ReportStore
	warehouse RecordSource
	mailer    DigestSender
	ingest    ingest.Options
	maxUpload int64
	now       func() time.Time
}

// NewHandlers creates a new Handlers instance
func NewHandlers(d Deps) *Handlers {
	maxUpload := d.MaxUploadBytes
	if maxUpload <= 0 {
		maxUpload = 10 << 20
	}
	return &Handlers{
		session:   d.Session,
		digest:    d.Digest,
		store:     d.Store,
		warehouse: d.Warehouse,
		mailer:    d.Mailer,
		ingest:    d.Ingest,
		maxUpload: maxUpload,
		now:       time.Now,
	}
}

// writeCSVHeaders marks a response as a downloadable CSV file.
func writeCSVHeaders(w http.ResponseWriter, contentType, filename string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
}

func logRequestError(r *http.Request, err error) {
	log.Printf("[api] %s %s: %v", r.Method, r.URL.Path, err)
}
