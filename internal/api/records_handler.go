package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/pkg/httputil"
	"github.com/ignite/wbr-monitor/internal/session"
	"github.com/ignite/wbr-monitor/internal/storage"
)

// uploadField is the multipart form field carrying the CSV file.
const uploadField = "file"

// UploadRecords handles POST /api/records. It accepts either a multipart
// form with a "file" part or a raw text/csv body.
func (h *Handlers) UploadRecords(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	var ds *ingest.Dataset
	var err error
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(h.maxUpload); err != nil {
			httputil.ErrorWithCode(w, http.StatusBadRequest, CodeBadUpload, "invalid multipart upload", nil)
			return
		}
		file, _, ferr := r.FormFile(uploadField)
		if ferr != nil {
			httputil.ErrorWithCode(w, http.StatusBadRequest, CodeBadUpload, `missing form field "file"`, nil)
			return
		}
		defer file.Close()
		ds, err = ingest.ReadCSV(file, h.ingest)
	} else {
		ds, err = ingest.ReadCSV(r.Body, h.ingest)
	}
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, r, err)
		return
	}
	h.load(w, r, ds, session.SourceUpload)
}

// LoadSample handles POST /api/records/sample.
func (h *Handlers) LoadSample(w http.ResponseWriter, r *http.Request) {
	h.load(w, r, ingest.SampleDataset(), session.SourceSample)
}

type s3LoadRequest struct {
	URI string `json:"uri"`
}

// LoadFromStorage handles POST /api/records/s3 with a body of
// {"uri":"s3://bucket/key.csv"}. Local paths are accepted when the
// storage backend is local.
func (h *Handlers) LoadFromStorage(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, r, storage.ErrS3NotConfigured)
		return
	}
	var req s3LoadRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.URI) == "" {
		httputil.BadRequest(w, "uri is required")
		return
	}
	rc, err := h.store.Open(r.Context(), req.URI)
	if err != nil {
		writeError(w, r, err)
		return
	}
	defer rc.Close()

	ds, err := ingest.ReadCSV(rc, h.ingest)
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.load(w, r, ds, session.SourceS3)
}

// LoadFromWarehouse handles POST /api/records/warehouse.
func (h *Handlers) LoadFromWarehouse(w http.ResponseWriter, r *http.Request) {
	if h.warehouse == nil {
		httputil.ServiceUnavailable(w, "warehouse source not configured")
		return
	}
	ds, err := h.warehouse.Dataset(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	h.load(w, r, ds, session.SourceWarehouse)
}

func (h *Handlers) load(w http.ResponseWriter, r *http.Request, ds *ingest.Dataset, source string) {
	if err := h.session.Load(r.Context(), ds, source); err != nil {
		writeError(w, r, err)
		return
	}
	resp := map[string]any{
		"session": h.session.Info(),
	}
	if ds.GoalDefaulted {
		resp["goal_defaulted"] = true
	}
	httputil.OK(w, resp)
}

// GetSession handles GET /api/session.
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	info := h.session.Info()
	resp := map[string]any{
		"session":   info,
		"storage":   h.store != nil,
		"warehouse": h.warehouse != nil,
		"notify":    h.mailer != nil,
	}
	httputil.OK(w, resp)
}

// ResetSession handles POST /api/session/reset.
func (h *Handlers) ResetSession(w http.ResponseWriter, r *http.Request) {
	if err := h.session.Reset(r.Context()); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{"session": h.session.Info()})
}
