package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/ignite/wbr-monitor/internal/chart"
	"github.com/ignite/wbr-monitor/internal/digest"
	"github.com/ignite/wbr-monitor/internal/export"
	"github.com/ignite/wbr-monitor/internal/pkg/httputil"
	"github.com/ignite/wbr-monitor/internal/storage"
)

// GetRows handles GET /api/report/rows.
func (h *Handlers) GetRows(w http.ResponseWriter, r *http.Request) {
	rows, err := h.session.Rows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]any{
		"rows":      rows,
		"count":     len(rows),
		"checklist": digest.Checklist(rows),
	})
}

// GetChart handles GET /api/report/chart and returns the series as JSON.
func (h *Handlers) GetChart(w http.ResponseWriter, r *http.Request) {
	series, err := h.session.Chart()
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, series)
}

// GetChartPNG handles GET /api/report/chart.png. Optional width and height
// query parameters override the default size.
func (h *Handlers) GetChartPNG(w http.ResponseWriter, r *http.Request) {
	series, err := h.session.Chart()
	if err != nil {
		writeError(w, r, err)
		return
	}
	opts := chart.DefaultOptions
	if v := r.URL.Query().Get("width"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 200 || n > 4000 {
			httputil.BadRequest(w, "width must be an integer between 200 and 4000")
			return
		}
		opts.Width = n
	}
	if v := r.URL.Query().Get("height"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 150 || n > 3000 {
			httputil.BadRequest(w, "height must be an integer between 150 and 3000")
			return
		}
		opts.Height = n
	}

	var buf bytes.Buffer
	if err := chart.RenderPNG(&buf, series, opts); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ExportReport handles GET /api/report/export and streams the review table
// as a CSV download.
func (h *Handlers) ExportReport(w http.ResponseWriter, r *http.Request) {
	rows, err := h.session.Rows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, rows); err != nil {
		writeError(w, r, err)
		return
	}
	writeCSVHeaders(w, export.ContentType, export.Filename(h.now()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// ArchiveReport handles POST /api/report/archive. The export is written to
// the configured storage backend.
func (h *Handlers) ArchiveReport(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		writeError(w, r, storage.ErrS3NotConfigured)
		return
	}
	rows, err := h.session.Rows(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	archive, err := h.store.SaveReport(r.Context(), rows)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.Created(w, archive)
}

func (h *Handlers) renderDigest(r *http.Request) (string, error) {
	rows, err := h.session.Rows(r.Context())
	if err != nil {
		return "", err
	}
	computed, err := h.session.Computed()
	if err != nil {
		return "", err
	}
	rep := digest.NewReport(rows, computed, h.session.Info().Threshold, h.now())
	return h.digest.Render(rep)
}

// GetDigest handles GET /api/report/digest and returns Markdown.
func (h *Handlers) GetDigest(w http.ResponseWriter, r *http.Request) {
	md, err := h.renderDigest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(md))
}

type sendDigestRequest struct {
	Subject string `json:"subject"`
}

// SendDigest handles POST /api/report/digest/send. The body is optional.
func (h *Handlers) SendDigest(w http.ResponseWriter, r *http.Request) {
	if h.mailer == nil {
		httputil.ServiceUnavailable(w, "digest email not configured")
		return
	}
	var req sendDigestRequest
	if r.ContentLength > 0 && !httputil.Decode(w, r, &req) {
		return
	}
	md, err := h.renderDigest(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	id, err := h.mailer.SendDigest(r.Context(), req.Subject, md)
	if err != nil {
		writeError(w, r, fmt.Errorf("send digest: %w", err))
		return
	}
	httputil.OK(w, map[string]any{
		"message_id": id,
		"recipients": len(h.mailer.Recipients()),
	})
}
