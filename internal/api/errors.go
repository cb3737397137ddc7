package api

import (
	"errors"
	"net/http"

	"github.com/ignite/wbr-monitor/internal/chart"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/notify"
	"github.com/ignite/wbr-monitor/internal/pkg/httputil"
	"github.com/ignite/wbr-monitor/internal/service/narrative"
	"github.com/ignite/wbr-monitor/internal/session"
	"github.com/ignite/wbr-monitor/internal/storage"
)

// Error codes returned in ErrorResponse.Code.
const (
	CodeInputSchema   = "INPUT_SCHEMA"
	CodeNotLoaded     = "NOT_LOADED"
	CodeNoRecords     = "NO_RECORDS"
	CodeDuplicateRow  = "DUPLICATE_ROW"
	CodeUnknownRow    = "UNKNOWN_ROW"
	CodeInvalidRow    = "INVALID_ROW"
	CodeRowBusy       = "ROW_BUSY"
	CodeInvalidURI    = "INVALID_URI"
	CodeNotConfigured = "NOT_CONFIGURED"
	CodeBadUpload     = "BAD_UPLOAD"
	CodeInvalidRecord = "INVALID_RECORD"
)

// writeError maps domain errors to HTTP responses. Unknown errors become a
// sanitized 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var schemaErr *ingest.SchemaError
	switch {
	case errors.As(err, &schemaErr):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInputSchema, schemaErr.Error(), map[string]any{
			"column": schemaErr.Column,
			"row":    schemaErr.Row,
			"reason": schemaErr.Reason,
		})
	case errors.Is(err, session.ErrNotLoaded), errors.Is(err, chart.ErrNoData):
		httputil.ErrorWithCode(w, http.StatusConflict, CodeNotLoaded, "no dataset loaded", nil)
	case errors.Is(err, session.ErrNoRecords):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeNoRecords, err.Error(), nil)
	case errors.Is(err, session.ErrDuplicateRow):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeDuplicateRow, err.Error(), nil)
	case errors.Is(err, session.ErrInvalidRecord):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidRecord, err.Error(), nil)
	case errors.Is(err, session.ErrUnknownRow):
		httputil.ErrorWithCode(w, http.StatusNotFound, CodeUnknownRow, err.Error(), nil)
	case errors.Is(err, narrative.ErrInvalidRow):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidRow, err.Error(), nil)
	case errors.Is(err, narrative.ErrRowBusy):
		httputil.Conflict(w, CodeRowBusy, err.Error())
	case errors.Is(err, storage.ErrInvalidURI):
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidURI, err.Error(), nil)
	case errors.Is(err, storage.ErrS3NotConfigured), errors.Is(err, notify.ErrNotConfigured):
		httputil.ServiceUnavailable(w, err.Error())
	default:
		logRequestError(r, err)
		httputil.InternalError(w, err)
	}
}
