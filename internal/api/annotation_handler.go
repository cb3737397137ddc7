package api

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/pkg/httputil"
)

// rowIDParam reads {date} and {campaign} from the route. Campaign names may
// contain escaped slashes or spaces.
func rowIDParam(r *http.Request) (domain.RowID, error) {
	date := chi.URLParam(r, "date")
	campaign := chi.URLParam(r, "campaign")
	if r.URL.RawPath != "" {
		if c, err := url.PathUnescape(campaign); err == nil {
			campaign = c
		}
	}
	return domain.ParseRowID(date, campaign)
}

type annotationResponse struct {
	Date         string            `json:"date"`
	CampaignName string            `json:"campaign_name"`
	Annotation   domain.Annotation `json:"annotation"`
}

// GetAnnotation handles GET /api/annotations/{date}/{campaign}.
func (h *Handlers) GetAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidRow, err.Error(), nil)
		return
	}
	a, err := h.session.Annotation(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, annotationResponse{Date: id.Date, CampaignName: id.CampaignName, Annotation: a})
}

// PutAnnotation handles PUT /api/annotations/{date}/{campaign}. Both
// narrative fields are replaced; omitted fields are cleared.
func (h *Handlers) PutAnnotation(w http.ResponseWriter, r *http.Request) {
	id, err := rowIDParam(r)
	if err != nil {
		httputil.ErrorWithCode(w, http.StatusBadRequest, CodeInvalidRow, err.Error(), nil)
		return
	}
	var a domain.Annotation
	if !httputil.Decode(w, r, &a) {
		return
	}
	a.RootCauseHypothesis = strings.TrimSpace(a.RootCauseHypothesis)
	a.PathToGreen = strings.TrimSpace(a.PathToGreen)

	if err := h.session.Annotate(r.Context(), id, a); err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, annotationResponse{Date: id.Date, CampaignName: id.CampaignName, Annotation: a})
}

// ImportAnnotations handles POST /api/annotations/import. The body is a
// previously exported report CSV; its narrative columns are applied to
// matching rows of the loaded dataset.
func (h *Handlers) ImportAnnotations(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	in, err := ingest.ReadReport(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			httputil.Error(w, http.StatusRequestEntityTooLarge, "upload exceeds size limit")
			return
		}
		writeError(w, r, err)
		return
	}
	applied, skipped, err := h.session.ImportAnnotations(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	httputil.OK(w, map[string]int{"applied": applied, "skipped": skipped})
}
