package digest

import (
	"strings"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// CheckItem is one step of the review audit.
type CheckItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	// Done is nil for steps that can only be confirmed by the reviewer.
	Done    *bool    `json:"done"`
	Summary string   `json:"summary,omitempty"`
	Missing []string `json:"missing,omitempty"`
}

// Checklist evaluates the audit against the review table. Data freeze is a
// manual step; the variance check and hypothesis loop require a root cause
// and a path to green on every Off Track row.
func Checklist(rows []domain.ReportRow) []CheckItem {
	var noCause, noPath []string
	offTrack := 0
	for _, r := range rows {
		if r.Status != domain.StatusOffTrack {
			continue
		}
		offTrack++
		if strings.TrimSpace(r.RootCauseHypothesis) == "" {
			noCause = append(noCause, r.ID().String())
		}
		if strings.TrimSpace(r.PathToGreen) == "" {
			noPath = append(noPath, r.ID().String())
		}
	}

	return []CheckItem{
		{
			Name:        "Data Freeze",
			Description: "Inputs were frozen by Tuesday before the review.",
		},
		{
			Name:        "Variance Check",
			Description: "Every Off Track metric has an explanation of why.",
			Done:        boolPtr(len(noCause) == 0),
			Summary:     coverage(offTrack-len(noCause), offTrack),
			Missing:     noCause,
		},
		{
			Name:        "Hypothesis Loop",
			Description: "Every Off Track metric has a Path to Green action to test next week.",
			Done:        boolPtr(len(noPath) == 0),
			Summary:     coverage(offTrack-len(noPath), offTrack),
			Missing:     noPath,
		},
	}
}

func coverage(done, total int) string {
	if total == 0 {
		return "no Off Track rows"
	}
	return itoa(done) + " of " + itoa(total) + " Off Track rows"
}

func boolPtr(b bool) *bool { return &b }
