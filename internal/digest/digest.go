// Package digest renders the weekly review as a Markdown summary using
// Liquid templates: headline totals, the Off Track rows with their
// narrative, and the audit checklist.
package digest

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/osteele/liquid"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// DefaultTemplate is the Markdown digest layout.
const DefaultTemplate = `# Weekly Business Review: Email Open Rate
Generated {{ generated_at }} · {{ records | comma }} periods · threshold {{ threshold | signed }} pts

**Latest period:** {{ latest.date }} {{ latest.campaign_name }}, open rate {{ latest.open_rate_pct | pct }} vs goal {{ latest.goal_pct | pct }} ({{ latest.status }})
**Totals:** {{ total_sent | comma }} sent, {{ total_opens | comma }} opens, blended open rate {{ blended_rate | pct }}
**Off Track:** {{ off_track_count }} of {{ records }}
{% if off_track_count > 0 %}
## Off Track
| Date | Campaign | Open Rate | Goal | WoW | Root Cause | Path to Green |
|---|---|---|---|---|---|---|
{% for r in off_track %}| {{ r.date }} | {{ r.campaign_name | cell }} | {{ r.open_rate_pct | pct }} | {{ r.goal_pct | pct }} | {{ r.wow_variance | signed }} | {{ r.root_cause_hypothesis | default: "_missing_" | cell }} | {{ r.path_to_green | default: "_missing_" | cell }} |
{% endfor %}{% else %}
All periods are On Track.
{% endif %}
## WBR Audit Checklist
{% for c in checklist %}- [{% if c.done %}x{% else %} {% endif %}] **{{ c.name }}:** {{ c.description }}{% if c.summary != "" %} ({{ c.summary }}){% endif %}
{% endfor %}`

// Report is the input to a digest render.
type Report struct {
	GeneratedAt time.Time
	Threshold   float64
	// Rows is the review table, most recent first.
	Rows       []domain.ReportRow
	TotalSent  int64
	TotalOpens int64
}

// NewReport builds a Report from the review table and the computed records
// it was assembled from.
func NewReport(rows []domain.ReportRow, computed []domain.ComputedRecord, threshold float64, now time.Time) Report {
	r := Report{GeneratedAt: now.UTC(), Threshold: threshold, Rows: rows}
	for _, c := range computed {
		r.TotalSent += c.Record.EmailsSent
		r.TotalOpens += c.Record.Opens
	}
	return r
}

// Renderer renders digests from a parsed Liquid template.
type Renderer struct {
	engine *liquid.Engine
	tpl    *liquid.Template
}

// NewRenderer parses tmpl (DefaultTemplate when empty).
func NewRenderer(tmpl string) (*Renderer, error) {
	if tmpl == "" {
		tmpl = DefaultTemplate
	}
	engine := liquid.NewEngine()
	registerFilters(engine)

	tpl, err := engine.ParseString(tmpl)
	if err != nil {
		return nil, fmt.Errorf("parse digest template: %w", err)
	}
	return &Renderer{engine: engine, tpl: tpl}, nil
}

// Render produces the Markdown digest.
func (r *Renderer) Render(rep Report) (string, error) {
	out, err := r.tpl.RenderString(bindings(rep))
	if err != nil {
		return "", fmt.Errorf("render digest: %w", err)
	}
	return out, nil
}

func bindings(rep Report) map[string]interface{} {
	offTrack := make([]map[string]interface{}, 0)
	for _, row := range rep.Rows {
		if row.Status == domain.StatusOffTrack {
			offTrack = append(offTrack, rowBinding(row))
		}
	}

	var latest map[string]interface{}
	if len(rep.Rows) > 0 {
		latest = rowBinding(rep.Rows[0])
	}

	var blended interface{}
	if rep.TotalSent > 0 {
		blended = float64(rep.TotalOpens) / float64(rep.TotalSent) * 100
	}

	checklist := make([]map[string]interface{}, 0, 3)
	for _, c := range Checklist(rep.Rows) {
		item := map[string]interface{}{
			"name":        c.Name,
			"description": c.Description,
			"summary":     c.Summary,
			"done":        c.Done != nil && *c.Done,
		}
		checklist = append(checklist, item)
	}

	return map[string]interface{}{
		"generated_at":    rep.GeneratedAt.Format("2006-01-02 15:04 MST"),
		"threshold":       rep.Threshold,
		"records":         len(rep.Rows),
		"latest":          latest,
		"total_sent":      rep.TotalSent,
		"total_opens":     rep.TotalOpens,
		"blended_rate":    blended,
		"off_track":       offTrack,
		"off_track_count": len(offTrack),
		"checklist":       checklist,
	}
}

func rowBinding(r domain.ReportRow) map[string]interface{} {
	return map[string]interface{}{
		"date":                  r.Date.UTC().Format(domain.DateLayout),
		"campaign_name":         r.CampaignName,
		"open_rate_pct":         deref(r.OpenRatePct),
		"goal_pct":              r.GoalPct,
		"wow_variance":          deref(r.WoWVariance),
		"goal_variance":         deref(r.GoalVariance),
		"status":                r.Status.Label(),
		"root_cause_hypothesis": r.RootCauseHypothesis,
		"path_to_green":         r.PathToGreen,
	}
}

// deref turns nil into a Liquid nil so filters can print "n/a".
func deref(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func registerFilters(engine *liquid.Engine) {
	// {{ rate | pct }} -> "20.0%"
	engine.RegisterFilter("pct", func(value interface{}) string {
		f, ok := toFloat(value)
		if !ok {
			return "n/a"
		}
		return strconv.FormatFloat(f, 'f', 1, 64) + "%"
	})

	// {{ variance | signed }} -> "+1.5" / "-16.0"
	engine.RegisterFilter("signed", func(value interface{}) string {
		f, ok := toFloat(value)
		if !ok {
			return "n/a"
		}
		return fmt.Sprintf("%+.1f", f)
	})

	// {{ text | cell }} keeps free text inside one Markdown table cell.
	engine.RegisterFilter("cell", tableCell)

	// {{ sent | comma }} -> "18,400"
	engine.RegisterFilter("comma", func(value interface{}) string {
		f, ok := toFloat(value)
		if !ok {
			return fmt.Sprintf("%v", value)
		}
		return humanize.Comma(int64(f))
	})
}

var cellReplacer = strings.NewReplacer("|", "\\|", "\r\n", "<br>", "\n", "<br>", "\r", "<br>")

func tableCell(value interface{}) string {
	if value == nil {
		return ""
	}
	return cellReplacer.Replace(fmt.Sprint(value))
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int64:
		return float64(v), true
	case string:
		f, err := strconv.ParseFloat(v, 64)
		return f, err == nil
	}
	return 0, false
}

func itoa(n int) string { return strconv.Itoa(n) }
