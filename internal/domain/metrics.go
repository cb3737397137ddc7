package domain

import (
	"strings"
	"time"
)

// Status is the two-state goal classification of a period.
type Status string

const (
	StatusOnTrack  Status = "on_track"
	StatusOffTrack Status = "off_track"
)

// Label returns the human-facing form used in exports and the digest.
func (s Status) Label() string {
	switch s {
	case StatusOffTrack:
		return "Off Track"
	default:
		return "On Track"
	}
}

// ParseStatusLabel maps an exported label back to a Status.
func ParseStatusLabel(label string) (Status, bool) {
	switch label {
	case "On Track", string(StatusOnTrack):
		return StatusOnTrack, true
	case "Off Track", string(StatusOffTrack):
		return StatusOffTrack, true
	}
	return "", false
}

// DataQuality flags a row whose open rate could not be computed.
type DataQuality string

const (
	QualityOK              DataQuality = ""
	QualityNoEmailsSent    DataQuality = "no_emails_sent"
	QualityOpensExceedSent DataQuality = "opens_exceed_sent"
)

// DerivedMetrics are the calculated values attached to a CampaignRecord.
// Nil pointers mean "insufficient data" and render as blank cells.
type DerivedMetrics struct {
	OpenRate     *float64    `json:"open_rate"`
	OpenRatePct  *float64    `json:"open_rate_pct"`
	GoalPct      float64     `json:"goal_pct"`
	WoWVariance  *float64    `json:"wow_variance"`
	GoalVariance *float64    `json:"goal_variance"`
	Status       Status      `json:"status"`
	Quality      DataQuality `json:"data_quality,omitempty"`
}

// ComputedRecord pairs a record with its derived metrics. The pipeline
// returns fresh values on every recomputation; nothing mutates them later.
type ComputedRecord struct {
	Record  CampaignRecord `json:"record"`
	Metrics DerivedMetrics `json:"metrics"`
}

// Annotation is the reviewer narrative for one row.
type Annotation struct {
	RootCauseHypothesis string `json:"root_cause_hypothesis" db:"root_cause_hypothesis"`
	PathToGreen         string `json:"path_to_green" db:"path_to_green"`
}

// IsEmpty reports whether both narrative fields are blank.
func (a Annotation) IsEmpty() bool {
	return a.RootCauseHypothesis == "" && a.PathToGreen == ""
}

// Normalize rewrites CRLF and lone CR line breaks as LF, the only line
// break that survives a CSV export and re-import unchanged.
func (a Annotation) Normalize() Annotation {
	return Annotation{
		RootCauseHypothesis: normalizeNewlines(a.RootCauseHypothesis),
		PathToGreen:         normalizeNewlines(a.PathToGreen),
	}
}

func normalizeNewlines(s string) string {
	if !strings.Contains(s, "\r") {
		return s
	}
	return strings.ReplaceAll(strings.ReplaceAll(s, "\r\n", "\n"), "\r", "\n")
}

// AnnotatedRecord joins a computed record with its annotation.
type AnnotatedRecord struct {
	ComputedRecord
	Annotation Annotation `json:"annotation"`
}

// ReportRow is the external row shape of the review table.
type ReportRow struct {
	Date                time.Time   `json:"date"`
	CampaignName        string      `json:"campaign_name"`
	OpenRatePct         *float64    `json:"open_rate_pct"`
	GoalPct             float64     `json:"goal_pct"`
	WoWVariance         *float64    `json:"wow_variance"`
	GoalVariance        *float64    `json:"goal_variance"`
	Status              Status      `json:"status"`
	RootCauseHypothesis string      `json:"root_cause_hypothesis"`
	PathToGreen         string      `json:"path_to_green"`
	DataQuality         DataQuality `json:"data_quality,omitempty"`
}

// ID returns the identity of the row.
func (r ReportRow) ID() RowID {
	return NewRowID(r.Date, r.CampaignName)
}
