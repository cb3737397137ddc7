package ingest

import "strings"

// Field is a canonical column name. The string value is the header written
// by the exporter and reported in schema errors.
type Field string

const (
	FieldDate                Field = "Date"
	FieldCampaignName        Field = "Campaign_Name"
	FieldEmailsSent          Field = "Emails_Sent"
	FieldOpens               Field = "Opens"
	FieldGoalOpenRate        Field = "Goal_Open_Rate"
	FieldRootCauseHypothesis Field = "Root_Cause_Hypothesis"
	FieldPathToGreen         Field = "Path_to_Green"

	// Exported report columns, read back on report import.
	FieldOpenRatePct Field = "Open_Rate_Pct"
	FieldGoalPct     Field = "Goal_Pct"
	FieldWoWVariance Field = "WoW_Variance"
	FieldStatus      Field = "Status"
)

// columnAliases maps normalized header names to canonical fields.
var columnAliases = map[string]Field{
	// Date
	"date":       FieldDate,
	"reportdate": FieldDate,
	"weekstart":  FieldDate,
	"week":       FieldDate,
	"senddate":   FieldDate,

	// Campaign
	"campaignname": FieldCampaignName,
	"campaign":     FieldCampaignName,
	"name":         FieldCampaignName,

	// Sends
	"emailssent": FieldEmailsSent,
	"emailsent":  FieldEmailsSent,
	"sent":       FieldEmailsSent,
	"sends":      FieldEmailsSent,

	// Opens
	"opens":       FieldOpens,
	"uniqueopens": FieldOpens,
	"opened":      FieldOpens,

	// Goal
	"goalopenrate": FieldGoalOpenRate,
	"goal":         FieldGoalOpenRate,
	"goalrate":     FieldGoalOpenRate,
	"target":       FieldGoalOpenRate,

	// Narrative
	"rootcausehypothesis": FieldRootCauseHypothesis,
	"rootcause":           FieldRootCauseHypothesis,
	"hypothesis":          FieldRootCauseHypothesis,
	"pathtogreen":         FieldPathToGreen,
	"nextsteps":           FieldPathToGreen,

	// Report columns
	"openratepct": FieldOpenRatePct,
	"goalpct":     FieldGoalPct,
	"wowvariance": FieldWoWVariance,
	"status":      FieldStatus,
}

// normalizeHeader lowercases a header and drops spaces, underscores, hyphens
// and surrounding quotes, so "Campaign Name" and "campaign_name" collide.
func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.Trim(h, "\"'")
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '_', '-', '.':
			return -1
		}
		return r
	}, h)
}

// columnMapping resolves canonical fields to column indices. The first
// occurrence of a field wins.
type columnMapping map[Field]int

func mapColumns(header []string) columnMapping {
	m := make(columnMapping, len(header))
	for i, h := range header {
		field, ok := columnAliases[normalizeHeader(h)]
		if !ok {
			continue
		}
		if _, seen := m[field]; !seen {
			m[field] = i
		}
	}
	return m
}

func (m columnMapping) has(f Field) bool {
	_, ok := m[f]
	return ok
}

// value returns the raw cell for f, or "" when the column is absent or the
// row is short.
func (m columnMapping) value(row []string, f Field) string {
	i, ok := m[f]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}

func (m columnMapping) require(fields ...Field) error {
	for _, f := range fields {
		if !m.has(f) {
			return missingColumn(f)
		}
	}
	return nil
}
