// Package export writes the review table as a CSV in the same column set
// the ingest package reads back for report import.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
)

// Columns is the header row of an exported report.
var Columns = []string{
	string(ingest.FieldDate),
	string(ingest.FieldCampaignName),
	string(ingest.FieldOpenRatePct),
	string(ingest.FieldGoalPct),
	string(ingest.FieldWoWVariance),
	string(ingest.FieldStatus),
	string(ingest.FieldRootCauseHypothesis),
	string(ingest.FieldPathToGreen),
}

// ContentType is served with exported reports.
const ContentType = "text/csv; charset=utf-8"

// Filename returns the download name for a report exported at t.
func Filename(t time.Time) string {
	return fmt.Sprintf("WBR_Report_%s.csv", t.Format("20060102"))
}

// WriteCSV writes rows in the order given. Percentages carry one decimal;
// undefined metrics are written as empty cells.
func WriteCSV(w io.Writer, rows []domain.ReportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(Columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.Date.UTC().Format(domain.DateLayout),
			r.CampaignName,
			pct(r.OpenRatePct),
			strconv.FormatFloat(r.GoalPct, 'f', 1, 64),
			pct(r.WoWVariance),
			r.Status.Label(),
			r.RootCauseHypothesis,
			r.PathToGreen,
		}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s: %w", r.ID(), err)
		}
	}
	cw.Flush()
	return cw.Error()
}

func pct(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', 1, 64)
}
