package export

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func f(v float64) *float64 { return &v }

func sampleRows() []domain.ReportRow {
	return []domain.ReportRow{
		{
			Date:                time.Date(2024, 3, 25, 0, 0, 0, 0, time.UTC),
			CampaignName:        "Newsletter 13",
			OpenRatePct:         f(14.285714),
			GoalPct:             20,
			WoWVariance:         f(-29.04),
			GoalVariance:        f(-5.714286),
			Status:              domain.StatusOffTrack,
			RootCauseHypothesis: "Subject line \"too long\", Gmail clipping",
			PathToGreen:         "Shorten subject\nRetest next week",
		},
		{
			Date:         time.Date(2024, 3, 18, 0, 0, 0, 0, time.UTC),
			CampaignName: "Newsletter 12",
			GoalPct:      20,
			Status:       domain.StatusOnTrack,
			DataQuality:  domain.QualityNoEmailsSent,
		},
	}
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "WBR_Report_20240402.csv", Filename(time.Date(2024, 4, 2, 15, 4, 5, 0, time.UTC)))
}

func TestWriteCSV_Format(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, sampleRows()))

	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, Columns, records[0])
	assert.Equal(t, []string{"2024-03-25", "Newsletter 13", "14.3", "20.0", "-29.0", "Off Track"}, records[1][:6])
	assert.Equal(t, []string{"2024-03-18", "Newsletter 12", "", "20.0", "", "On Track", "", ""}, records[2])
}

func TestWriteCSV_ReimportPreservesNarrative(t *testing.T) {
	rows := sampleRows()
	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))

	got, err := ingest.ReadReport(&buf)
	require.NoError(t, err)
	require.Len(t, got, len(rows))
	for _, r := range rows {
		a := got[r.ID()]
		assert.Equal(t, r.RootCauseHypothesis, a.RootCauseHypothesis)
		assert.Equal(t, r.PathToGreen, a.PathToGreen)
	}
}

func TestWriteCSV_ReimportPreservesStoredLineBreaks(t *testing.T) {
	// Text as a browser textarea submits it, then as the narrative store keeps it.
	stored := domain.Annotation{
		RootCauseHypothesis: "line one\r\nline two",
		PathToGreen:         "a\rb\r\n\r\nc",
	}.Normalize()
	assert.Equal(t, "line one\nline two", stored.RootCauseHypothesis)

	rows := sampleRows()
	rows[0].RootCauseHypothesis = stored.RootCauseHypothesis
	rows[0].PathToGreen = stored.PathToGreen

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, rows))
	got, err := ingest.ReadReport(&buf)
	require.NoError(t, err)
	assert.Equal(t, stored, got[rows[0].ID()])
}
