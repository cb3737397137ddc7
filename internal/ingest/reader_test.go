package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadCSV_Canonical(t *testing.T) {
	in := "Date,Campaign_Name,Emails_Sent,Opens,Goal_Open_Rate\n" +
		"2024-01-01,Newsletter 1,1000,200,0.20\n" +
		"2024-01-08,Newsletter 2,\"1,200\",250,20%\n"

	ds, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.False(t, ds.HasAnnotations)
	assert.False(t, ds.GoalDefaulted)

	first := ds.Records[0]
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), first.Date)
	assert.Equal(t, "Newsletter 1", first.CampaignName)
	assert.Equal(t, int64(1000), first.EmailsSent)
	assert.Equal(t, int64(200), first.Opens)
	assert.InDelta(t, 0.20, first.GoalOpenRate, 1e-9)

	assert.Equal(t, int64(1200), ds.Records[1].EmailsSent)
	assert.InDelta(t, 0.20, ds.Records[1].GoalOpenRate, 1e-9)
}

func TestReadCSV_HeaderAliases(t *testing.T) {
	in := "\ufeffweek start,Campaign,sent,Unique Opens\n" +
		"01/15/2024,Promo,500,100\n"

	goal := 0.25
	ds, err := ReadCSV(strings.NewReader(in), Options{DefaultGoalOpenRate: &goal})
	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	assert.True(t, ds.GoalDefaulted)
	assert.Equal(t, "2024-01-15", ds.Records[0].ID().Date)
	assert.InDelta(t, 0.25, ds.Records[0].GoalOpenRate, 1e-9)
}

func TestReadCSV_DefaultGoal(t *testing.T) {
	in := "Date,Campaign_Name,Emails_Sent,Opens\n2024-01-01,Launch,1000,250\n"

	ds, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	assert.InDelta(t, DefaultGoalOpenRate, ds.Records[0].GoalOpenRate, 1e-9)

	zero := 0.0
	ds, err = ReadCSV(strings.NewReader(in), Options{DefaultGoalOpenRate: &zero})
	require.NoError(t, err)
	assert.Equal(t, 0.0, ds.Records[0].GoalOpenRate, "an explicit zero goal is kept")
}

func TestReadCSV_DateLayouts(t *testing.T) {
	cases := []string{"2024-02-05", "2024-02-05T10:30:00Z", "2024-02-05 08:00:00", "02/05/2024"}
	for _, raw := range cases {
		t.Run(raw, func(t *testing.T) {
			d, err := parseDate(raw, 1)
			require.NoError(t, err)
			assert.Equal(t, time.Date(2024, 2, 5, 0, 0, 0, 0, time.UTC), d)
		})
	}
}

func TestReadCSV_SchemaErrors(t *testing.T) {
	cases := []struct {
		name   string
		input  string
		column Field
		row    int
	}{
		{"missing opens column", "Date,Campaign_Name,Emails_Sent\n2024-01-01,A,10\n", FieldOpens, 0},
		{"empty input", "", FieldDate, 0},
		{"bad date", "Date,Campaign_Name,Emails_Sent,Opens\nyesterday,A,10,1\n", FieldDate, 1},
		{"negative sends", "Date,Campaign_Name,Emails_Sent,Opens\n2024-01-01,A,-5,1\n", FieldEmailsSent, 1},
		{"fractional opens", "Date,Campaign_Name,Emails_Sent,Opens\n2024-01-01,A,10,1\n2024-01-08,A,10,1.5\n", FieldOpens, 2},
		{"empty goal cell", "Date,Campaign_Name,Emails_Sent,Opens,Goal_Open_Rate\n2024-01-01,A,10,1,\n", FieldGoalOpenRate, 1},
		{"goal out of range", "Date,Campaign_Name,Emails_Sent,Opens,Goal_Open_Rate\n2024-01-01,A,10,1,1.5\n", FieldGoalOpenRate, 1},
		{"empty campaign", "Date,Campaign_Name,Emails_Sent,Opens\n2024-01-01, ,10,1\n", FieldCampaignName, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ReadCSV(strings.NewReader(tc.input), Options{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInputSchema))

			var se *SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, string(tc.column), se.Column)
			assert.Equal(t, tc.row, se.Row)
		})
	}
}

func TestReadCSV_BlankLinesAndIntegralFloats(t *testing.T) {
	in := "Date,Campaign_Name,Emails_Sent,Opens\n" +
		"2024-01-01,A,1500.0,300\n" +
		",,,\n" +
		"2024-01-08,A,0,0\n"

	ds, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.Len(t, ds.Records, 2)
	assert.Equal(t, int64(1500), ds.Records[0].EmailsSent)
	assert.Equal(t, int64(0), ds.Records[1].EmailsSent)
}

func TestReadCSV_AnnotationColumns(t *testing.T) {
	in := "Date,Campaign_Name,Emails_Sent,Opens,Goal_Open_Rate,Root_Cause_Hypothesis,Path_to_Green\n" +
		"2024-03-04,Newsletter 10,2000,400,0.2,\"Promo tab, Gmail\",\"Line one\nLine two\"\n" +
		"2024-03-11,Newsletter 11,2100,420,0.2,,\n"

	ds, err := ReadCSV(strings.NewReader(in), Options{})
	require.NoError(t, err)
	require.True(t, ds.HasAnnotations)
	require.Len(t, ds.Annotations, 1)

	a := ds.Annotations[domain.RowID{Date: "2024-03-04", CampaignName: "Newsletter 10"}]
	assert.Equal(t, "Promo tab, Gmail", a.RootCauseHypothesis)
	assert.Equal(t, "Line one\nLine two", a.PathToGreen)
	_, ok := ds.Annotations[domain.RowID{Date: "2024-03-11", CampaignName: "Newsletter 11"}]
	assert.False(t, ok, "blank narrative cells are not seeded")
}

func TestReadReport(t *testing.T) {
	in := "Date,Campaign_Name,Open_Rate_Pct,Goal_Pct,WoW_Variance,Status,Root_Cause_Hypothesis,Path_to_Green\n" +
		"2024-03-25,Newsletter 13,14.1,20.0,-26.2,Off Track,  leading spaces kept,fix\n" +
		"2024-03-18,Newsletter 12,20.0,20.0,,On Track,,\n"

	got, err := ReadReport(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "  leading spaces kept", got[domain.RowID{Date: "2024-03-25", CampaignName: "Newsletter 13"}].RootCauseHypothesis)
}

func TestReadReport_RequiresNarrativeColumn(t *testing.T) {
	_, err := ReadReport(strings.NewReader("Date,Campaign_Name\n2024-01-01,A\n"))
	assert.ErrorIs(t, err, ErrInputSchema)
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campaigns.csv")
	require.NoError(t, os.WriteFile(path, []byte("Date,Campaign_Name,Emails_Sent,Opens\n2024-01-01,A,10,2\n"), 0644))

	ds, err := ReadFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, ds.Records, 1)

	_, err = ReadFile(filepath.Join(t.TempDir(), "missing.csv"), Options{})
	assert.Error(t, err)
	assert.False(t, errors.Is(err, ErrInputSchema))
}

func TestSampleRecords(t *testing.T) {
	recs := SampleRecords()
	require.Len(t, recs, 12)
	for i, r := range recs {
		require.NoError(t, r.Validate())
		assert.Equal(t, time.Monday, r.Date.Weekday())
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, r.Date.Sub(recs[i-1].Date))
		}
	}
	assert.Equal(t, "Newsletter 1", recs[0].CampaignName)
	assert.Equal(t, int64(2200), recs[11].EmailsSent)
	assert.Equal(t, int64(310), recs[11].Opens)
}
