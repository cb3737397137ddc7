package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/repository/memory"
	"github.com/ignite/wbr-monitor/internal/service/narrative"
	"github.com/ignite/wbr-monitor/internal/wbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	lastWeek = domain.RowID{Date: "2024-03-18", CampaignName: "Newsletter 12"}
	ninth    = domain.RowID{Date: "2024-02-26", CampaignName: "Newsletter 9"}
)

func newSession(t *testing.T) *Session {
	t.Helper()
	s := New(wbr.NewPipeline(wbr.DefaultOffTrackThreshold), narrative.NewStore(memory.NewAnnotationRepo()))
	s.now = func() time.Time { return time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC) }
	return s
}

func loadSample(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Load(context.Background(), ingest.SampleDataset(), SourceSample))
}

func TestSession_NotLoaded(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	_, err := s.Rows(ctx)
	assert.ErrorIs(t, err, ErrNotLoaded)
	_, err = s.Chart()
	assert.ErrorIs(t, err, ErrNotLoaded)
	assert.ErrorIs(t, s.Annotate(ctx, lastWeek, domain.Annotation{}), ErrNotLoaded)
	assert.False(t, s.Info().Loaded)
}

func TestSession_LoadSample(t *testing.T) {
	s := newSession(t)
	loadSample(t, s)

	rows, err := s.Rows(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 12)
	assert.Equal(t, "Newsletter 12", rows[0].CampaignName)
	assert.Equal(t, "Newsletter 1", rows[11].CampaignName)
	assert.Nil(t, rows[11].WoWVariance)

	// Week 9: 250/1750 is about 14.29%, 5.71 points under goal.
	var week9 domain.ReportRow
	for _, r := range rows {
		if r.ID() == ninth {
			week9 = r
		}
	}
	require.NotNil(t, week9.OpenRatePct)
	assert.InDelta(t, 14.2857, *week9.OpenRatePct, 1e-3)
	assert.Equal(t, domain.StatusOffTrack, week9.Status)

	info := s.Info()
	assert.True(t, info.Loaded)
	assert.Equal(t, SourceSample, info.Source)
	assert.Equal(t, 12, info.Records)
	assert.Equal(t, -2.0, info.Threshold)
	assert.Equal(t, time.Date(2024, 3, 25, 9, 0, 0, 0, time.UTC), s.LoadedAt())
	assert.Positive(t, info.OffTrack)
}

func TestSession_AnnotationsSurviveReload(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	loadSample(t, s)

	note := domain.Annotation{RootCauseHypothesis: "Send time moved to Friday", PathToGreen: "Revert to Tuesday"}
	require.NoError(t, s.Annotate(ctx, ninth, note))

	loadSample(t, s)

	got, err := s.Annotation(ctx, ninth)
	require.NoError(t, err)
	assert.Equal(t, note, got)

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	for _, r := range rows {
		if r.ID() == ninth {
			assert.Equal(t, note.PathToGreen, r.PathToGreen)
		} else {
			assert.Empty(t, r.RootCauseHypothesis)
		}
	}
}

func TestSession_UnknownRow(t *testing.T) {
	s := newSession(t)
	loadSample(t, s)

	err := s.Annotate(context.Background(), domain.RowID{Date: "2030-01-01", CampaignName: "Nope"}, domain.Annotation{PathToGreen: "x"})
	assert.ErrorIs(t, err, ErrUnknownRow)
}

func TestSession_LoadRejectsBadDatasets(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Load(ctx, &ingest.Dataset{}, SourceUpload), ErrNoRecords)

	recs := ingest.SampleRecords()
	dup := &ingest.Dataset{Records: append(recs, recs[0])}
	assert.ErrorIs(t, s.Load(ctx, dup, SourceUpload), ErrDuplicateRow)

	bad := ingest.SampleRecords()
	bad[3].Opens = -1
	err := s.Load(ctx, &ingest.Dataset{Records: bad}, SourceWarehouse)
	assert.Error(t, err)

	assert.False(t, s.Loaded(), "failed loads leave the session empty")
}

func TestSession_LoadSeedsAnnotations(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	ds := ingest.SampleDataset()
	ds.HasAnnotations = true
	ds.Annotations = map[domain.RowID]domain.Annotation{
		lastWeek: {RootCauseHypothesis: "from file"},
	}
	require.NoError(t, s.Load(ctx, ds, SourceUpload))

	got, err := s.Annotation(ctx, lastWeek)
	require.NoError(t, err)
	assert.Equal(t, "from file", got.RootCauseHypothesis)
}

func TestSession_ReloadWithBlankNarrativeKeepsText(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	first := "Date,Campaign_Name,Emails_Sent,Opens,Goal_Open_Rate,Root_Cause_Hypothesis,Path_to_Green\n" +
		"2024-01-01,N1,1000,150,0.2,,\n" +
		"2024-01-08,N2,1000,210,0.2,,\n"

	ds, err := ingest.ReadCSV(strings.NewReader(first), ingest.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx, ds, SourceUpload))

	n1 := domain.RowID{Date: "2024-01-01", CampaignName: "N1"}
	require.NoError(t, s.Annotate(ctx, n1, domain.Annotation{RootCauseHypothesis: "holiday"}))

	corrected := strings.Replace(first, "1000,150", "1000,160", 1)
	ds, err = ingest.ReadCSV(strings.NewReader(corrected), ingest.Options{})
	require.NoError(t, err)
	require.NoError(t, s.Load(ctx, ds, SourceUpload))

	got, err := s.Annotation(ctx, n1)
	require.NoError(t, err)
	assert.Equal(t, "holiday", got.RootCauseHypothesis)

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "holiday", rows[1].RootCauseHypothesis)
	assert.InDelta(t, 16.0, *rows[1].OpenRatePct, 1e-9)
}

func TestSession_LoadSkipsBlankAndForeignSeeds(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	loadSample(t, s)
	require.NoError(t, s.Annotate(ctx, ninth, domain.Annotation{PathToGreen: "keep"}))

	ds := ingest.SampleDataset()
	ds.HasAnnotations = true
	ds.Annotations = map[domain.RowID]domain.Annotation{
		ninth: {},
		{Date: "2023-12-25", CampaignName: "Holiday"}: {PathToGreen: "n/a"},
	}
	require.NoError(t, s.Load(ctx, ds, SourceUpload))

	got, err := s.Annotation(ctx, ninth)
	require.NoError(t, err)
	assert.Equal(t, "keep", got.PathToGreen)
}

type failingRepo struct{ *memory.AnnotationRepo }

func (failingRepo) Put(context.Context, domain.RowID, domain.Annotation) error {
	return errors.New("backend down")
}

func TestSession_SeedFailureKeepsNewDataset(t *testing.T) {
	s := New(wbr.NewPipeline(wbr.DefaultOffTrackThreshold), narrative.NewStore(failingRepo{memory.NewAnnotationRepo()}))
	ctx := context.Background()

	ds := ingest.SampleDataset()
	ds.HasAnnotations = true
	ds.Annotations = map[domain.RowID]domain.Annotation{lastWeek: {PathToGreen: "x"}}
	err := s.Load(ctx, ds, SourceUpload)
	require.Error(t, err)

	// Metrics and identities belong to the new dataset even when seeding fails.
	assert.True(t, s.Loaded())
	assert.Equal(t, SourceUpload, s.Info().Source)
}

func TestSession_InvalidRecord(t *testing.T) {
	s := newSession(t)
	bad := ingest.SampleRecords()
	bad[0].GoalOpenRate = 1.5
	err := s.Load(context.Background(), &ingest.Dataset{Records: bad}, SourceWarehouse)
	assert.ErrorIs(t, err, ErrInvalidRecord)
}

func TestSession_ImportAnnotations(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()

	_, _, err := s.ImportAnnotations(ctx, nil)
	assert.True(t, errors.Is(err, ErrNotLoaded))

	loadSample(t, s)
	applied, skipped, err := s.ImportAnnotations(ctx, map[domain.RowID]domain.Annotation{
		lastWeek: {PathToGreen: "re-segment"},
		{Date: "2023-12-25", CampaignName: "Holiday"}: {PathToGreen: "n/a"},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, skipped)

	got, err := s.Annotation(ctx, lastWeek)
	require.NoError(t, err)
	assert.Equal(t, "re-segment", got.PathToGreen)
}

func TestSession_Reset(t *testing.T) {
	s := newSession(t)
	ctx := context.Background()
	loadSample(t, s)
	require.NoError(t, s.Annotate(ctx, lastWeek, domain.Annotation{PathToGreen: "x"}))

	require.NoError(t, s.Reset(ctx))
	assert.False(t, s.Loaded())
	assert.True(t, s.LoadedAt().IsZero())

	loadSample(t, s)
	got, err := s.Annotation(ctx, lastWeek)
	require.NoError(t, err)
	assert.True(t, got.IsEmpty())
}

func TestSession_Chart(t *testing.T) {
	s := newSession(t)
	loadSample(t, s)

	series, err := s.Chart()
	require.NoError(t, err)
	require.Len(t, series.Points, 12)
	assert.True(t, series.Points[0].Date.Before(series.Points[11].Date))
}
