package wbr

import (
	"testing"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func week(n int) time.Time {
	return time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 7*n)
}

func rec(n int, sent, opens int64, goal float64) domain.CampaignRecord {
	return domain.CampaignRecord{
		Date:         week(n),
		CampaignName: "Newsletter",
		EmailsSent:   sent,
		Opens:        opens,
		GoalOpenRate: goal,
	}
}

func f(v float64) *float64 { return &v }

func TestCalculateMetrics_OnGoal(t *testing.T) {
	out := NewPipeline(DefaultOffTrackThreshold).Compute([]domain.CampaignRecord{rec(0, 1000, 200, 0.20)})
	require.Len(t, out, 1)

	m := out[0].Metrics
	require.NotNil(t, m.OpenRatePct)
	assert.InDelta(t, 20.0, *m.OpenRatePct, 1e-9)
	assert.InDelta(t, 20.0, m.GoalPct, 1e-9)
	require.NotNil(t, m.GoalVariance)
	assert.InDelta(t, 0.0, *m.GoalVariance, 1e-9)
	assert.Equal(t, domain.StatusOnTrack, m.Status)
	assert.Nil(t, m.WoWVariance)
}

func TestPercentChange(t *testing.T) {
	got := PercentChange(f(0.25), f(0.21))
	require.NotNil(t, got)
	assert.InDelta(t, -16.0, *got, 1e-9)

	assert.Nil(t, PercentChange(nil, f(0.21)))
	assert.Nil(t, PercentChange(f(0), f(0.21)))
	assert.Nil(t, PercentChange(f(0.25), nil))
}

func TestCompute_ZeroSends(t *testing.T) {
	out := NewPipeline(DefaultOffTrackThreshold).Compute([]domain.CampaignRecord{
		rec(0, 0, 0, 0.20),
		rec(1, 1000, 210, 0.20),
	})
	require.Len(t, out, 2)

	first := out[0].Metrics
	assert.Nil(t, first.OpenRate)
	assert.Nil(t, first.OpenRatePct)
	assert.Nil(t, first.GoalVariance)
	assert.Equal(t, domain.StatusOnTrack, first.Status)
	assert.Equal(t, domain.QualityNoEmailsSent, first.Quality)

	assert.Nil(t, out[1].Metrics.WoWVariance)
	require.NotNil(t, out[1].Metrics.OpenRate)
}

func TestCompute_BelowGoal(t *testing.T) {
	out := NewPipeline(DefaultOffTrackThreshold).Compute([]domain.CampaignRecord{rec(0, 1750, 250, 0.20)})
	m := out[0].Metrics
	require.NotNil(t, m.OpenRatePct)
	assert.InDelta(t, 14.2857, *m.OpenRatePct, 0.001)
	assert.InDelta(t, -5.7143, *m.GoalVariance, 0.001)
	assert.Equal(t, domain.StatusOffTrack, m.Status)
}

func TestClassify_Boundary(t *testing.T) {
	tests := []struct {
		name     string
		variance *float64
		want     domain.Status
	}{
		{"exactly at threshold", f(-2.0), domain.StatusOnTrack},
		{"just below threshold", f(-2.0001), domain.StatusOffTrack},
		{"above goal", f(3.5), domain.StatusOnTrack},
		{"missing variance", nil, domain.StatusOnTrack},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.variance))
		})
	}
}

func TestClassifier_CustomThreshold(t *testing.T) {
	c := NewClassifier(-5)
	assert.Equal(t, domain.StatusOnTrack, c.Classify(f(-4.9)))
	assert.Equal(t, domain.StatusOffTrack, c.Classify(f(-5.1)))
}

func TestApplyVariance_IgnoresInputOrder(t *testing.T) {
	in := []domain.CampaignRecord{
		rec(2, 1000, 300, 0.20),
		rec(0, 1000, 250, 0.20),
		rec(1, 1000, 210, 0.20),
	}
	out := NewPipeline(DefaultOffTrackThreshold).Compute(in)
	require.Len(t, out, 3)

	assert.True(t, out[0].Record.Date.Equal(week(0)))
	assert.Nil(t, out[0].Metrics.WoWVariance)
	require.NotNil(t, out[1].Metrics.WoWVariance)
	assert.InDelta(t, -16.0, *out[1].Metrics.WoWVariance, 1e-9)
	require.NotNil(t, out[2].Metrics.WoWVariance)
	assert.InDelta(t, (0.30-0.21)/0.21*100, *out[2].Metrics.WoWVariance, 1e-9)

	// input untouched
	assert.True(t, in[0].Date.Equal(week(2)))
}

func TestApplyVariance_SameDateOrderedByName(t *testing.T) {
	a := rec(0, 1000, 200, 0.20)
	a.CampaignName = "Alpha"
	b := rec(0, 1000, 300, 0.20)
	b.CampaignName = "Beta"

	p := NewPipeline(DefaultOffTrackThreshold)
	for _, in := range [][]domain.CampaignRecord{{a, b}, {b, a}} {
		out := p.Compute(in)
		require.Len(t, out, 2)
		assert.Equal(t, "Alpha", out[0].Record.CampaignName)
		assert.Equal(t, "Beta", out[1].Record.CampaignName)
		assert.Nil(t, out[0].Metrics.WoWVariance)
		require.NotNil(t, out[1].Metrics.WoWVariance)
		assert.InDelta(t, 50.0, *out[1].Metrics.WoWVariance, 1e-9)
	}
}

func TestCalculateMetrics_OpensExceedSent(t *testing.T) {
	out := CalculateMetrics([]domain.CampaignRecord{rec(0, 100, 150, 0.20)})
	m := out[0].Metrics
	assert.Nil(t, m.OpenRate)
	assert.Equal(t, domain.QualityOpensExceedSent, m.Quality)
}

func TestCalculateMetrics_RateBounds(t *testing.T) {
	var in []domain.CampaignRecord
	for sent := int64(1); sent <= 40; sent += 3 {
		for opens := int64(0); opens <= sent; opens += 2 {
			in = append(in, rec(0, sent, opens, 0.2))
		}
	}
	for _, c := range CalculateMetrics(in) {
		require.NotNil(t, c.Metrics.OpenRate)
		assert.GreaterOrEqual(t, *c.Metrics.OpenRate, 0.0)
		assert.LessOrEqual(t, *c.Metrics.OpenRate, 1.0)
	}
}

func TestAssemble_MostRecentFirst(t *testing.T) {
	computed := NewPipeline(DefaultOffTrackThreshold).Compute([]domain.CampaignRecord{
		rec(0, 1000, 200, 0.20),
		rec(1, 1000, 180, 0.20),
	})
	annotated := make([]domain.AnnotatedRecord, len(computed))
	for i, c := range computed {
		annotated[i] = domain.AnnotatedRecord{ComputedRecord: c}
	}
	annotated[1].Annotation = domain.Annotation{RootCauseHypothesis: "subject line", PathToGreen: "A/B test"}

	rows := Assemble(annotated)
	require.Len(t, rows, 2)
	assert.True(t, rows[0].Date.Equal(week(1)))
	assert.Equal(t, "subject line", rows[0].RootCauseHypothesis)
	assert.Equal(t, "A/B test", rows[0].PathToGreen)
	assert.Equal(t, "", rows[1].RootCauseHypothesis)
}
