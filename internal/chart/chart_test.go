package chart

import (
	"bytes"
	"image"
	"image/png"
	"testing"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
	"github.com/ignite/wbr-monitor/internal/ingest"
	"github.com/ignite/wbr-monitor/internal/wbr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSeries() Series {
	return FromComputed(wbr.NewPipeline(wbr.DefaultOffTrackThreshold).Compute(ingest.SampleRecords()))
}

func TestFromComputed_Chronological(t *testing.T) {
	computed := wbr.NewPipeline(wbr.DefaultOffTrackThreshold).Compute(ingest.SampleRecords())
	reversed := make([]domain.ComputedRecord, len(computed))
	for i := range computed {
		reversed[len(computed)-1-i] = computed[i]
	}

	s := FromComputed(reversed)
	require.Len(t, s.Points, 12)
	assert.Equal(t, DefaultTitle, s.Title)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), s.Points[0].Date)
	require.NotNil(t, s.Points[0].OpenRatePct)
	assert.InDelta(t, 20.0, *s.Points[0].OpenRatePct, 1e-9)
	assert.InDelta(t, 20.0, s.Points[11].GoalPct, 1e-9)
}

func TestRenderPNG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderPNG(&buf, sampleSeries(), DefaultOptions))

	img, err := png.Decode(&buf)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 800, 400), img.Bounds())
	assert.True(t, hasReddish(img), "goal line should be drawn")
}

func TestRender_GapsAndSinglePoint(t *testing.T) {
	rate := 12.5
	s := Series{Points: []Point{
		{Date: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), OpenRatePct: &rate, GoalPct: 20},
		{Date: time.Date(2024, 1, 8, 0, 0, 0, 0, time.UTC), GoalPct: 20},
	}}
	img, err := Render(s, Options{Width: 10, Height: 10})
	require.NoError(t, err)
	assert.Equal(t, DefaultOptions.Width, img.Bounds().Dx())

	_, err = Render(Series{Points: s.Points[:1]}, DefaultOptions)
	assert.NoError(t, err)
}

func TestRender_NoData(t *testing.T) {
	_, err := Render(Series{}, DefaultOptions)
	assert.ErrorIs(t, err, ErrNoData)
}

func TestAxisMax(t *testing.T) {
	hi := 24.0
	assert.Equal(t, 27.0, axisMax([]Point{{OpenRatePct: &hi, GoalPct: 20}}))
	assert.Equal(t, 1.0, axisMax([]Point{{GoalPct: 0}}))
}

func hasReddish(img image.Image) bool {
	b := img.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			if r>>8 > 180 && g>>8 < 90 && bl>>8 < 90 {
				return true
			}
		}
	}
	return false
}
