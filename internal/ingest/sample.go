package ingest

import (
	"fmt"
	"time"

	"github.com/ignite/wbr-monitor/internal/domain"
)

var (
	sampleStart = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	sampleSent  = []int64{1000, 1200, 1100, 1500, 1600, 1550, 1700, 1800, 1750, 2000, 2100, 2200}
	sampleOpens = []int64{200, 250, 210, 300, 280, 270, 340, 360, 250, 400, 420, 310}
)

// SampleRecords returns twelve weekly Monday periods of a newsletter with a
// 20% goal, used when no dataset has been supplied.
func SampleRecords() []domain.CampaignRecord {
	out := make([]domain.CampaignRecord, len(sampleSent))
	for i := range sampleSent {
		out[i] = domain.CampaignRecord{
			Date:         sampleStart.AddDate(0, 0, 7*i),
			CampaignName: fmt.Sprintf("Newsletter %d", i+1),
			EmailsSent:   sampleSent[i],
			Opens:        sampleOpens[i],
			GoalOpenRate: DefaultGoalOpenRate,
		}
	}
	return out
}

// SampleDataset wraps SampleRecords as a Dataset without narrative.
func SampleDataset() *Dataset {
	return &Dataset{Records: SampleRecords()}
}
