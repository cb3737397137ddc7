package wbr

import "github.com/ignite/wbr-monitor/internal/domain"

// DefaultOffTrackThreshold is the goal variance, in percentage points,
// below which a period is off track.
const DefaultOffTrackThreshold = -2.0

// Classifier maps goal variance to a status.
type Classifier struct {
	Threshold float64
}

// NewClassifier returns a classifier using the given threshold.
func NewClassifier(threshold float64) Classifier {
	return Classifier{Threshold: threshold}
}

// Classify returns OffTrack when goalVariance is strictly below the
// threshold. Missing variance classifies as OnTrack.
func (c Classifier) Classify(goalVariance *float64) domain.Status {
	if goalVariance != nil && *goalVariance < c.Threshold {
		return domain.StatusOffTrack
	}
	return domain.StatusOnTrack
}

// Apply returns a copy of rows with Status set.
func (c Classifier) Apply(rows []domain.ComputedRecord) []domain.ComputedRecord {
	out := make([]domain.ComputedRecord, len(rows))
	for i, r := range rows {
		r.Metrics.Status = c.Classify(r.Metrics.GoalVariance)
		out[i] = r
	}
	return out
}

// Classify uses DefaultOffTrackThreshold.
func Classify(goalVariance *float64) domain.Status {
	return NewClassifier(DefaultOffTrackThreshold).Classify(goalVariance)
}
