package wbr

import "github.com/ignite/wbr-monitor/internal/domain"

// Pipeline runs calculator, variance engine and classifier in order.
type Pipeline struct {
	classifier Classifier
}

// NewPipeline creates a pipeline with the given off-track threshold.
func NewPipeline(threshold float64) *Pipeline {
	return &Pipeline{classifier: NewClassifier(threshold)}
}

// Threshold returns the configured off-track threshold.
func (p *Pipeline) Threshold() float64 {
	return p.classifier.Threshold
}

// Compute returns one computed record per input, in chronological order.
func (p *Pipeline) Compute(records []domain.CampaignRecord) []domain.ComputedRecord {
	return p.classifier.Apply(ApplyVariance(CalculateMetrics(records)))
}
