// Package wbr computes the weekly business review indicators: open rates,
// week-over-week and goal variance, and the on/off track status.
//
// Every function here is pure. Inputs are never mutated and outputs are
// freshly allocated, so recomputation can run on any record set without
// touching reviewer annotations.
package wbr

import (
	"math"

	"github.com/ignite/wbr-monitor/internal/domain"
)

// CalculateMetrics derives open rate, open rate % and goal % for each
// record, preserving input order.
func CalculateMetrics(records []domain.CampaignRecord) []domain.ComputedRecord {
	out := make([]domain.ComputedRecord, len(records))
	for i, r := range records {
		rate, quality := openRate(r.Opens, r.EmailsSent)
		m := domain.DerivedMetrics{
			OpenRate: rate,
			GoalPct:  r.GoalOpenRate * 100,
			Status:   domain.StatusOnTrack,
			Quality:  quality,
		}
		if rate != nil {
			m.OpenRatePct = floatPtr(*rate * 100)
		}
		out[i] = domain.ComputedRecord{Record: r, Metrics: m}
	}
	return out
}

// openRate returns opens/sent, or nil with a quality flag when the rate is
// undefined (no sends) or impossible (more opens than sends).
func openRate(opens, sent int64) (*float64, domain.DataQuality) {
	if sent <= 0 {
		return nil, domain.QualityNoEmailsSent
	}
	if opens > sent {
		return nil, domain.QualityOpensExceedSent
	}
	return floatPtr(float64(opens) / float64(sent)), domain.QualityOK
}

// floatPtr returns nil for NaN and Inf so they never reach callers.
func floatPtr(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
