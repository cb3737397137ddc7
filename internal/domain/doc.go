// Package domain defines the core business types for the weekly business
// review (WBR) report: campaign periods, their derived open-rate metrics,
// reviewer annotations and the assembled report row.
//
// These are value objects shared by the calculation pipeline, the narrative
// store, repositories and handlers. The package imports nothing else from
// internal/. Methods stay pure: identity keys, range validation and status
// labels. Derived metrics use nil pointers for values that cannot be
// computed, never NaN.
package domain
