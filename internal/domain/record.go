package domain

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the calendar-day format used for row identity and exports.
const DateLayout = "2006-01-02"

// CampaignRecord is one reporting period for a campaign as loaded from the
// input dataset. Counts are raw; rates are derived downstream.
type CampaignRecord struct {
	Date         time.Time `json:"date" db:"report_date"`
	CampaignName string    `json:"campaign_name" db:"campaign_name"`
	EmailsSent   int64     `json:"emails_sent" db:"emails_sent"`
	Opens        int64     `json:"opens" db:"opens"`
	GoalOpenRate float64   `json:"goal_open_rate" db:"goal_open_rate"`
}

// ID returns the stable identity of the record.
func (r CampaignRecord) ID() RowID {
	return NewRowID(r.Date, r.CampaignName)
}

// Validate checks the field ranges of a record. Opens exceeding sends is a
// data-quality condition flagged by the calculator, not a validation error.
func (r CampaignRecord) Validate() error {
	if r.Date.IsZero() {
		return fmt.Errorf("date is required")
	}
	if strings.TrimSpace(r.CampaignName) == "" {
		return fmt.Errorf("campaign name is required")
	}
	if r.EmailsSent < 0 {
		return fmt.Errorf("emails sent must be non-negative, got %d", r.EmailsSent)
	}
	if r.Opens < 0 {
		return fmt.Errorf("opens must be non-negative, got %d", r.Opens)
	}
	if r.GoalOpenRate < 0 || r.GoalOpenRate > 1 {
		return fmt.Errorf("goal open rate must be within [0,1], got %g", r.GoalOpenRate)
	}
	return nil
}

// RowID identifies a row across recomputation: the calendar day of the
// period plus the campaign name. It is comparable and safe as a map key.
type RowID struct {
	Date         string `json:"date"`
	CampaignName string `json:"campaign_name"`
}

// NewRowID builds a RowID from a period timestamp and campaign name.
func NewRowID(date time.Time, campaignName string) RowID {
	return RowID{
		Date:         date.UTC().Format(DateLayout),
		CampaignName: strings.TrimSpace(campaignName),
	}
}

// ParseRowID builds a RowID from a "2006-01-02" date string and name.
func ParseRowID(date, campaignName string) (RowID, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(date))
	if err != nil {
		return RowID{}, fmt.Errorf("invalid row date %q: %w", date, err)
	}
	if strings.TrimSpace(campaignName) == "" {
		return RowID{}, fmt.Errorf("campaign name is required")
	}
	return NewRowID(t, campaignName), nil
}

// Key renders the identity as "date|campaign" for key-value backends.
func (id RowID) Key() string {
	return id.Date + "|" + id.CampaignName
}

// RowIDFromKey reverses Key.
func RowIDFromKey(key string) (RowID, error) {
	date, name, ok := strings.Cut(key, "|")
	if !ok {
		return RowID{}, fmt.Errorf("malformed row key %q", key)
	}
	return ParseRowID(date, name)
}

func (id RowID) String() string {
	return id.Date + " " + id.CampaignName
}

// IsZero reports whether the identity is unset.
func (id RowID) IsZero() bool {
	return id.Date == "" && id.CampaignName == ""
}
