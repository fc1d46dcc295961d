package model

import (
	"time"
)

// LeadStatus tracks a lead through the sales funnel. The pipeline only ever
// writes LeadStatusNew; later transitions come from officer feedback.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "new"
	LeadStatusContacted LeadStatus = "contacted"
	LeadStatusQualified LeadStatus = "qualified"
	LeadStatusConverted LeadStatus = "converted"
	LeadStatusRejected  LeadStatus = "rejected"
)

// Lead is a scored, routed sales opportunity derived from one signal.
type Lead struct {
	ID                int64          `json:"id" db:"id"`
	CompanyID         int64          `json:"company_id" db:"company_id"`
	SourceID          int64          `json:"source_id" db:"source_id"`
	SignalText        string         `json:"signal_text" db:"signal_text"`
	SignalURL         string         `json:"signal_url,omitempty" db:"signal_url"`
	SignalType        string         `json:"signal_type" db:"signal_type"`
	SignalDate        time.Time      `json:"signal_date" db:"signal_date"`
	MatchedKeywords   []string       `json:"detected_keywords" db:"detected_keywords"`
	MatchedEquipment  []string       `json:"detected_equipment" db:"detected_equipment"`
	DetectedLocations []string       `json:"detected_locations" db:"detected_locations"`
	Recommendations   []ProductMatch `json:"recommended_products" db:"recommended_products"`
	LeadScore         float64        `json:"lead_score" db:"lead_score"`
	Intent            IntentStrength `json:"intent_strength" db:"intent_strength"`
	UrgencyDays       int            `json:"urgency_days" db:"urgency_days"`
	Confidence        float64        `json:"confidence" db:"confidence"`
	AssignedOfficerID *int64         `json:"assigned_officer_id,omitempty" db:"assigned_officer_id"`
	TerritoryState    string         `json:"territory_state,omitempty" db:"territory_state"`
	Status            LeadStatus     `json:"status" db:"status"`
	NextAction        string         `json:"next_action" db:"next_action"`
	CreatedAt         time.Time      `json:"created_at" db:"created_at"`
}

// Next-action hints keyed by intent strength.
const (
	NextActionHigh   = "Contact immediately - High intent signal detected (tender/procurement)"
	NextActionMedium = "Schedule call within 3 days - Expansion/new facility signal"
	NextActionLow    = "Research company and prepare pitch - General signal"
)

// NextAction returns the follow-up hint for an intent bucket.
func NextAction(intent IntentStrength) string {
	switch intent {
	case IntentHigh:
		return NextActionHigh
	case IntentMedium:
		return NextActionMedium
	default:
		return NextActionLow
	}
}

// UrgencyDays converts an urgency score into a follow-up window in days.
func UrgencyDays(urgency float64) int {
	switch {
	case urgency >= 0.8:
		return 7
	case urgency >= 0.6:
		return 14
	case urgency >= 0.4:
		return 30
	default:
		return 60
	}
}
