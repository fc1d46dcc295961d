package model

import (
	"time"
)

// SizeClass buckets a company by headcount/turnover for lead scoring.
type SizeClass string

const (
	SizeEnterprise SizeClass = "enterprise"
	SizeLarge      SizeClass = "large"
	SizeMedium     SizeClass = "medium"
	SizeSmall      SizeClass = "small"
)

// Company is the canonical business entity a lead points at.
// NormalizedName is the dedup key and is always derived from Name.
type Company struct {
	ID             int64     `json:"id" db:"id"`
	Name           string    `json:"name" db:"name"`
	NormalizedName string    `json:"normalized_name" db:"normalized_name"`
	Industry       string    `json:"industry,omitempty" db:"industry"`
	City           string    `json:"city,omitempty" db:"city"`
	State          string    `json:"state,omitempty" db:"state"`
	SizeClass      SizeClass `json:"size_class,omitempty" db:"size_class"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Location renders "city, state" when both are known, otherwise whichever is set.
func (c *Company) Location() string {
	switch {
	case c.City != "" && c.State != "":
		return c.City + ", " + c.State
	case c.State != "":
		return c.State
	case c.City != "":
		return c.City
	default:
		return ""
	}
}

// Officer is a sales representative responsible for a territory.
type Officer struct {
	ID                   int64     `json:"id" db:"id" csv:"-"`
	Name                 string    `json:"name" db:"name" csv:"name"`
	Email                string    `json:"email" db:"email" csv:"email"`
	Phone                string    `json:"phone,omitempty" db:"phone" csv:"phone,omitempty"`
	TerritoryState       string    `json:"territory_state" db:"territory_state" csv:"territory_state"`
	Active               bool      `json:"active" db:"active" csv:"active"`
	NotificationsEnabled bool      `json:"notifications_enabled" db:"notifications_enabled" csv:"notifications_enabled"`
	CreatedAt            time.Time `json:"created_at" db:"created_at" csv:"-"`
}

// Source is a publisher domain that signals arrive from.
type Source struct {
	ID         int64      `json:"id" db:"id"`
	Domain     string     `json:"domain" db:"domain"`
	URL        string     `json:"url" db:"url"`
	Category   string     `json:"category" db:"category"`
	TrustScore float64    `json:"trust_score" db:"trust_score"`
	Active     bool       `json:"active" db:"active"`
	LastSeenAt *time.Time `json:"last_seen_at,omitempty" db:"last_seen_at"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"`
}

// Defaults applied to sources seen for the first time.
const (
	SourceCategoryUnknown = "unknown"
	DefaultTrustScore     = 0.5
)
