// Package notify delivers new-lead notifications to sales officers. The
// pipeline decides whether and whom to notify; a Notifier handles delivery.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/model"
)

// Request is everything an officer needs to act on a new lead.
type Request struct {
	ID              string               `json:"id"`
	OfficerID       int64                `json:"officer_id"`
	OfficerName     string               `json:"officer_name"`
	OfficerEmail    string               `json:"officer_email"`
	LeadID          int64                `json:"lead_id"`
	CompanyName     string               `json:"company_name"`
	Industry        string               `json:"industry,omitempty"`
	Location        string               `json:"location,omitempty"`
	SignalType      string               `json:"signal_type"`
	SignalText      string               `json:"signal_text"`
	LeadScore       float64              `json:"lead_score"`
	Intent          model.IntentStrength `json:"intent"`
	Recommendations []model.ProductMatch `json:"recommendations"`
	MatchedKeywords []string             `json:"matched_keywords"`
	NextAction      string               `json:"next_action"`
	DossierURL      string               `json:"dossier_url,omitempty"`
	CreatedAt       time.Time            `json:"created_at"`
}

// NewRequest assembles a Request for a persisted lead.
func NewRequest(officer *model.Officer, company *model.Company, lead *model.Lead, dossierBaseURL string) Request {
	return Request{
		ID:              uuid.NewString(),
		OfficerID:       officer.ID,
		OfficerName:     officer.Name,
		OfficerEmail:    officer.Email,
		LeadID:          lead.ID,
		CompanyName:     company.Name,
		Industry:        company.Industry,
		Location:        company.Location(),
		SignalType:      lead.SignalType,
		SignalText:      lead.SignalText,
		LeadScore:       lead.LeadScore,
		Intent:          lead.Intent,
		Recommendations: lead.Recommendations,
		MatchedKeywords: lead.MatchedKeywords,
		NextAction:      lead.NextAction,
		DossierURL:      DossierURL(dossierBaseURL, lead.ID),
		CreatedAt:       time.Now().UTC(),
	}
}

// DossierURL links to a lead's detail page, or "" without a base URL.
func DossierURL(base string, leadID int64) string {
	base = strings.TrimRight(strings.TrimSpace(base), "/")
	if base == "" {
		return ""
	}
	return fmt.Sprintf("%s/leads/%d", base, leadID)
}

// Subject is the one-line summary used for e-mail subjects and log lines.
func (r Request) Subject() string {
	return fmt.Sprintf("New %s-intent lead: %s (score %.0f)", r.Intent, r.CompanyName, r.LeadScore)
}

// Rationale joins each recommendation's reason, one product per line.
func (r Request) Rationale() string {
	lines := make([]string, 0, len(r.Recommendations))
	for _, rec := range r.Recommendations {
		lines = append(lines, fmt.Sprintf("%s (%.0f%%): %s", rec.Product, rec.Confidence*100, rec.Reason))
	}
	return strings.Join(lines, "\n")
}

// Notifier delivers a Request. Implementations must be safe for sequential
// use by one pipeline.
type Notifier interface {
	Notify(ctx context.Context, req Request) error
}

// Func adapts a function to Notifier.
type Func func(ctx context.Context, req Request) error

// Notify calls f.
func (f Func) Notify(ctx context.Context, req Request) error {
	return f(ctx, req)
}

// Noop discards every request.
type Noop struct{}

func (Noop) Notify(context.Context, Request) error { return nil }

// LogNotifier writes requests to the global zap logger.
type LogNotifier struct{}

func (LogNotifier) Notify(_ context.Context, req Request) error {
	zap.L().Info("notify: new lead",
		zap.String("request_id", req.ID),
		zap.Int64("lead_id", req.LeadID),
		zap.Int64("officer_id", req.OfficerID),
		zap.String("officer_email", req.OfficerEmail),
		zap.String("company", req.CompanyName),
		zap.Float64("score", req.LeadScore),
		zap.String("intent", string(req.Intent)),
		zap.String("next_action", req.NextAction),
		zap.String("dossier_url", req.DossierURL),
	)
	return nil
}
