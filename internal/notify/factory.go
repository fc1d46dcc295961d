package notify

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsignal/internal/resilience"
)

// Drivers accepted by New.
const (
	DriverLog     = "log"
	DriverEmail   = "email"
	DriverWebhook = "webhook"
	DriverNone    = "none"
)

// Settings selects a delivery driver and tunes it.
type Settings struct {
	Driver        string
	RatePerMinute float64
	Burst         int
	MaxAttempts   int
	RetryBackoff  time.Duration
	Email         EmailConfig
	Webhook       WebhookConfig
}

// New builds the configured Notifier, rate limited when RatePerMinute > 0.
func New(s Settings) (Notifier, error) {
	policy := resilience.PolicyFor(s.MaxAttempts, s.RetryBackoff)

	var n Notifier
	switch strings.ToLower(strings.TrimSpace(s.Driver)) {
	case "", DriverLog:
		n = LogNotifier{}
	case DriverNone:
		return Noop{}, nil
	case DriverEmail:
		if s.Email.Host == "" || s.Email.From == "" {
			return nil, eris.New("notify: email driver requires host and from")
		}
		n = NewEmailNotifier(s.Email, policy)
	case DriverWebhook:
		if s.Webhook.URL == "" {
			return nil, eris.New("notify: webhook driver requires url")
		}
		n = NewWebhookNotifier(s.Webhook, policy)
	default:
		return nil, eris.Errorf("notify: unknown driver %q", s.Driver)
	}
	return NewRateLimited(n, s.RatePerMinute, s.Burst), nil
}
