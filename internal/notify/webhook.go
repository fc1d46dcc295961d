package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/resilience"
)

// WebhookConfig configures JSON delivery to an HTTP endpoint.
type WebhookConfig struct {
	URL     string            `yaml:"url" mapstructure:"url"`
	Timeout time.Duration     `yaml:"timeout" mapstructure:"timeout"`
	Headers map[string]string `yaml:"headers" mapstructure:"headers"`
}

// WebhookNotifier POSTs each request as JSON. 408, 429 and 5xx responses
// are retried under the configured policy.
type WebhookNotifier struct {
	cfg    WebhookConfig
	client *http.Client
	policy resilience.Policy
}

// NewWebhookNotifier creates a WebhookNotifier.
func NewWebhookNotifier(cfg WebhookConfig, policy resilience.Policy) *WebhookNotifier {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	policy.OnRetry = resilience.LogRetries("webhook")
	return &WebhookNotifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		policy: policy,
	}
}

func (n *WebhookNotifier) Notify(ctx context.Context, req Request) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return eris.Wrap(err, "notify: marshal webhook payload")
	}

	err = resilience.Do(ctx, n.policy, func(ctx context.Context) error {
		return n.post(ctx, payload)
	})
	if err != nil {
		return eris.Wrapf(err, "notify: webhook lead %d", req.LeadID)
	}

	zap.L().Debug("notify: webhook delivered",
		zap.Int64("lead_id", req.LeadID),
		zap.String("request_id", req.ID),
	)
	return nil
}

func (n *WebhookNotifier) post(ctx context.Context, payload []byte) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "notify: create webhook request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range n.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := n.client.Do(httpReq)
	if err != nil {
		return eris.Wrap(err, "notify: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	return resilience.CheckStatus(resp.StatusCode, "webhook")
}
