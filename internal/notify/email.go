package notify

import (
	"bytes"
	"context"
	"fmt"
	"html/template"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	gomail "gopkg.in/mail.v2"

	"github.com/sells-group/leadsignal/internal/resilience"
)

// EmailConfig holds SMTP settings for officer e-mails.
type EmailConfig struct {
	Host     string        `yaml:"host" mapstructure:"host"`
	Port     int           `yaml:"port" mapstructure:"port"`
	Username string        `yaml:"username" mapstructure:"username"`
	Password string        `yaml:"password" mapstructure:"password"`
	From     string        `yaml:"from" mapstructure:"from"`
	Timeout  time.Duration `yaml:"timeout" mapstructure:"timeout"`
}

// EmailNotifier sends each request as a multipart e-mail to the officer.
type EmailNotifier struct {
	cfg    EmailConfig
	tmpl   *template.Template
	policy resilience.Policy
	send   func(m ...*gomail.Message) error
}

// NewEmailNotifier returns a notifier that dials cfg.Host for every message.
func NewEmailNotifier(cfg EmailConfig, policy resilience.Policy) *EmailNotifier {
	dialer := gomail.NewDialer(cfg.Host, cfg.Port, cfg.Username, cfg.Password)
	dialer.Timeout = cfg.Timeout
	if dialer.Timeout <= 0 {
		dialer.Timeout = 10 * time.Second
	}
	policy.OnRetry = resilience.LogRetries("email")
	return &EmailNotifier{
		cfg:    cfg,
		tmpl:   template.Must(template.New("lead").Funcs(templateFuncs).Parse(leadEmailTemplate)),
		policy: policy,
		send:   dialer.DialAndSend,
	}
}

func (n *EmailNotifier) Notify(ctx context.Context, req Request) error {
	if req.OfficerEmail == "" {
		return eris.Errorf("notify: officer %d has no e-mail address", req.OfficerID)
	}

	msg, err := n.message(req)
	if err != nil {
		return err
	}

	err = resilience.Do(ctx, n.policy, func(context.Context) error {
		return n.send(msg)
	})
	if err != nil {
		return eris.Wrapf(err, "notify: email lead %d to %s", req.LeadID, req.OfficerEmail)
	}

	zap.L().Debug("notify: email sent",
		zap.Int64("lead_id", req.LeadID),
		zap.String("to", req.OfficerEmail),
	)
	return nil
}

func (n *EmailNotifier) message(req Request) (*gomail.Message, error) {
	var html bytes.Buffer
	if err := n.tmpl.Execute(&html, req); err != nil {
		return nil, eris.Wrap(err, "notify: render email")
	}

	m := gomail.NewMessage()
	m.SetHeader("From", n.cfg.From)
	m.SetAddressHeader("To", req.OfficerEmail, req.OfficerName)
	m.SetHeader("Subject", req.Subject())
	m.SetBody("text/plain", plainText(req))
	m.AddAlternative("text/html", html.String())
	return m, nil
}

func plainText(req Request) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Hello %s,\n\n", req.OfficerName)
	fmt.Fprintf(&sb, "Company:  %s\n", req.CompanyName)
	if req.Industry != "" {
		fmt.Fprintf(&sb, "Industry: %s\n", req.Industry)
	}
	if req.Location != "" {
		fmt.Fprintf(&sb, "Location: %s\n", req.Location)
	}
	fmt.Fprintf(&sb, "Signal:   %s\n", req.SignalType)
	fmt.Fprintf(&sb, "Score:    %.0f (%s intent)\n\n", req.LeadScore, req.Intent)
	sb.WriteString(req.SignalText + "\n\n")

	if len(req.Recommendations) > 0 {
		sb.WriteString("RECOMMENDED PRODUCTS\n")
		sb.WriteString(req.Rationale() + "\n\n")
	}
	if len(req.MatchedKeywords) > 0 {
		fmt.Fprintf(&sb, "Keywords: %s\n\n", strings.Join(req.MatchedKeywords, ", "))
	}
	fmt.Fprintf(&sb, "Next action: %s\n", req.NextAction)
	if req.DossierURL != "" {
		fmt.Fprintf(&sb, "Dossier: %s\n", req.DossierURL)
	}
	return sb.String()
}

var templateFuncs = template.FuncMap{
	"pct": func(f float64) float64 { return f * 100 },
}

const leadEmailTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="UTF-8" /><title>{{.CompanyName}}</title></head>
<body style="font-family: -apple-system, Segoe UI, Roboto, sans-serif; color: #111827;">
  <h2>{{.CompanyName}}</h2>
  <p>Hello {{.OfficerName}}, a new <strong>{{.Intent}}</strong>-intent lead scored <strong>{{printf "%.0f" .LeadScore}}</strong>.</p>
  <table cellpadding="4">
    {{if .Industry}}<tr><td>Industry</td><td>{{.Industry}}</td></tr>{{end}}
    {{if .Location}}<tr><td>Location</td><td>{{.Location}}</td></tr>{{end}}
    <tr><td>Signal</td><td>{{.SignalType}}</td></tr>
  </table>
  <blockquote>{{.SignalText}}</blockquote>
  {{if .Recommendations}}
  <h3>Recommended products</h3>
  <ul>
    {{range .Recommendations}}<li><strong>{{.Product}}</strong> ({{printf "%.0f" (pct .Confidence)}}%): {{.Reason}}</li>{{end}}
  </ul>
  {{end}}
  <p><strong>Next action:</strong> {{.NextAction}}</p>
  {{if .DossierURL}}<p><a href="{{.DossierURL}}">Open dossier</a></p>{{end}}
</body>
</html>`
