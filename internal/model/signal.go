package model

import (
	"net/url"
	"strings"

	"github.com/rotisserie/eris"
)

// Signal is a raw text observation about a company's possible procurement
// need, as handed over by the acquisition layer.
type Signal struct {
	CompanyName  string `json:"company_name" csv:"company_name"`
	Text         string `json:"text" csv:"text"`
	URL          string `json:"url,omitempty" csv:"url,omitempty"`
	Type         string `json:"type,omitempty" csv:"type,omitempty"`
	SourceDomain string `json:"source_domain,omitempty" csv:"source_domain,omitempty"`
	Industry     string `json:"industry,omitempty" csv:"industry,omitempty"`
	Location     string `json:"location,omitempty" csv:"location,omitempty"`
	State        string `json:"state,omitempty" csv:"state,omitempty"`
}

// SignalTypeUnknown is recorded on leads whose signal carried no type.
const SignalTypeUnknown = "unknown"

// Validate checks the fields the pipeline cannot work without.
func (s Signal) Validate() error {
	if strings.TrimSpace(s.CompanyName) == "" {
		return eris.Wrap(ErrInvalidInput, "signal: company_name is empty")
	}
	if strings.TrimSpace(s.Text) == "" {
		return eris.Wrap(ErrInvalidInput, "signal: text is empty")
	}
	return nil
}

// Domain returns the source domain of the signal. Falls back to the host of
// the signal URL, then to "unknown".
func (s Signal) Domain() string {
	if d := normalizeHost(s.SourceDomain); d != "" {
		return d
	}
	if s.URL != "" {
		if u, err := url.Parse(strings.TrimSpace(s.URL)); err == nil {
			if d := normalizeHost(u.Hostname()); d != "" {
				return d
			}
		}
	}
	return SourceCategoryUnknown
}

// SignalType returns the signal type or "unknown".
func (s Signal) SignalType() string {
	if t := strings.TrimSpace(s.Type); t != "" {
		return t
	}
	return SignalTypeUnknown
}

func normalizeHost(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.TrimPrefix(h, "www.")
	return strings.TrimSuffix(h, "/")
}
