// Package classify scores free text against a static product catalog and
// derives intent strength, urgency and a composite lead score.
package classify

import (
	_ "embed"
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

//go:embed taxonomy.yaml
var defaultTaxonomy []byte

// Product is one catalog entry and the terms that point at it.
type Product struct {
	ID         string   `yaml:"id"`
	Keywords   []string `yaml:"keywords"`
	Equipment  []string `yaml:"equipment"`
	Industries []string `yaml:"industries"`
}

// IntentLexicon holds the markers for the high and medium intent buckets.
type IntentLexicon struct {
	High   []string `yaml:"high"`
	Medium []string `yaml:"medium"`
}

// UrgencyTerm maps a phrase to a severity in [0,1].
type UrgencyTerm struct {
	Phrase string  `yaml:"phrase"`
	Score  float64 `yaml:"score"`
}

// Taxonomy is the read-only catalog the Engine is built from. It is loaded
// once and never mutated afterwards.
type Taxonomy struct {
	Products []Product     `yaml:"products"`
	Intent   IntentLexicon `yaml:"intent"`
	Urgency  []UrgencyTerm `yaml:"urgency"`
}

// DefaultTaxonomy parses the catalog compiled into the binary.
func DefaultTaxonomy() (*Taxonomy, error) {
	return ParseTaxonomy(defaultTaxonomy)
}

// LoadTaxonomy reads a catalog file. An empty path yields the built-in catalog.
func LoadTaxonomy(path string) (*Taxonomy, error) {
	if path == "" {
		return DefaultTaxonomy()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "classify: read taxonomy %s", path)
	}
	return ParseTaxonomy(data)
}

// ParseTaxonomy decodes and validates a YAML catalog. The document has a
// top-level "taxonomy" key.
func ParseTaxonomy(data []byte) (*Taxonomy, error) {
	var wrapper struct {
		Taxonomy Taxonomy `yaml:"taxonomy"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "classify: parse taxonomy")
	}
	t := &wrapper.Taxonomy
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate rejects catalogs the engine cannot score deterministically.
func (t *Taxonomy) Validate() error {
	if len(t.Products) == 0 {
		return eris.New("classify: taxonomy has no products")
	}
	seen := make(map[string]bool, len(t.Products))
	for i, p := range t.Products {
		id := strings.TrimSpace(p.ID)
		if id == "" {
			return eris.Errorf("classify: product %d has no id", i)
		}
		if seen[id] {
			return eris.Errorf("classify: duplicate product id %q", id)
		}
		seen[id] = true
	}
	for _, u := range t.Urgency {
		if u.Score < 0 || u.Score > 1 {
			return eris.Errorf("classify: urgency %q score %v outside [0,1]", u.Phrase, u.Score)
		}
	}
	return nil
}

// ProductIDs lists product identifiers in declaration order.
func (t *Taxonomy) ProductIDs() []string {
	ids := make([]string, len(t.Products))
	for i, p := range t.Products {
		ids[i] = p.ID
	}
	return ids
}
