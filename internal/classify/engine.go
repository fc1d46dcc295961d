package classify

import (
	"fmt"
	"sort"
	"strings"

	ahocorasick "github.com/cloudflare/ahocorasick"

	"github.com/sells-group/leadsignal/internal/model"
)

// Per-term weights in tenths, so accumulation stays exact.
const (
	keywordWeight   = 4
	equipmentWeight = 3
	industryWeight  = 2
	confidenceCap   = 10

	maxRecommendations = 3
)

// Engine classifies signal text against a Taxonomy. All terms are compiled
// into one Aho-Corasick automaton so a text is scanned once regardless of
// catalog size. An Engine is immutable and safe for concurrent use.
type Engine struct {
	tax     *Taxonomy
	matcher *ahocorasick.Matcher
	terms   []string       // lowercased, deduplicated dictionary
	termIdx map[string]int // term -> dictionary index

	products []compiledProduct
	high     []int
	medium   []int
	urgency  []compiledUrgency
}

type compiledProduct struct {
	id         string
	keywords   []compiledTerm
	equipment  []compiledTerm
	industries []compiledTerm
}

type compiledTerm struct {
	text string // as declared in the catalog
	idx  int
}

type compiledUrgency struct {
	idx   int
	score float64
}

// NewEngine compiles a taxonomy into a matcher.
func NewEngine(tax *Taxonomy) *Engine {
	e := &Engine{
		tax:     tax,
		termIdx: make(map[string]int),
	}

	for _, p := range tax.Products {
		e.products = append(e.products, compiledProduct{
			id:         p.ID,
			keywords:   e.compileAll(p.Keywords),
			equipment:  e.compileAll(p.Equipment),
			industries: e.compileAll(p.Industries),
		})
	}
	for _, ct := range e.compileAll(tax.Intent.High) {
		e.high = append(e.high, ct.idx)
	}
	for _, ct := range e.compileAll(tax.Intent.Medium) {
		e.medium = append(e.medium, ct.idx)
	}
	for _, u := range tax.Urgency {
		if idx, ok := e.compile(u.Phrase); ok {
			e.urgency = append(e.urgency, compiledUrgency{idx: idx, score: u.Score})
		}
	}

	if len(e.terms) > 0 {
		e.matcher = ahocorasick.NewStringMatcher(e.terms)
	}
	return e
}

// compile registers a term in the dictionary once and returns its index.
func (e *Engine) compile(term string) (int, bool) {
	norm := strings.ToLower(term)
	if strings.TrimSpace(norm) == "" {
		return 0, false
	}
	if idx, ok := e.termIdx[norm]; ok {
		return idx, true
	}
	idx := len(e.terms)
	e.terms = append(e.terms, norm)
	e.termIdx[norm] = idx
	return idx, true
}

func (e *Engine) compileAll(terms []string) []compiledTerm {
	out := make([]compiledTerm, 0, len(terms))
	for _, t := range terms {
		if idx, ok := e.compile(t); ok {
			out = append(out, compiledTerm{text: t, idx: idx})
		}
	}
	return out
}

// Taxonomy returns the catalog the engine was built from.
func (e *Engine) Taxonomy() *Taxonomy { return e.tax }

// match returns which dictionary entries occur anywhere in text.
func (e *Engine) match(text string) []bool {
	found := make([]bool, len(e.terms))
	if e.matcher == nil {
		return found
	}
	// Match keeps dedup counters on the matcher itself; only MatchThreadSafe
	// may run from several goroutines.
	for _, idx := range e.matcher.MatchThreadSafe([]byte(strings.ToLower(text))) {
		if idx >= 0 && idx < len(found) {
			found[idx] = true
		}
	}
	return found
}

type productScore struct {
	id      string
	units   int
	reasons []string
}

// Analyze scores text against every product and returns the top ranked
// recommendations with intent strength and urgency.
func (e *Engine) Analyze(text string) model.AnalysisResult {
	found := e.match(text)

	var (
		scores    []productScore
		keywords  []string
		equipment []string
		seenKW    = map[string]bool{}
		seenEq    = map[string]bool{}
	)

	for _, p := range e.products {
		ps := productScore{id: p.id}
		for _, t := range p.keywords {
			if !found[t.idx] {
				continue
			}
			ps.units += keywordWeight
			ps.reasons = append(ps.reasons, fmt.Sprintf("Mentioned '%s'", t.text))
			if !seenKW[t.text] {
				seenKW[t.text] = true
				keywords = append(keywords, t.text)
			}
		}
		for _, t := range p.equipment {
			if !found[t.idx] {
				continue
			}
			ps.units += equipmentWeight
			ps.reasons = append(ps.reasons, fmt.Sprintf("Equipment: '%s' detected", t.text))
			if !seenEq[t.text] {
				seenEq[t.text] = true
				equipment = append(equipment, t.text)
			}
		}
		for _, t := range p.industries {
			if !found[t.idx] {
				continue
			}
			ps.units += industryWeight
			ps.reasons = append(ps.reasons, fmt.Sprintf("Industry: '%s' match", t.text))
		}
		if ps.units > 0 {
			ps.units = min(ps.units, confidenceCap)
			scores = append(scores, ps)
		}
	}

	// Stable so ties keep catalog order.
	sort.SliceStable(scores, func(i, j int) bool {
		return scores[i].units > scores[j].units
	})
	if len(scores) > maxRecommendations {
		scores = scores[:maxRecommendations]
	}

	recs := make([]model.ProductMatch, 0, len(scores))
	for _, s := range scores {
		recs = append(recs, model.ProductMatch{
			Product:    s.id,
			Confidence: float64(s.units) / confidenceCap,
			Reason:     strings.Join(s.reasons, "; "),
		})
	}

	return model.AnalysisResult{
		Recommendations:  recs,
		MatchedKeywords:  nonNil(keywords),
		MatchedEquipment: nonNil(equipment),
		Intent:           e.intent(found),
		Urgency:          e.urgencyScore(found),
	}
}

// intent is decided by presence: a single high marker beats any number of
// medium markers.
func (e *Engine) intent(found []bool) model.IntentStrength {
	for _, idx := range e.high {
		if found[idx] {
			return model.IntentHigh
		}
	}
	for _, idx := range e.medium {
		if found[idx] {
			return model.IntentMedium
		}
	}
	return model.IntentLow
}

func (e *Engine) urgencyScore(found []bool) float64 {
	var best float64
	for _, u := range e.urgency {
		if found[u.idx] && u.score > best {
			best = u.score
		}
	}
	return best
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
