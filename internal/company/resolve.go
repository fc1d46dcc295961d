// Package company resolves free-text company names to canonical records.
package company

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/model"
)

// DefaultThreshold is the minimum Ratio at which two names are the same
// company. Inclusive.
const DefaultThreshold = 85.0

// Resolver maps signal company names onto Company records, creating a record
// when nothing existing is close enough. Existing records are never updated.
type Resolver struct {
	store     Store
	threshold float64
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithThreshold overrides the fuzzy match threshold.
func WithThreshold(t float64) Option {
	return func(r *Resolver) {
		if t > 0 {
			r.threshold = t
		}
	}
}

// NewResolver creates a resolver over store.
func NewResolver(store Store, opts ...Option) *Resolver {
	r := &Resolver{store: store, threshold: DefaultThreshold}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve finds or creates the company a signal refers to, returning the
// record and whether it was newly created. Uses a three-pass cascade:
//  1. Exact name match.
//  2. Fuzzy match of the normalized name against every company; the best
//     ratio at or above the threshold wins, lowest id on ties.
//  3. Create a new company from the signal's hints.
func (r *Resolver) Resolve(ctx context.Context, sig model.Signal) (*model.Company, bool, error) {
	name := strings.TrimSpace(sig.CompanyName)
	if name == "" {
		return nil, false, eris.Wrap(model.ErrInvalidInput, "company: name is required for resolve")
	}

	// Pass 1: exact name.
	existing, err := r.store.FindCompanyByName(ctx, name)
	if err != nil {
		return nil, false, eris.Wrap(err, "company: resolve by name")
	}
	if existing != nil {
		zap.L().Debug("resolve: matched by name",
			zap.String("name", name),
			zap.Int64("company_id", existing.ID),
		)
		return existing, false, nil
	}

	// Pass 2: fuzzy normalized name.
	normalized := Normalize(name)
	candidates, err := r.store.ListCompanies(ctx)
	if err != nil {
		return nil, false, eris.Wrap(err, "company: list candidates")
	}
	if best, ratio := r.bestMatch(normalized, candidates); best != nil {
		zap.L().Info("resolve: matched by similarity",
			zap.String("name", name),
			zap.String("matched", best.Name),
			zap.Float64("ratio", ratio),
			zap.Int64("company_id", best.ID),
		)
		return best, false, nil
	}

	// Pass 3: create.
	c := &model.Company{
		Name:           name,
		NormalizedName: normalized,
		Industry:       strings.TrimSpace(sig.Industry),
		City:           strings.TrimSpace(sig.Location),
		State:          strings.TrimSpace(sig.State),
	}
	if err := r.store.CreateCompany(ctx, c); err != nil {
		return nil, false, eris.Wrapf(err, "company: create %q", name)
	}

	zap.L().Info("resolve: created new company",
		zap.String("name", name),
		zap.Int64("company_id", c.ID),
	)
	return c, true, nil
}

func (r *Resolver) bestMatch(normalized string, candidates []model.Company) (*model.Company, float64) {
	var (
		best      *model.Company
		bestRatio float64
	)
	for i := range candidates {
		c := &candidates[i]
		ratio := Ratio(normalized, c.NormalizedName)
		if ratio < r.threshold {
			continue
		}
		if best == nil || ratio > bestRatio || (ratio == bestRatio && c.ID < best.ID) {
			best, bestRatio = c, ratio
		}
	}
	return best, bestRatio
}
