// Package territory routes leads to the officer responsible for a state.
package territory

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/model"
)

// Store is the officer repository the router reads. Lookups that find
// nothing return (nil, nil).
type Store interface {
	// FindActiveOfficerByTerritory returns the lowest-id active officer for state.
	FindActiveOfficerByTerritory(ctx context.Context, state string) (*model.Officer, error)
	// FindAnyActiveOfficer returns the lowest-id active officer.
	FindAnyActiveOfficer(ctx context.Context) (*model.Officer, error)
}

// FallbackPolicy picks an officer when nobody covers the requested territory.
type FallbackPolicy interface {
	Name() string
	Fallback(ctx context.Context, store Store, state string) (*model.Officer, error)
}

type anyActive struct{}

func (anyActive) Name() string { return "any_active" }

func (anyActive) Fallback(ctx context.Context, store Store, _ string) (*model.Officer, error) {
	return store.FindAnyActiveOfficer(ctx)
}

type noFallback struct{}

func (noFallback) Name() string { return "none" }

func (noFallback) Fallback(context.Context, Store, string) (*model.Officer, error) {
	return nil, nil
}

var (
	// AnyActive assigns the lowest-id active officer anywhere, trading
	// territory accuracy for every lead reaching a human.
	AnyActive FallbackPolicy = anyActive{}
	// NoFallback leaves out-of-territory leads unassigned.
	NoFallback FallbackPolicy = noFallback{}
)

// ParsePolicy maps a configuration value onto a policy.
func ParsePolicy(name string) (FallbackPolicy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", AnyActive.Name():
		return AnyActive, nil
	case NoFallback.Name():
		return NoFallback, nil
	default:
		return nil, eris.Errorf("territory: unknown fallback policy %q", name)
	}
}

// Router assigns officers by territory.
type Router struct {
	store    Store
	fallback FallbackPolicy
}

// NewRouter creates a router. A nil policy means AnyActive.
func NewRouter(store Store, fallback FallbackPolicy) *Router {
	if fallback == nil {
		fallback = AnyActive
	}
	return &Router{store: store, fallback: fallback}
}

// Assign returns the active officer for state, or the fallback policy's
// choice. A nil officer with a nil error means the lead stays unassigned.
// An empty state skips straight to the fallback.
func (r *Router) Assign(ctx context.Context, state string) (*model.Officer, error) {
	state = strings.TrimSpace(state)
	if state != "" {
		o, err := r.store.FindActiveOfficerByTerritory(ctx, state)
		if err != nil {
			return nil, eris.Wrapf(err, "territory: find officer for %s", state)
		}
		if o != nil {
			return o, nil
		}
	}

	o, err := r.fallback.Fallback(ctx, r.store, state)
	if err != nil {
		return nil, eris.Wrapf(err, "territory: %s fallback", r.fallback.Name())
	}
	if o != nil {
		zap.L().Info("territory: assigned out-of-territory officer",
			zap.String("territory", state),
			zap.String("policy", r.fallback.Name()),
			zap.Int64("officer_id", o.ID),
		)
	}
	return o, nil
}
