// Package pipeline turns signals into scored, routed and persisted leads.
package pipeline

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadsignal/internal/classify"
	"github.com/sells-group/leadsignal/internal/company"
	"github.com/sells-group/leadsignal/internal/model"
	"github.com/sells-group/leadsignal/internal/notify"
	"github.com/sells-group/leadsignal/internal/store"
	"github.com/sells-group/leadsignal/internal/territory"
)

// Options tune acceptance and routing.
type Options struct {
	MinLeadScore   float64
	FuzzyThreshold float64
	Fallback       territory.FallbackPolicy
	DefaultSize    model.SizeClass
	DossierBaseURL string

	// Now stamps sources and signal dates. Defaults to time.Now.
	Now func() time.Time
}

func (o Options) withDefaults() Options {
	if o.MinLeadScore <= 0 {
		o.MinLeadScore = DefaultMinLeadScore
	}
	if o.FuzzyThreshold <= 0 {
		o.FuzzyThreshold = company.DefaultThreshold
	}
	if o.Fallback == nil {
		o.Fallback = territory.AnyActive
	}
	if o.DefaultSize == "" {
		o.DefaultSize = model.SizeMedium
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	return o
}

// Pipeline drives signals through resolution, classification, the score
// gate, routing, persistence and notification. Process calls are serialized.
type Pipeline struct {
	mu       sync.Mutex
	store    store.Store
	engine   *classify.Engine
	notifier notify.Notifier
	opts     Options
}

// New creates a Pipeline. A nil notifier disables notifications.
func New(st store.Store, engine *classify.Engine, notifier notify.Notifier, opts Options) *Pipeline {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Pipeline{
		store:    st,
		engine:   engine,
		notifier: notifier,
		opts:     opts.withDefaults(),
	}
}

// accepted carries what the notification step needs after commit.
type accepted struct {
	lead    *model.Lead
	company *model.Company
	officer *model.Officer
}

// Process converts one signal into at most one lead. It never returns an
// error; failures are reported in the Outcome and every write made for the
// signal is rolled back.
func (p *Pipeline) Process(ctx context.Context, sig model.Signal) (out Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()

	log := zap.L().With(zap.String("company", sig.CompanyName))
	defer func() {
		if r := recover(); r != nil {
			out = fail(eris.Errorf("pipeline: panic: %v", r))
			log.Error("pipeline: signal failed", zap.Error(out.Err))
		}
	}()

	if err := sig.Validate(); err != nil {
		log.Info("pipeline: signal skipped", zap.String("reason", string(ReasonInvalidInput)), zap.Error(err))
		return skip(ReasonInvalidInput, model.ErrInvalidInput, err)
	}

	var (
		acc      accepted
		returned bool
	)
	txErr := p.store.InTx(ctx, func(repo store.Repository) (err error) {
		// A panicking stage must still roll back the transaction.
		defer func() {
			if r := recover(); r != nil {
				out = fail(eris.Errorf("pipeline: panic: %v", r))
				returned, err = true, out.Err
			}
		}()
		out = p.run(ctx, repo, sig, &acc)
		if out.rollback() {
			returned = true
			return out.Err
		}
		return nil
	})
	if txErr != nil && !returned {
		out = fail(eris.Wrap(txErr, "pipeline: commit signal"))
	}

	switch out.Status {
	case StatusFailed:
		log.Error("pipeline: signal failed", zap.Error(out.Err))
		return out
	case StatusSkipped:
		log.Info("pipeline: signal skipped",
			zap.String("reason", string(out.Reason)),
			zap.Float64("score", out.Score),
			zap.Error(out.Err),
		)
		return out
	}

	log.Info("pipeline: lead created",
		zap.Int64("lead_id", out.LeadID),
		zap.Float64("score", out.Score),
		zap.Int64("officer_id", out.OfficerID),
	)
	out.Notified = p.notify(ctx, acc, log)
	return out
}

// run executes the transactional stages against repo.
func (p *Pipeline) run(ctx context.Context, repo store.Repository, sig model.Signal, acc *accepted) Outcome {
	now := p.opts.Now().UTC()

	co, _, err := company.NewResolver(repo, company.WithThreshold(p.opts.FuzzyThreshold)).Resolve(ctx, sig)
	if err != nil {
		if errors.Is(err, model.ErrInvalidInput) {
			return skip(ReasonInvalidInput, model.ErrInvalidInput, err)
		}
		return skip(ReasonUnresolved, model.ErrResolution, err)
	}

	src, err := touchSource(ctx, repo, sig.Domain(), now)
	if err != nil {
		return fail(err)
	}

	analysis := p.engine.Analyze(sig.Text)
	if !analysis.HasRecommendations() {
		out := skip(ReasonNoProducts, nil, nil)
		out.CompanyID = co.ID
		return out
	}

	size := co.SizeClass
	if size == "" {
		size = p.opts.DefaultSize
	}
	score := classify.LeadScore(analysis, size)
	if !passesGate(score, p.opts.MinLeadScore) {
		out := skip(ReasonBelowThreshold, nil, nil)
		out.CompanyID, out.Score = co.ID, score
		return out
	}

	locations := classify.ExtractLocations(sig.Text)
	state := territoryFor(sig, co, locations)

	officer, err := territory.NewRouter(repo, p.opts.Fallback).Assign(ctx, state)
	if err != nil {
		return fail(eris.Wrap(err, "pipeline: route lead"))
	}

	lead := &model.Lead{
		CompanyID:         co.ID,
		SourceID:          src.ID,
		SignalText:        sig.Text,
		SignalURL:         strings.TrimSpace(sig.URL),
		SignalType:        sig.SignalType(),
		SignalDate:        now,
		MatchedKeywords:   analysis.MatchedKeywords,
		MatchedEquipment:  analysis.MatchedEquipment,
		DetectedLocations: locations,
		Recommendations:   analysis.Recommendations,
		LeadScore:         score,
		Intent:            analysis.Intent,
		UrgencyDays:       model.UrgencyDays(analysis.Urgency),
		Confidence:        analysis.TopConfidence(),
		TerritoryState:    state,
		Status:            model.LeadStatusNew,
		NextAction:        model.NextAction(analysis.Intent),
	}
	if officer != nil {
		id := officer.ID
		lead.AssignedOfficerID = &id
	}
	if err := repo.CreateLead(ctx, lead); err != nil {
		return fail(eris.Wrap(err, "pipeline: create lead"))
	}

	acc.lead, acc.company, acc.officer = lead, co, officer
	out := Outcome{Status: StatusCreated, LeadID: lead.ID, CompanyID: co.ID, Score: score}
	if officer != nil {
		out.OfficerID = officer.ID
	}
	return out
}

// territoryFor prefers the signal's state, then the company's, then the
// first location mentioned in the text.
func territoryFor(sig model.Signal, co *model.Company, locations []string) string {
	if s := strings.TrimSpace(sig.State); s != "" {
		return s
	}
	if co.State != "" {
		return co.State
	}
	if len(locations) > 0 {
		return locations[0]
	}
	return ""
}

// notify sends the officer a request after commit. Failures are logged and
// never undo the lead.
func (p *Pipeline) notify(ctx context.Context, acc accepted, log *zap.Logger) bool {
	if acc.officer == nil || !acc.officer.NotificationsEnabled {
		return false
	}
	req := notify.NewRequest(acc.officer, acc.company, acc.lead, p.opts.DossierBaseURL)
	if err := p.deliver(ctx, req); err != nil {
		log.Warn("pipeline: notification failed",
			zap.Int64("lead_id", acc.lead.ID),
			zap.Int64("officer_id", acc.officer.ID),
			zap.Error(eris.Wrap(model.ErrNotification, err.Error())),
		)
		return false
	}
	return true
}

// deliver calls the notifier, turning a panic into an error.
func (p *Pipeline) deliver(ctx context.Context, req notify.Request) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = eris.Errorf("notifier panic: %v", r)
		}
	}()
	return p.notifier.Notify(ctx, req)
}

// ProcessMany processes signals in order. One signal's failure never stops
// the batch.
func (p *Pipeline) ProcessMany(ctx context.Context, signals []model.Signal) BatchResult {
	res := BatchResult{RunID: uuid.NewString(), LeadIDs: []int64{}}
	log := zap.L().With(zap.String("run_id", res.RunID))
	log.Info("pipeline: batch started", zap.Int("signals", len(signals)))

	start := time.Now()
	for _, sig := range signals {
		res.add(p.Process(ctx, sig))
	}

	log.Info("pipeline: batch complete",
		zap.Int("processed", res.Processed),
		zap.Int("created", res.Created),
		zap.Int("skipped", res.Skipped),
		zap.Int("errors", res.Errors),
		zap.Duration("elapsed", time.Since(start)),
	)
	return res
}
