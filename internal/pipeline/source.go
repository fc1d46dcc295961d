package pipeline

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadsignal/internal/model"
	"github.com/sells-group/leadsignal/internal/store"
)

// touchSource finds or creates the source for domain and stamps its
// last-seen time.
func touchSource(ctx context.Context, repo store.Repository, domain string, now time.Time) (*model.Source, error) {
	src, err := repo.FindSourceByDomain(ctx, domain)
	if err != nil {
		return nil, eris.Wrapf(err, "pipeline: find source %s", domain)
	}
	if src == nil {
		src = &model.Source{
			Domain:     domain,
			URL:        "https://" + domain,
			Category:   model.SourceCategoryUnknown,
			TrustScore: model.DefaultTrustScore,
			Active:     true,
		}
		if err := repo.CreateSource(ctx, src); err != nil {
			return nil, eris.Wrapf(err, "pipeline: create source %s", domain)
		}
	}
	if err := repo.TouchSource(ctx, src.ID, now); err != nil {
		return nil, eris.Wrapf(err, "pipeline: touch source %s", domain)
	}
	src.LastSeenAt = &now
	return src, nil
}
