package notify

import (
	"context"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

// RateLimited throttles deliveries to a downstream Notifier.
type RateLimited struct {
	next    Notifier
	limiter *rate.Limiter
}

// NewRateLimited wraps next with a token bucket of perMinute requests and
// the given burst. A non-positive rate returns next unchanged.
func NewRateLimited(next Notifier, perMinute float64, burst int) Notifier {
	if perMinute <= 0 {
		return next
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perMinute/60), burst),
	}
}

func (r *RateLimited) Notify(ctx context.Context, req Request) error {
	if err := r.limiter.Wait(ctx); err != nil {
		return eris.Wrap(err, "notify: rate limit wait")
	}
	return r.next.Notify(ctx, req)
}
