package classify

import (
	"math"

	"github.com/sells-group/leadsignal/internal/model"
)

// Score component weights.
const (
	confidencePoints = 40.0
	urgencyPoints    = 20.0
	maxLeadScore     = 100.0
)

var intentPoints = map[model.IntentStrength]float64{
	model.IntentHigh:   30,
	model.IntentMedium: 20,
	model.IntentLow:    10,
}

var sizePoints = map[model.SizeClass]float64{
	model.SizeEnterprise: 10,
	model.SizeLarge:      8,
	model.SizeMedium:     6,
	model.SizeSmall:      4,
}

// Fallbacks for unknown buckets.
const (
	defaultIntentPoints = 10.0
	defaultSizePoints   = 6.0
)

// LeadScore combines mean product confidence, intent, urgency and company
// size into a 0-100 score rounded to two decimals.
func LeadScore(a model.AnalysisResult, size model.SizeClass) float64 {
	var confidence float64
	if n := len(a.Recommendations); n > 0 {
		var sum float64
		for _, r := range a.Recommendations {
			sum += r.Confidence
		}
		confidence = sum / float64(n) * confidencePoints
	}

	intent, ok := intentPoints[a.Intent]
	if !ok {
		intent = defaultIntentPoints
	}
	sz, ok := sizePoints[size]
	if !ok {
		sz = defaultSizePoints
	}

	total := confidence + intent + a.Urgency*urgencyPoints + sz
	return round2(math.Min(total, maxLeadScore))
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
