package model

// IntentStrength buckets how close a signal is to a purchase decision.
type IntentStrength string

const (
	IntentHigh   IntentStrength = "high"   // procurement, tender, bid language
	IntentMedium IntentStrength = "medium" // expansion, commissioning
	IntentLow    IntentStrength = "low"
)

// ProductMatch is one ranked product recommendation.
type ProductMatch struct {
	Product    string  `json:"product"`
	Confidence float64 `json:"confidence"`
	Reason     string  `json:"reason"`
}

// AnalysisResult is the classifier output for a single signal text.
type AnalysisResult struct {
	Recommendations  []ProductMatch `json:"recommended_products"`
	MatchedKeywords  []string       `json:"detected_keywords"`
	MatchedEquipment []string       `json:"detected_equipment"`
	Intent           IntentStrength `json:"intent_strength"`
	Urgency          float64        `json:"urgency_score"`
}

// HasRecommendations reports whether any product cleared zero.
func (a AnalysisResult) HasRecommendations() bool {
	return len(a.Recommendations) > 0
}

// TopConfidence returns the confidence of the highest ranked product, or 0.
func (a AnalysisResult) TopConfidence() float64 {
	if len(a.Recommendations) == 0 {
		return 0
	}
	return a.Recommendations[0].Confidence
}

// ProductIDs returns the recommended product identifiers in rank order.
func (a AnalysisResult) ProductIDs() []string {
	ids := make([]string, 0, len(a.Recommendations))
	for _, r := range a.Recommendations {
		ids = append(ids, r.Product)
	}
	return ids
}
