package pipeline

// DefaultMinLeadScore is the lowest composite score that becomes a lead.
const DefaultMinLeadScore = 30.0

// passesGate filters noise signals that matched a product incidentally.
// The threshold is inclusive.
func passesGate(score, minScore float64) bool {
	return score >= minScore
}
