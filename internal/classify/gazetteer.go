package classify

import "strings"

// regions is the state-level gazetteer used for territory hints.
var regions = []string{
	"Maharashtra", "Gujarat", "Tamil Nadu", "Karnataka", "Delhi", "Uttar Pradesh",
	"West Bengal", "Rajasthan", "Madhya Pradesh", "Andhra Pradesh", "Telangana",
	"Kerala", "Punjab", "Haryana", "Bihar", "Odisha", "Assam", "Jharkhand",
}

// ExtractLocations returns the known regions mentioned in text, in gazetteer
// order. Matching is a case-insensitive substring test.
func ExtractLocations(text string) []string {
	lower := strings.ToLower(text)
	found := []string{}
	for _, r := range regions {
		if strings.Contains(lower, strings.ToLower(r)) {
			found = append(found, r)
		}
	}
	return found
}

// Regions returns a copy of the gazetteer.
func Regions() []string {
	return append([]string(nil), regions...)
}
