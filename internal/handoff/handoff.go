// Package handoff detects visitor requests to speak with a human.
package handoff

import "strings"

// DefaultKeywords is used when the owner has not customized the list.
// English plus Norwegian, matching the markets the product launched in.
var DefaultKeywords = []string{
	"human",
	"agent",
	"person",
	"real person",
	"speak to someone",
	"talk to someone",
	"menneske",
	"snakke med noen",
	"ekte person",
}

// Detector matches visitor text against a keyword list.
type Detector struct {
	keywords []string
}

// NewDetector builds a detector. An empty list falls back to the defaults.
func NewDetector(keywords []string) *Detector {
	if len(keywords) == 0 {
		keywords = DefaultKeywords
	}
	lowered := make([]string, 0, len(keywords))
	for _, k := range keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" {
			lowered = append(lowered, k)
		}
	}
	return &Detector{keywords: lowered}
}

// Match reports whether the text contains any configured keyword,
// case-insensitively. Substring matching is intentionally coarse: an
// unwanted handoff is cheap, a visitor trapped with the bot is not.
func (d *Detector) Match(text string) bool {
	lowered := strings.ToLower(text)
	for _, k := range d.keywords {
		if strings.Contains(lowered, k) {
			return true
		}
	}
	return false
}
