// Package analysis maps free-text classifier labels and complaint descriptions
// onto the top-level complaint categories.
package analysis

import (
	"strings"

	"trustline/backend/internal/models"
)

// FallbackLabel is used when the image classifier fails or returns nothing.
const FallbackLabel = "Other"

// Suggestion buckets returned by SuggestCategory.
const (
	SuggestCyberCrime = "CYBER_CRIME"
	SuggestCivicIssue = "CIVIC_ISSUE"
	SuggestOther      = "OTHER"
)

// CivicSet is the set of classifier labels treated as civic issues.
// Membership ignores case and surrounding whitespace.
type CivicSet struct {
	labels map[string]struct{}
}

// NewCivicSet builds a set from configured labels.
func NewCivicSet(labels []string) *CivicSet {
	s := &CivicSet{labels: make(map[string]struct{}, len(labels))}
	for _, l := range labels {
		if key := normalize(l); key != "" {
			s.labels[key] = struct{}{}
		}
	}
	return s
}

// Contains reports whether label is a civic label.
func (s *CivicSet) Contains(label string) bool {
	_, ok := s.labels[normalize(label)]
	return ok
}

// Bucket returns CIVIC_ISSUE for civic labels and CYBER_ISSUE for everything else.
func (s *CivicSet) Bucket(label string) string {
	if s.Contains(label) {
		return models.CategoryCivic
	}
	return models.CategoryCyber
}

// Len returns the number of labels.
func (s *CivicSet) Len() int {
	return len(s.labels)
}

func normalize(label string) string {
	return strings.ToLower(strings.TrimSpace(label))
}

var (
	cyberKeywords = []string{
		"hack", "phish", "scam", "fraud", "cyber", "online", "upi", "bank",
		"account", "password", "email", "social media",
	}
	civicKeywords = []string{
		"road", "pothole", "street",
		"garbage", "waste", "trash",
		"water", "drainage", "pipe",
		"electricity", "light", "power",
		"traffic", "signal",
	}
)

// SuggestCategory guesses a category from a description by keyword.
// Cyber keywords win over civic ones.
func SuggestCategory(description string) string {
	desc := strings.ToLower(strings.TrimSpace(description))
	if desc == "" {
		return SuggestOther
	}
	for _, kw := range cyberKeywords {
		if strings.Contains(desc, kw) {
			return SuggestCyberCrime
		}
	}
	for _, kw := range civicKeywords {
		if strings.Contains(desc, kw) {
			return SuggestCivicIssue
		}
	}
	return SuggestOther
}
