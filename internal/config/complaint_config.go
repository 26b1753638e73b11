package config

import "time"

const (
	// Escalation
	DefaultEscalationInterval = time.Hour
	DefaultMediumAfter        = 48 * time.Hour
	DefaultHighAfter          = 120 * time.Hour

	// Lifecycle
	DefaultTransitionRetries = 3

	// OTP
	DefaultOTPTTL    = 5 * time.Minute
	DefaultOTPLength = 6

	// Dashboard
	DefaultDashboardSendBuffer = 64
	DefaultRelayChannel        = "dashboard:broadcast"

	// Queue
	DefaultStreamPrefix = "trustline:"
	DefaultStreamMaxLen = 10000
)

// DefaultCivicLabels are the classifier labels that put a complaint in the
// CIVIC_ISSUE bucket. Anything else lands in CYBER_ISSUE.
var DefaultCivicLabels = []string{
	"Garbage",
	"Street Light",
	"Pothole",
	"Water Leakage",
	"Open Drain",
	"Illegal Construction",
	"Traffic Signal",
	"Public Transport",
	"Unsafe Building",
	"Tree Cutting",
	"Mosquito Breeding",
	"Pollution",
	"Corruption",
	"Health Facility",
	"School Issue",
}
