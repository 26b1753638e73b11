package models

import "time"

// Dashboard envelope types, outbound.
const (
	EnvelopeWelcome       = "WELCOME"
	EnvelopePong          = "PONG"
	EnvelopeStatusUpdate  = "STATUS_UPDATE"
	EnvelopeNewComplaint  = "NEW_COMPLAINT"
	EnvelopeNewUser       = "NEW_USER_REGISTERED"
	EnvelopeStatsUpdate   = "STATS_UPDATE"
	EnvelopeStatsResponse = "STATS_RESPONSE"
)

// Dashboard envelope types, inbound.
const (
	EnvelopePing         = "PING"
	EnvelopeRequestStats = "REQUEST_STATS"
)

// Envelope is the JSON frame exchanged with dashboard observers.
// Timestamp is epoch milliseconds.
type Envelope struct {
	Type        string         `json:"type"`
	Timestamp   int64          `json:"timestamp"`
	Message     string         `json:"message,omitempty"`
	SessionID   string         `json:"sessionId,omitempty"`
	ComplaintID uint           `json:"complaintId,omitempty"`
	OldStatus   Status         `json:"oldStatus,omitempty"`
	Status      Status         `json:"status,omitempty"`
	Complaint   map[string]any `json:"complaint,omitempty"`
	User        map[string]any `json:"user,omitempty"`
	Stats       *Stats         `json:"stats,omitempty"`
}

// NewEnvelope stamps an envelope of the given type with t.
func NewEnvelope(kind string, t time.Time) Envelope {
	return Envelope{Type: kind, Timestamp: t.UnixMilli()}
}

// Stats is a freshly computed aggregate view. Never stored.
type Stats struct {
	Total      int64 `json:"total"`
	Pending    int64 `json:"pending"`
	InProgress int64 `json:"inProgress"`
	Resolved   int64 `json:"resolved"`
	Rejected   int64 `json:"rejected"`
	Users      int64 `json:"users"`
	// ActiveToday counts users whose last login is on or after UTC midnight.
	ActiveToday int64 `json:"activeToday"`
	// AvgResolutionHours is the mean createdAt→resolvedAt span of resolved complaints.
	AvgResolutionHours float64 `json:"avgResolutionTime"`
	LastUpdated        int64   `json:"lastUpdated"`
}
