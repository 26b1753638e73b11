// Package events carries domain events from the lifecycle engine and the user
// service to the registered sinks.
package events

import (
	"time"

	"trustline/backend/internal/models"
)

// Kind identifies a domain event.
type Kind string

const (
	KindComplaintCreated       Kind = "ComplaintCreated"
	KindComplaintStatusChanged Kind = "ComplaintStatusChanged"
	KindStatsChanged           Kind = "StatsChanged"
	KindUserRegistered         Kind = "UserRegistered"
	KindOTPIssued              Kind = "OTPIssued"
)

// Event is a transient notification; never persisted.
type Event interface {
	Kind() Kind
	OccurredAt() time.Time
	// Mutating events are followed by a StatsChanged broadcast.
	Mutating() bool
}

// ComplaintCreated is emitted after a complaint is filed.
type ComplaintCreated struct {
	Complaint models.Complaint
	At        time.Time
}

func (e ComplaintCreated) Kind() Kind            { return KindComplaintCreated }
func (e ComplaintCreated) OccurredAt() time.Time { return e.At }
func (e ComplaintCreated) Mutating() bool        { return true }

// ComplaintStatusChanged is emitted after a committed status transition.
type ComplaintStatusChanged struct {
	ComplaintID uint
	Title       string
	FiledBy     string
	OldStatus   models.Status
	NewStatus   models.Status
	Message     string
	At          time.Time
}

func (e ComplaintStatusChanged) Kind() Kind            { return KindComplaintStatusChanged }
func (e ComplaintStatusChanged) OccurredAt() time.Time { return e.At }
func (e ComplaintStatusChanged) Mutating() bool        { return true }

// StatsChanged carries a fresh snapshot to the dashboard.
type StatsChanged struct {
	Stats models.Stats
	At    time.Time
}

func (e StatsChanged) Kind() Kind            { return KindStatsChanged }
func (e StatsChanged) OccurredAt() time.Time { return e.At }
func (e StatsChanged) Mutating() bool        { return false }

// UserRegistered is emitted after a user account is created.
type UserRegistered struct {
	User models.User
	At   time.Time
}

func (e UserRegistered) Kind() Kind            { return KindUserRegistered }
func (e UserRegistered) OccurredAt() time.Time { return e.At }
func (e UserRegistered) Mutating() bool        { return true }

// OTPIssued asks the notification sender to mail a one-time code.
type OTPIssued struct {
	Email string
	Name  string
	Code  string
	TTL   time.Duration
	At    time.Time
}

func (e OTPIssued) Kind() Kind            { return KindOTPIssued }
func (e OTPIssued) OccurredAt() time.Time { return e.At }
func (e OTPIssued) Mutating() bool        { return false }
