package models

import (
	"strings"
	"time"
)

// Status is the lifecycle state of a complaint.
type Status string

const (
	StatusPending    Status = "PENDING"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
	StatusRejected   Status = "REJECTED"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{StatusPending, StatusInProgress, StatusResolved, StatusRejected}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, known := range Statuses {
		if s == known {
			return true
		}
	}
	return false
}

// Closed reports whether s is a terminal-looking state (RESOLVED or REJECTED).
// Nothing prevents reopening a closed complaint.
func (s Status) Closed() bool {
	return s == StatusResolved || s == StatusRejected
}

// Priority of a complaint. Only ever raised automatically.
type Priority string

const (
	PriorityLow    Priority = "LOW"
	PriorityMedium Priority = "MEDIUM"
	PriorityHigh   Priority = "HIGH"
)

// Rank orders priorities so LOW < MEDIUM < HIGH. Unknown values rank as LOW.
func (p Priority) Rank() int {
	switch p {
	case PriorityMedium:
		return 1
	case PriorityHigh:
		return 2
	default:
		return 0
	}
}

// Top-level complaint categories.
const (
	CategoryCivic = "CIVIC_ISSUE"
	CategoryCyber = "CYBER_ISSUE"
	CategoryOther = "OTHER"
)

// Complaint is one filed civic or cyber issue.
type Complaint struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Title       string    `gorm:"not null" json:"title"`
	Description string    `gorm:"type:text;not null" json:"description"`
	Category    string    `gorm:"index" json:"category"`
	Subcategory *string   `gorm:"index" json:"subcategory,omitempty"`
	Status      Status    `gorm:"type:varchar(16);index;not null" json:"status"`
	Priority    Priority  `gorm:"type:varchar(8);not null" json:"priority"`
	FiledBy     string    `gorm:"index;not null" json:"filedBy"`
	Latitude    float64   `json:"latitude"`
	Longitude   float64   `json:"longitude"`
	ImageURL    *string   `json:"imageUrl,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
	// ResolvedAt is written on the first transition into RESOLVED and never again.
	ResolvedAt *time.Time `json:"resolvedAt,omitempty"`
	// Version guards concurrent transitions of the same row.
	Version int `gorm:"not null;default:0" json:"-"`

	Updates []ComplaintUpdate `gorm:"constraint:OnDelete:CASCADE" json:"updates,omitempty"`
}

// ComplaintUpdate is an append-only audit entry attached to a complaint.
type ComplaintUpdate struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	ComplaintID uint      `gorm:"index;not null" json:"complaintId"`
	Message     string    `gorm:"type:text;not null" json:"message"`
	Status      *Status   `gorm:"type:varchar(16)" json:"status,omitempty"`
	CreatedAt   time.Time `gorm:"index" json:"createdAt"`
}

// SubcategoryOr returns the subcategory or fallback when unset.
func (c *Complaint) SubcategoryOr(fallback string) string {
	if c.Subcategory == nil || strings.TrimSpace(*c.Subcategory) == "" {
		return fallback
	}
	return *c.Subcategory
}

// Snapshot returns the map form used by dashboard envelopes.
func (c *Complaint) Snapshot() map[string]any {
	m := map[string]any{
		"id":          c.ID,
		"title":       c.Title,
		"description": c.Description,
		"category":    c.Category,
		"status":      c.Status,
		"priority":    c.Priority,
		"filedBy":     c.FiledBy,
		"latitude":    c.Latitude,
		"longitude":   c.Longitude,
		"createdAt":   c.CreatedAt.UnixMilli(),
	}
	if c.Subcategory != nil {
		m["subcategory"] = *c.Subcategory
	}
	if c.ImageURL != nil {
		m["imageUrl"] = *c.ImageURL
	}
	return m
}
