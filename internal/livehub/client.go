package livehub

import "trustline/backend/internal/models"

// Observer is one connected dashboard client (a WebSocket in production).
// The hub manages observers uniformly regardless of transport.
type Observer interface {
	// SessionID identifies the connection in logs and in the WELCOME envelope.
	SessionID() string
	// Send queues env without blocking. It returns false when the observer
	// is closed or its buffer is full; the hub then drops it.
	Send(env models.Envelope) bool
	// Run starts the observer's pumps.
	Run()
	// Close shuts down the connection. Safe to call more than once.
	Close()
}
