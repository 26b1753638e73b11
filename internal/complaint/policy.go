package complaint

import (
	"strings"

	"trustline/backend/internal/apperr"
	"trustline/backend/internal/models"
)

// TransitionPolicy decides which status moves are allowed.
type TransitionPolicy interface {
	Allow(from, to models.Status) bool
}

// PermissivePolicy allows any status to move to any other. This is the default.
type PermissivePolicy struct{}

func (PermissivePolicy) Allow(from, to models.Status) bool { return true }

// StrictPolicy only allows the moves in its adjacency table. Staying in the
// same status is always allowed.
type StrictPolicy struct{}

var strictMoves = map[models.Status][]models.Status{
	models.StatusPending:    {models.StatusInProgress, models.StatusRejected, models.StatusResolved},
	models.StatusInProgress: {models.StatusResolved, models.StatusRejected, models.StatusPending},
	models.StatusResolved:   {models.StatusInProgress},
	models.StatusRejected:   {models.StatusPending},
}

func (StrictPolicy) Allow(from, to models.Status) bool {
	if from == to {
		return true
	}
	for _, allowed := range strictMoves[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// PolicyFor returns StrictPolicy when strict is set, PermissivePolicy otherwise.
func PolicyFor(strict bool) TransitionPolicy {
	if strict {
		return StrictPolicy{}
	}
	return PermissivePolicy{}
}

// ParseStatus converts a label such as "in_progress" to a Status.
func ParseStatus(label string) (models.Status, error) {
	s := models.Status(strings.ToUpper(strings.TrimSpace(label)))
	if !s.Valid() {
		return "", apperr.Validation("INVALID_STATUS", "invalid status "+label,
			apperr.FieldError{Field: "status", Message: "must be one of PENDING, IN_PROGRESS, RESOLVED, REJECTED"})
	}
	return s, nil
}
