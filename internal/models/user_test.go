package models_test

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"trustline/backend/internal/models"
)

// TestUserBeforeCreate_GeneratesUUID verifies that the BeforeCreate hook generates a valid UUID.
func TestUserBeforeCreate_GeneratesUUID(t *testing.T) {
	user := &models.User{Email: "a@example.com", Role: models.RoleUser}

	assert.Empty(t, user.ID)

	err := user.BeforeCreate(nil) // nil *gorm.DB is fine, the hook does not touch it

	assert.NoError(t, err)
	parsed, parseErr := uuid.Parse(user.ID)
	assert.NoError(t, parseErr, "User ID must be a valid UUID string")
	assert.NotEqual(t, uuid.Nil, parsed)
}

// TestUserBeforeCreate_PreservesExistingID verifies that the hook doesn't overwrite an existing ID.
func TestUserBeforeCreate_PreservesExistingID(t *testing.T) {
	existingID := uuid.New().String()
	user := &models.User{ID: existingID, Email: "b@example.com"}

	err := user.BeforeCreate(nil)

	assert.NoError(t, err)
	assert.Equal(t, existingID, user.ID)
}

func TestUserPrivileged(t *testing.T) {
	assert.True(t, (&models.User{Role: models.RoleAdmin}).Privileged())
	assert.False(t, (&models.User{Role: models.RoleUser}).Privileged())
	assert.False(t, (&models.User{}).Privileged())
}

// TestUserStructTags catches accidental tag removal during refactoring.
func TestUserStructTags(t *testing.T) {
	userType := reflect.TypeOf(models.User{})

	idField, found := userType.FieldByName("ID")
	require.True(t, found)
	assert.Contains(t, idField.Tag.Get("gorm"), "primaryKey")

	emailField, found := userType.FieldByName("Email")
	require.True(t, found)
	assert.Contains(t, emailField.Tag.Get("gorm"), "uniqueIndex")
}

func TestStatusValid(t *testing.T) {
	for _, s := range models.Statuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, models.Status("CLOSED").Valid())
	assert.False(t, models.Status("pending").Valid())
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, models.PriorityLow.Rank(), models.PriorityMedium.Rank())
	assert.Less(t, models.PriorityMedium.Rank(), models.PriorityHigh.Rank())
	assert.Equal(t, 0, models.Priority("").Rank())
}

func TestEnvelopeJSON_OmitsUnsetPayload(t *testing.T) {
	now := time.UnixMilli(1_700_000_000_000)
	env := models.NewEnvelope(models.EnvelopeStatusUpdate, now)
	env.ComplaintID = 7
	env.OldStatus = models.StatusPending
	env.Status = models.StatusResolved

	raw, err := json.Marshal(env)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, "STATUS_UPDATE", decoded["type"])
	assert.Equal(t, float64(1_700_000_000_000), decoded["timestamp"])
	assert.Equal(t, float64(7), decoded["complaintId"])
	assert.Equal(t, "PENDING", decoded["oldStatus"])
	assert.Equal(t, "RESOLVED", decoded["status"])
	assert.NotContains(t, decoded, "stats")
	assert.NotContains(t, decoded, "complaint")
	assert.NotContains(t, decoded, "sessionId")
}

func TestComplaintSnapshot(t *testing.T) {
	sub := "Garbage"
	c := &models.Complaint{
		ID:          3,
		Title:       "Overflowing bin",
		Category:    models.CategoryCivic,
		Subcategory: &sub,
		Status:      models.StatusPending,
		Priority:    models.PriorityLow,
	}

	snap := c.Snapshot()
	assert.Equal(t, uint(3), snap["id"])
	assert.Equal(t, "Garbage", snap["subcategory"])
	assert.NotContains(t, snap, "imageUrl")
	assert.Equal(t, "Garbage", c.SubcategoryOr("OTHER"))
	assert.Equal(t, "OTHER", (&models.Complaint{}).SubcategoryOr("OTHER"))
}
