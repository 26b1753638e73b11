// Package complaint provides the complaint lifecycle: filing, status
// transitions with an append-only update log, and age-based priority escalation.
package complaint

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"trustline/backend/internal/analysis"
	"trustline/backend/internal/apperr"
	"trustline/backend/internal/config"
	"trustline/backend/internal/events"
	"trustline/backend/internal/logger"
	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

// Store is the part of the store adapter the engine uses.
type Store interface {
	CreateComplaint(ctx context.Context, c *models.Complaint) error
	GetComplaint(ctx context.Context, id uint) (*models.Complaint, error)
	ApplyUpdate(ctx context.Context, c *models.Complaint, u *models.ComplaintUpdate) error
	ComplaintUpdates(ctx context.Context, id uint) ([]models.ComplaintUpdate, error)
	FindComplaints(ctx context.Context, f storage.Filter) ([]models.Complaint, error)
}

// Publisher receives domain events after the write they describe committed.
type Publisher interface {
	Publish(ev events.Event)
}

// Actor is the authenticated caller.
type Actor struct {
	Email string
	Role  string
}

// Privileged reports whether the actor may act on other people's complaints.
func (a Actor) Privileged() bool { return a.Role == models.RoleAdmin }

// System is the actor used by operator tooling.
var System = Actor{Email: "system", Role: models.RoleAdmin}

// Image is an uploaded photo attached to a new complaint.
type Image struct {
	Ref         string // stored location, kept on the complaint
	Data        []byte // raw bytes, sent to the classifier
	ContentType string
}

// FileRequest holds the fields of a new complaint.
type FileRequest struct {
	Title       string
	Description string
	Category    *string
	Subcategory *string
	FiledBy     string
	Latitude    *float64
	Longitude   *float64
	Image       *Image
}

// FileResult is the created complaint plus the label shown to the filer.
type FileResult struct {
	Complaint *models.Complaint
	Detected  string
}

// Options configures the engine. Zero values fall back to defaults.
type Options struct {
	Policy     TransitionPolicy
	MaxRetries int
	CivicSet   *analysis.CivicSet
	Classifier analysis.Classifier
	Clock      func() time.Time
}

// Service handles the business logic for complaints.
type Service struct {
	store      Store
	publisher  Publisher
	policy     TransitionPolicy
	maxRetries int
	civic      *analysis.CivicSet
	classifier analysis.Classifier
	clock      func() time.Time
}

// NewService creates a new complaint service.
func NewService(store Store, publisher Publisher, opts Options) *Service {
	s := &Service{
		store:      store,
		publisher:  publisher,
		policy:     opts.Policy,
		maxRetries: opts.MaxRetries,
		civic:      opts.CivicSet,
		classifier: opts.Classifier,
		clock:      opts.Clock,
	}
	if s.policy == nil {
		s.policy = PermissivePolicy{}
	}
	if s.maxRetries <= 0 {
		s.maxRetries = config.DefaultTransitionRetries
	}
	if s.civic == nil {
		s.civic = analysis.NewCivicSet(config.DefaultCivicLabels)
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	return s
}

// now is truncated to microseconds, the coarsest precision of the supported stores.
func (s *Service) now() time.Time {
	return s.clock().UTC().Truncate(time.Microsecond)
}

// File validates and stores a new complaint in PENDING/LOW, then emits
// ComplaintCreated.
func (s *Service) File(ctx context.Context, req FileRequest) (*FileResult, error) {
	if err := validateFile(req); err != nil {
		return nil, err
	}

	category, subcategory, detected := s.categorize(ctx, req)

	now := s.now()
	c := &models.Complaint{
		Title:       strings.TrimSpace(req.Title),
		Description: strings.TrimSpace(req.Description),
		Category:    category,
		Subcategory: subcategory,
		Status:      models.StatusPending,
		Priority:    models.PriorityLow,
		FiledBy:     req.FiledBy,
		Latitude:    *req.Latitude,
		Longitude:   *req.Longitude,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if req.Image != nil && req.Image.Ref != "" {
		ref := req.Image.Ref
		c.ImageURL = &ref
	}

	if err := s.store.CreateComplaint(ctx, c); err != nil {
		return nil, internal("save complaint", err)
	}

	logger.Info("Complaint filed",
		zap.Uint("complaint_id", c.ID),
		zap.String("category", c.Category),
		zap.String("filed_by", c.FiledBy),
	)
	s.publisher.Publish(events.ComplaintCreated{Complaint: *c, At: now})

	return &FileResult{Complaint: c, Detected: detected}, nil
}

// categorize applies the two-bucket mapping. Without an image the supplied
// category (or OTHER) is kept as is. With an image, a missing category is
// filled from the classifier and the label becomes the subcategory.
func (s *Service) categorize(ctx context.Context, req FileRequest) (category string, subcategory *string, detected string) {
	detected = models.CategoryOther
	if req.Category != nil && strings.TrimSpace(*req.Category) != "" {
		detected = strings.TrimSpace(*req.Category)
	}
	subcategory = trimmedOrNil(req.Subcategory)

	if req.Image == nil {
		return detected, subcategory, detected
	}

	if req.Category == nil || strings.TrimSpace(*req.Category) == "" {
		detected = s.classify(ctx, req.Image)
	}
	label := detected
	return s.civic.Bucket(detected), &label, detected
}

func (s *Service) classify(ctx context.Context, img *Image) string {
	if s.classifier == nil || len(img.Data) == 0 {
		return analysis.FallbackLabel
	}
	label, err := s.classifier.Classify(ctx, img.Data, img.ContentType)
	if err != nil || strings.TrimSpace(label) == "" {
		logger.Warn("Image classification failed, using fallback label",
			zap.String("fallback", analysis.FallbackLabel),
			zap.Error(err),
		)
		return analysis.FallbackLabel
	}
	return strings.TrimSpace(label)
}

func validateFile(req FileRequest) error {
	var fields []apperr.FieldError
	if strings.TrimSpace(req.Title) == "" {
		fields = append(fields, apperr.FieldError{Field: "title", Message: "required"})
	}
	if strings.TrimSpace(req.Description) == "" {
		fields = append(fields, apperr.FieldError{Field: "description", Message: "required"})
	}
	if req.Latitude == nil {
		fields = append(fields, apperr.FieldError{Field: "latitude", Message: "required"})
	} else if *req.Latitude < -90 || *req.Latitude > 90 {
		fields = append(fields, apperr.FieldError{Field: "latitude", Message: "must be between -90 and 90"})
	}
	if req.Longitude == nil {
		fields = append(fields, apperr.FieldError{Field: "longitude", Message: "required"})
	} else if *req.Longitude < -180 || *req.Longitude > 180 {
		fields = append(fields, apperr.FieldError{Field: "longitude", Message: "must be between -180 and 180"})
	}
	if strings.TrimSpace(req.FiledBy) == "" {
		fields = append(fields, apperr.FieldError{Field: "filedBy", Message: "required"})
	}
	if len(fields) > 0 {
		return apperr.Validation("INVALID_COMPLAINT", "complaint is missing required fields", fields...)
	}
	return nil
}

// Transition moves a complaint to status, appending one update entry. An
// empty message becomes "Status changed to <STATUS>". resolvedAt is set on the
// first move into RESOLVED and kept afterwards.
func (s *Service) Transition(ctx context.Context, id uint, status models.Status, message string, actor Actor) (*models.Complaint, error) {
	if !status.Valid() {
		return nil, apperr.Validation("INVALID_STATUS", fmt.Sprintf("invalid status %q", status))
	}
	if strings.TrimSpace(message) == "" {
		message = fmt.Sprintf("Status changed to %s", status)
	}
	return s.apply(ctx, id, strings.TrimSpace(message), &status, actor)
}

// AddUpdate appends a message to the complaint's log. With a status it is a
// Transition; without one only updatedAt changes and no status event is emitted.
func (s *Service) AddUpdate(ctx context.Context, id uint, message string, status *models.Status, actor Actor) (*models.Complaint, error) {
	if strings.TrimSpace(message) == "" {
		return nil, apperr.Validation("MESSAGE_REQUIRED", "message is required",
			apperr.FieldError{Field: "message", Message: "required"})
	}
	if status != nil {
		return s.Transition(ctx, id, *status, message, actor)
	}
	return s.apply(ctx, id, strings.TrimSpace(message), nil, actor)
}

// apply is the read-check-write loop. A version collision re-reads and
// retries up to maxRetries times before giving up with Conflict.
func (s *Service) apply(ctx context.Context, id uint, message string, status *models.Status, actor Actor) (*models.Complaint, error) {
	for attempt := 0; attempt <= s.maxRetries; attempt++ {
		c, err := s.store.GetComplaint(ctx, id)
		if err != nil {
			return nil, passthrough("load complaint", err)
		}
		if err := authorize(c, actor); err != nil {
			return nil, err
		}

		oldStatus := c.Status
		if status != nil && !s.policy.Allow(oldStatus, *status) {
			return nil, apperr.Validation("TRANSITION_NOT_ALLOWED",
				fmt.Sprintf("cannot move complaint %d from %s to %s", id, oldStatus, *status))
		}

		now := s.now()
		update := &models.ComplaintUpdate{Message: message, CreatedAt: now}
		c.UpdatedAt = now
		if status != nil {
			snapshot := *status
			update.Status = &snapshot
			c.Status = *status
			if *status == models.StatusResolved && c.ResolvedAt == nil {
				resolvedAt := now
				c.ResolvedAt = &resolvedAt
			}
		}

		err = s.store.ApplyUpdate(ctx, c, update)
		if errors.Is(err, storage.ErrVersionConflict) {
			logger.Debug("Concurrent update on complaint, retrying",
				zap.Uint("complaint_id", id),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if err != nil {
			return nil, internal("save complaint update", err)
		}

		c.Updates = append(c.Updates, *update)

		if status != nil {
			logger.Info("Complaint status changed",
				zap.Uint("complaint_id", id),
				zap.String("old_status", string(oldStatus)),
				zap.String("status", string(c.Status)),
				zap.String("actor", actor.Email),
			)
			s.publisher.Publish(events.ComplaintStatusChanged{
				ComplaintID: c.ID,
				Title:       c.Title,
				FiledBy:     c.FiledBy,
				OldStatus:   oldStatus,
				NewStatus:   c.Status,
				Message:     message,
				At:          now,
			})
		}
		return c, nil
	}

	return nil, apperr.Conflict("CONCURRENT_UPDATE",
		fmt.Sprintf("complaint %d is being updated concurrently, try again", id))
}

// Get returns a complaint with its update log.
func (s *Service) Get(ctx context.Context, id uint, actor Actor) (*models.Complaint, error) {
	c, err := s.store.GetComplaint(ctx, id)
	if err != nil {
		return nil, passthrough("load complaint", err)
	}
	if err := authorize(c, actor); err != nil {
		return nil, err
	}
	return c, nil
}

// Updates returns the update log, oldest first.
func (s *Service) Updates(ctx context.Context, id uint, actor Actor) ([]models.ComplaintUpdate, error) {
	c, err := s.Get(ctx, id, actor)
	if err != nil {
		return nil, err
	}
	return c.Updates, nil
}

// ListByFiler returns the complaints filed by email, newest first.
func (s *Service) ListByFiler(ctx context.Context, email string) ([]models.Complaint, error) {
	list, err := s.store.FindComplaints(ctx, storage.Filter{FiledBy: email})
	if err != nil {
		return nil, internal("list complaints", err)
	}
	return list, nil
}

// Find lists complaints matching every non-empty filter field.
func (s *Service) Find(ctx context.Context, f storage.Filter) ([]models.Complaint, error) {
	if f.Status != "" && !f.Status.Valid() {
		return nil, apperr.Validation("INVALID_STATUS", fmt.Sprintf("invalid status %q", f.Status))
	}
	list, err := s.store.FindComplaints(ctx, f)
	if err != nil {
		return nil, internal("find complaints", err)
	}
	return list, nil
}

// CivicComplaints lists CIVIC_ISSUE complaints, optionally narrowed to one subcategory.
func (s *Service) CivicComplaints(ctx context.Context, subcategory string) ([]models.Complaint, error) {
	return s.Find(ctx, storage.Filter{Category: models.CategoryCivic, Subcategory: strings.TrimSpace(subcategory)})
}

func authorize(c *models.Complaint, actor Actor) error {
	if actor.Privileged() || (actor.Email != "" && strings.EqualFold(actor.Email, c.FiledBy)) {
		return nil
	}
	return apperr.Forbidden("ACCESS_DENIED", fmt.Sprintf("not allowed to act on complaint %d", c.ID))
}

// passthrough keeps AppErrors from the store and wraps anything else as Internal.
func passthrough(op string, err error) error {
	if _, ok := apperr.As(err); ok {
		return err
	}
	return internal(op, err)
}

func internal(op string, err error) error {
	logger.Error("Complaint store failure", zap.String("op", op), zap.Error(err))
	return apperr.Internal(op, err)
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
