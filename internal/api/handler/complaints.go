package handler

import (
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"trustline/backend/internal/analysis"
	"trustline/backend/internal/apperr"
	"trustline/backend/internal/complaint"
	"trustline/backend/internal/models"
	"trustline/backend/internal/storage"
)

const maxImageSize = 10 << 20

// FileComplaint accepts a multipart form: title, description, category,
// subcategory, latitude, longitude and an optional image file.
func (h *Handler) FileComplaint(c *gin.Context) {
	actor := currentActor(c)

	req := complaint.FileRequest{
		Title:       c.PostForm("title"),
		Description: c.PostForm("description"),
		Category:    optionalForm(c, "category"),
		Subcategory: optionalForm(c, "subcategory"),
		FiledBy:     actor.Email,
	}

	var fieldErrs []apperr.FieldError
	req.Latitude, fieldErrs = parseCoordinate(c, "latitude", fieldErrs)
	req.Longitude, fieldErrs = parseCoordinate(c, "longitude", fieldErrs)
	if len(fieldErrs) > 0 {
		fail(c, apperr.Validation("INVALID_COMPLAINT", "complaint is invalid", fieldErrs...))
		return
	}

	img, err := h.saveImage(c)
	if err != nil {
		fail(c, err)
		return
	}
	req.Image = img

	res, err := h.Complaints.File(c.Request.Context(), req)
	if err != nil {
		if img != nil {
			os.Remove(filepath.Join(h.opts.UploadsDir, filepath.Base(img.Ref)))
		}
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"complaint":        res.Complaint,
		"detectedCategory": res.Detected,
	})
}

// saveImage stores the "image" part under the uploads dir. A missing part is
// not an error.
func (h *Handler) saveImage(c *gin.Context) (*complaint.Image, error) {
	fh, err := c.FormFile("image")
	if err != nil {
		return nil, nil
	}
	if fh.Size > maxImageSize {
		return nil, apperr.Validation("IMAGE_TOO_LARGE", "image must be at most 10MB")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, apperr.Validation("INVALID_IMAGE", "image could not be read")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxImageSize+1))
	if err != nil {
		return nil, apperr.Validation("INVALID_IMAGE", "image could not be read")
	}

	contentType := fh.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		contentType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(contentType, "image/") {
		return nil, apperr.Validation("INVALID_IMAGE", "uploaded file is not an image")
	}

	img := &complaint.Image{Data: data, ContentType: contentType}
	if h.opts.UploadsDir == "" {
		return img, nil
	}

	if err := os.MkdirAll(h.opts.UploadsDir, 0o755); err != nil {
		return nil, apperr.Internal("failed to prepare uploads dir", err)
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
	if err := os.WriteFile(filepath.Join(h.opts.UploadsDir, name), data, 0o644); err != nil {
		return nil, apperr.Internal("failed to store image", err)
	}
	img.Ref = "/uploads/" + name
	return img, nil
}

func (h *Handler) GetComplaint(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}
	comp, err := h.Complaints.Get(c.Request.Context(), id, currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (h *Handler) ComplaintUpdates(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}
	updates, err := h.Complaints.Updates(c.Request.Context(), id, currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, updates)
}

type updateRequest struct {
	Message string  `json:"message"`
	Status  *string `json:"status"`
}

// AddUpdate appends a message, optionally with a status change.
func (h *Handler) AddUpdate(c *gin.Context) {
	id, ok := complaintID(c)
	if !ok {
		return
	}
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_BODY", "request body must be JSON")
		return
	}

	var status *models.Status
	if req.Status != nil && strings.TrimSpace(*req.Status) != "" {
		st, err := complaint.ParseStatus(*req.Status)
		if err != nil {
			fail(c, err)
			return
		}
		status = &st
	}

	comp, err := h.Complaints.AddUpdate(c.Request.Context(), id, req.Message, status, currentActor(c))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, comp)
}

func (h *Handler) MyComplaints(c *gin.Context) {
	list, err := h.Complaints.ListByFiler(c.Request.Context(), currentActor(c).Email)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// FindComplaints filters by the category, subcategory and status query params.
func (h *Handler) FindComplaints(c *gin.Context) {
	f := storage.Filter{
		Category:    strings.TrimSpace(c.Query("category")),
		Subcategory: strings.TrimSpace(c.Query("subcategory")),
	}
	if raw := strings.TrimSpace(c.Query("status")); raw != "" {
		st, err := complaint.ParseStatus(raw)
		if err != nil {
			fail(c, err)
			return
		}
		f.Status = st
	}
	list, err := h.Complaints.Find(c.Request.Context(), f)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) CivicComplaints(c *gin.Context) {
	list, err := h.Complaints.CivicComplaints(c.Request.Context(), c.Query("subcategory"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

type suggestRequest struct {
	Description string `json:"description"`
}

func (h *Handler) SuggestCategory(c *gin.Context) {
	var req suggestRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Description) == "" {
		badRequest(c, "INVALID_BODY", "description is required")
		return
	}
	c.JSON(http.StatusOK, gin.H{"category": analysis.SuggestCategory(req.Description)})
}

func complaintID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "INVALID_ID", "complaint id must be a positive integer")
		return 0, false
	}
	return uint(id), true
}

func optionalForm(c *gin.Context, key string) *string {
	v, ok := c.GetPostForm(key)
	if !ok || strings.TrimSpace(v) == "" {
		return nil
	}
	return &v
}

// parseCoordinate leaves a missing value nil so the engine reports it.
func parseCoordinate(c *gin.Context, key string, errs []apperr.FieldError) (*float64, []apperr.FieldError) {
	raw, ok := c.GetPostForm(key)
	if !ok || strings.TrimSpace(raw) == "" {
		return nil, errs
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, append(errs, apperr.FieldError{Field: key, Message: "must be a number"})
	}
	return &v, errs
}
