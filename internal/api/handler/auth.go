package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	jwt "github.com/golang-jwt/jwt/v5"

	"trustline/backend/internal/complaint"
	"trustline/backend/internal/models"
	"trustline/backend/internal/users"
)

const actorKey = "actor"

// AuthMiddleware accepts "Authorization: Bearer <jwt>" and stores the caller
// as a complaint.Actor on the context.
func AuthMiddleware(secret []byte, issuer string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"code":    "UNAUTHORIZED",
				"message": "missing or malformed authorization header",
			})
			return
		}

		actor, err := actorFromToken(raw, secret, issuer)
		if err != nil {
			msg := "invalid token"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"code": "UNAUTHORIZED", "message": msg})
			return
		}

		c.Set(actorKey, actor)
		c.Next()
	}
}

// RequireAdmin must run after AuthMiddleware.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !currentActor(c).Privileged() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"code":    "ADMIN_REQUIRED",
				"message": "administrator role required",
			})
			return
		}
		c.Next()
	}
}

func currentActor(c *gin.Context) complaint.Actor {
	if v, ok := c.Get(actorKey); ok {
		if actor, ok := v.(complaint.Actor); ok {
			return actor
		}
	}
	return complaint.Actor{}
}

func actorFromToken(raw string, secret []byte, issuer string) (complaint.Actor, error) {
	claims, err := users.ParseToken(raw, secret, issuer)
	if err != nil {
		return complaint.Actor{}, err
	}
	role := claims.Role
	if role == "" {
		role = models.RoleUser
	}
	return complaint.Actor{Email: claims.Email, Role: role}, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return strings.TrimSpace(parts[1]), true
}

type registerRequest struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Register creates a user account.
func (h *Handler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "INVALID_BODY", "request body must be JSON")
		return
	}
	u, err := h.Users.Register(c.Request.Context(), req.Email, req.Name)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, u)
}

type otpRequest struct {
	Email string `json:"email"`
}

// RequestOTP issues a code; it is delivered through the message queue.
func (h *Handler) RequestOTP(c *gin.Context) {
	var req otpRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Email) == "" {
		badRequest(c, "INVALID_BODY", "email is required")
		return
	}
	if err := h.Users.IssueOTP(c.Request.Context(), req.Email); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"message": "OTP sent"})
}

type verifyRequest struct {
	Email string `json:"email"`
	OTP   string `json:"otp"`
}

// VerifyOTP exchanges a code for a token.
func (h *Handler) VerifyOTP(c *gin.Context) {
	var req verifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Email == "" || req.OTP == "" {
		badRequest(c, "INVALID_BODY", "email and otp are required")
		return
	}
	token, err := h.Users.VerifyOTP(c.Request.Context(), req.Email, req.OTP)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"token": token})
}
