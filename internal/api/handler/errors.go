package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"trustline/backend/internal/apperr"
	"trustline/backend/internal/logger"
)

// ErrorHandler renders the last error attached with c.Error as
// {"code","message","field_errors"}.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		err := c.Errors.Last().Err
		if appErr, ok := apperr.As(err); ok {
			if appErr.HTTPStatus >= http.StatusInternalServerError {
				logger.Error("Request failed",
					zap.String("code", appErr.Code),
					zap.String("path", c.FullPath()),
					zap.Error(appErr.Err),
				)
			} else {
				logger.Debug("Request rejected",
					zap.String("code", appErr.Code),
					zap.String("path", c.FullPath()),
				)
			}
			c.JSON(apperr.Status(appErr), appErr)
			return
		}

		logger.Error("Unhandled request error", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "INTERNAL_ERROR",
			"message": "An internal error occurred",
		})
	}
}

// fail attaches err for ErrorHandler and stops the chain.
func fail(c *gin.Context, err error) {
	_ = c.Error(err)
	c.Abort()
}

func badRequest(c *gin.Context, code, message string) {
	fail(c, apperr.Validation(code, message))
}
