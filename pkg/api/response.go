package api

import (
	"errors"
	"net/http"

	"rebooto/pkg/errs"

	"github.com/gin-gonic/gin"
)

// respondError sends a structured JSON error response
func respondError(c *gin.Context, code int, message string) {
	c.JSON(code, gin.H{
		"error": gin.H{
			"message": message,
			"status":  code,
		},
	})
	c.Abort()
}

// respondServiceError maps the error taxonomy onto HTTP status codes.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrNotFound):
		respondError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, errs.ErrConflict):
		respondError(c, http.StatusConflict, err.Error())
	case errors.Is(err, errs.ErrValidation):
		respondError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(c, http.StatusInternalServerError, err.Error())
	}
}
