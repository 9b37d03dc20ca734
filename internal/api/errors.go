package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pageza/foodgram/backend/internal/logging"
	"github.com/pageza/foodgram/backend/internal/service"
	"github.com/pageza/foodgram/backend/internal/validation"
)

// respondError writes the JSON error envelope for err.
//
//	validation   400 {"<field>": ["<message>"]}
//	conflict     400 {"errors": "<message>"}
//	not found    404 {"detail": "<message>"}
//	forbidden    403 {"detail": "<message>"}
func respondError(c *gin.Context, err error) {
	var fieldErrs validation.FieldErrors
	if errors.As(err, &fieldErrs) {
		c.JSON(http.StatusBadRequest, fieldErrs)
		return
	}

	var se *service.Error
	message := err.Error()
	if errors.As(err, &se) {
		message = se.Message
	}

	switch {
	case errors.Is(err, service.ErrValidation):
		field := "non_field_errors"
		if se != nil && se.Field != "" {
			field = se.Field
		}
		c.JSON(http.StatusBadRequest, validation.FieldErrors{field: {message}})
	case errors.Is(err, service.ErrConflict):
		c.JSON(http.StatusBadRequest, gin.H{"errors": message})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"detail": message})
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"detail": message})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusBadRequest, validation.FieldErrors{"non_field_errors": {"Unable to log in with provided credentials."}})
	case errors.Is(err, service.ErrInvalidToken):
		c.JSON(http.StatusUnauthorized, gin.H{"detail": "Invalid token."})
	default:
		logging.Ctx(c.Request.Context()).Error().Err(err).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"detail": "internal server error"})
	}
}

// respondRemoveError is respondError for toggle removals, where a missing
// entry is a client error rather than a missing resource.
func respondRemoveError(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNotFound) || errors.Is(err, service.ErrConflict) {
		var se *service.Error
		message := err.Error()
		if errors.As(err, &se) {
			message = se.Message
		}
		c.JSON(http.StatusBadRequest, gin.H{"errors": message})
		return
	}
	respondError(c, err)
}

// bindJSON decodes and validates the request body. It writes the error
// response itself and reports whether the handler may continue.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, validation.FieldErrors{"non_field_errors": {"Malformed JSON body."}})
		return false
	}
	if err := validation.ValidateStruct(dst); err != nil {
		respondError(c, err)
		return false
	}
	return true
}
