package main

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/salon_backend/config"
	"github.com/mmdatafocus/salon_backend/utils"
)

type apiResponse struct {
	Ok      bool   `json:"ok"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	Data    any    `json:"data,omitempty"`
}

const (
	errorCodeValidation   = "VALIDATION"
	errorCodeConflict     = "CONFLICT"
	errorCodeInsufficient = "INSUFFICIENT"
	errorCodeIntegrity    = "INTEGRITY"
	errorCodeUnavailable  = "UNAVAILABLE"
	errorCodeInternal     = "INTERNAL"
)

// statusForError maps the error taxonomy onto HTTP. Conflict and integrity share 409 and
// are told apart by the code.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, utils.ErrValidation):
		return http.StatusBadRequest, errorCodeValidation
	case errors.Is(err, utils.ErrConflict):
		return http.StatusConflict, errorCodeConflict
	case errors.Is(err, utils.ErrIntegrity):
		return http.StatusConflict, errorCodeIntegrity
	case errors.Is(err, utils.ErrInsufficientResource):
		return http.StatusUnprocessableEntity, errorCodeInsufficient
	case errors.Is(err, utils.ErrTransientStorage):
		return http.StatusServiceUnavailable, errorCodeUnavailable
	}
	return http.StatusInternalServerError, errorCodeInternal
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, apiResponse{Ok: true, Data: data})
}

func respondMessage(c *gin.Context, message string, data any) {
	c.JSON(http.StatusOK, apiResponse{Ok: true, Message: message, Data: data})
}

func respondError(c *gin.Context, err error) {
	status, code := statusForError(err)
	if status >= http.StatusInternalServerError {
		_ = c.Error(err)
		config.LogError(config.GetLogger(), "server", c.FullPath(), c.Request.Method, nil, err)
	}
	message := err.Error()
	if code == errorCodeInternal {
		message = "internal error"
	}
	c.AbortWithStatusJSON(status, apiResponse{Ok: false, Message: message, Code: code})
}

// bindJSON decodes the body into a fresh T; a malformed body is a validation error.
func bindJSON[T any](c *gin.Context) (*T, bool) {
	var input T
	if err := c.ShouldBindJSON(&input); err != nil {
		respondError(c, utils.ValidationErrorf("invalid request body: %v", err))
		return nil, false
	}
	return &input, true
}

func paramId(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		respondError(c, utils.ValidationErrorf("invalid %s %q", name, c.Param(name)))
		return 0, false
	}
	return id, true
}

func queryInt(c *gin.Context, name string, def int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return def, true
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, utils.ValidationErrorf("invalid %s %q", name, raw))
		return 0, false
	}
	return v, true
}

func queryBool(c *gin.Context, name string) bool {
	v, _ := strconv.ParseBool(strings.TrimSpace(c.Query(name)))
	return v
}

// queryDate reads a YYYY-MM-DD query value, falling back to today when absent.
func queryDate(c *gin.Context, name string) (time.Time, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return utils.TruncateToDay(time.Now()), true
	}
	d, err := utils.ParseDate(raw)
	if err != nil {
		respondError(c, err)
		return time.Time{}, false
	}
	return d, true
}

func queryRange(c *gin.Context) (time.Time, time.Time, bool) {
	from, ok := queryDate(c, "from")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	to, ok := queryDate(c, "to")
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	return from, to, true
}

type activeToggle struct {
	IsActive *bool `json:"is_active" binding:"required"`
}
