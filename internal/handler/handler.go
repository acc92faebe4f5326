// Package handler holds the helpers shared by the HTTP handlers: parameter
// parsing, request binding and the mapping of domain errors to responses.
package handler

import (
	"context"
	"errors"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/jwalitptl/ward-api/internal/engine"
	"github.com/jwalitptl/ward-api/internal/repository"
	"github.com/jwalitptl/ward-api/internal/service/ward"
	"github.com/jwalitptl/ward-api/pkg/daterange"
	apperrors "github.com/jwalitptl/ward-api/pkg/errors"
	"github.com/jwalitptl/ward-api/pkg/httputil"
)

// FieldError is one failed validation rule of a request body.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fieldMessages = map[string]string{
	"required": "field is required",
	"min":      "value is too small",
	"max":      "value is too long",
}

// Error renders err and records it on the gin context for the error logger.
func Error(c *gin.Context, err error) {
	appErr := ToAppError(err)
	_ = c.Error(appErr)
	httputil.RespondWithError(c, appErr)
}

// ToAppError maps service and engine errors to transport errors.
func ToAppError(err error) *apperrors.AppError {
	if appErr, ok := apperrors.As(err); ok {
		return appErr
	}

	var (
		rejection   *engine.RejectionError
		capacityErr *ward.CapacityError
		fieldErrs   validator.ValidationErrors
	)
	switch {
	case errors.As(err, &fieldErrs):
		return apperrors.BadRequest("validation failed", err).WithDetail("errors", toFieldErrors(fieldErrs))
	case errors.As(err, &rejection):
		return rejectionError(rejection)
	case errors.As(err, &capacityErr):
		return apperrors.Conflict(ward.ErrCapacityTooLow.Error(), err).
			WithDetail("unassignable", capacityErr.Unassignable)
	case errors.Is(err, repository.ErrRoomNotFound):
		return apperrors.NotFound("room", err)
	case errors.Is(err, repository.ErrCorpusNotFound):
		return apperrors.NotFound("corpus", err)
	case errors.Is(err, repository.ErrBookingNotFound):
		return apperrors.NotFound("booking", err)
	case errors.Is(err, repository.ErrCorpusInUse),
		errors.Is(err, repository.ErrRoomInUse),
		errors.Is(err, repository.ErrBookingCancelled),
		errors.Is(err, repository.ErrDuplicateCorpus):
		return apperrors.Conflict(rootMessage(err), err)
	case errors.Is(err, ward.ErrInvalidCapacity):
		return apperrors.BadRequest(ward.ErrInvalidCapacity.Error(), err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperrors.Unavailable("request timed out", err)
	}
	return apperrors.Internal(err)
}

func rejectionError(r *engine.RejectionError) *apperrors.AppError {
	var appErr *apperrors.AppError
	switch r.Reason {
	case engine.ReasonInvalidRange:
		appErr = apperrors.BadRequest(engine.ErrInvalidRange.Error(), r)
	case engine.ReasonPastStartDate:
		appErr = apperrors.Unprocessable(engine.ErrPastStartDate.Error(), r)
	default:
		appErr = apperrors.Conflict(engine.ErrRoomFullyBooked.Error(), r).
			WithDetail("conflicting_dates", r.Dates)
	}
	return appErr.WithDetail("reason", r.Reason)
}

// rootMessage is the message of the innermost wrapped error.
func rootMessage(err error) string {
	for {
		next := errors.Unwrap(err)
		if next == nil {
			return err.Error()
		}
		err = next
	}
}

func toFieldErrors(errs validator.ValidationErrors) []FieldError {
	out := make([]FieldError, 0, len(errs))
	for _, e := range errs {
		msg, ok := fieldMessages[e.Tag()]
		if !ok {
			msg = e.Error()
		}
		out = append(out, FieldError{Field: e.Field(), Message: msg})
	}
	return out
}

// BindJSON decodes the body into req and renders a 400 on failure.
func BindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			Error(c, err)
		} else {
			Error(c, apperrors.BadRequest("invalid request body", err))
		}
		return false
	}
	return true
}

// ParamID parses the named path parameter as a uuid and renders a 400 when
// it is malformed.
func ParamID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		Error(c, apperrors.BadRequest(fmt.Sprintf("invalid %s", name), err))
		return uuid.Nil, false
	}
	return id, true
}

// QueryDate parses an optional YYYY-MM-DD query parameter, returning def when
// it is absent.
func QueryDate(c *gin.Context, name string, def daterange.Date) (daterange.Date, bool) {
	raw := c.Query(name)
	if raw == "" {
		return def, true
	}
	d, err := daterange.Parse(raw)
	if err != nil {
		Error(c, apperrors.BadRequest(fmt.Sprintf("invalid %s, expected YYYY-MM-DD", name), err))
		return 0, false
	}
	return d, true
}
