package v1

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type ValidationErrorResponse struct {
	Error  string   `json:"error"`
	Fields []string `json:"fields"`
}

func respondError(c *gin.Context, status int, message string) {
	c.JSON(status, ErrorResponse{Error: message})
}

// respondServiceError is the one place service errors become HTTP statuses.
func respondServiceError(c *gin.Context, log *zap.Logger, err error) {
	var validErr *service.ValidationError
	if errors.As(err, &validErr) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "Validation failed",
			Fields: validErr.Fields,
		})
		return
	}

	var locked *service.AccountLockedError
	if errors.As(err, &locked) {
		c.Header("Retry-After", strconv.Itoa(int(locked.Remaining.Seconds())+1))
		respondError(c, http.StatusTooManyRequests, locked.Error())
		return
	}

	var transition *appointment.TransitionError
	if errors.As(err, &transition) {
		respondError(c, http.StatusBadRequest, transition.Error())
		return
	}

	switch {
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		respondError(c, http.StatusNotFound, "Appointment not found.")

	case errors.Is(err, patient.ErrPatientNotFound):
		respondError(c, http.StatusNotFound, "Patient profile not found.")

	case errors.Is(err, appointment.ErrAppointmentConflict):
		respondError(c, http.StatusConflict, "The selected time slot is no longer available. Please choose another time.")

	case errors.Is(err, domain.ErrEmailTaken):
		respondError(c, http.StatusConflict, "An account with this email already exists.")

	case errors.Is(err, appointment.ErrInvalidStatus),
		errors.Is(err, patient.ErrPatientIDRequired),
		errors.Is(err, patient.ErrInvalidBirthDate):
		respondError(c, http.StatusBadRequest, err.Error())

	case errors.Is(err, service.ErrForbidden):
		respondError(c, http.StatusForbidden, "You do not have permission to perform this action.")

	case errors.Is(err, service.ErrUnauthenticated):
		respondError(c, http.StatusUnauthorized, "Not authenticated")

	case errors.Is(err, service.ErrInvalidCredentials):
		respondError(c, http.StatusUnauthorized, "Invalid email or password")

	default:
		log.Error("request failed",
			zap.Error(err),
			zap.String("path", c.FullPath()),
			zap.String("request_id", middleware.GetRequestID(c)),
		)
		respondError(c, http.StatusInternalServerError, "Internal server error")
	}
}

// bindJSON decodes and validates the body, answering 400 itself on failure.
func bindJSON(c *gin.Context, obj any) bool {
	err := c.ShouldBindJSON(obj)
	if err == nil {
		return true
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "Validation failed",
			Fields: formatValidationErrors(verrs),
		})
		return false
	}
	respondError(c, http.StatusBadRequest, "Invalid request body")
	return false
}

// queryInt64 parses an optional positive integer query parameter.
func queryInt64(c *gin.Context, key string) (*int64, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "Validation failed",
			Fields: []string{key + ": must be a positive integer"},
		})
		return nil, false
	}
	return &v, true
}

func mustCaller(c *gin.Context) (domain.Caller, bool) {
	caller, ok := middleware.CallerFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
	}
	return caller, ok
}
