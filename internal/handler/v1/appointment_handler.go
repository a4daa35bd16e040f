package v1

import (
	"net/http"
	"strings"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/appointment"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AppointmentHandler struct {
	svc *service.AppointmentService
	log *zap.Logger
}

func NewAppointmentHandler(svc *service.AppointmentService, log *zap.Logger) *AppointmentHandler {
	return &AppointmentHandler{svc: svc, log: log}
}

func (h *AppointmentHandler) Register(rg *gin.RouterGroup) {
	g := rg.Group("/appointments")
	g.GET("", h.List)
	g.POST("", h.Create)
	g.POST("/update", h.Update)
	g.POST("/cancel", h.Cancel)
	g.POST("/confirm", h.Confirm)
}

type createAppointmentRequest struct {
	AppointmentDate time.Time `json:"appointmentDate" binding:"required"`
	DurationMinutes int       `json:"durationMinutes" binding:"required,min=1"`
	DentistID       int64     `json:"dentistId" binding:"required,gt=0"`
	PatientID       *int64    `json:"patientId" binding:"omitempty,gt=0"`
	Reason          *string   `json:"reason" binding:"omitempty,max=2000"`
	Notes           *string   `json:"notes" binding:"omitempty,max=4000"`
}

type updateAppointmentRequest struct {
	ID              int64               `json:"id" binding:"required,gt=0"`
	AppointmentDate *time.Time          `json:"appointmentDate"`
	DurationMinutes *int                `json:"durationMinutes" binding:"omitempty,min=1"`
	Reason          *string             `json:"reason" binding:"omitempty,max=2000"`
	Notes           *string             `json:"notes" binding:"omitempty,max=4000"`
	Status          *appointment.Status `json:"status" binding:"omitempty,appointment_status"`
}

type appointmentIDRequest struct {
	ID int64 `json:"id" binding:"required,gt=0"`
}

type appointmentResponse struct {
	Appointment appointmentView `json:"appointment"`
	Message     string          `json:"message,omitempty"`
}

// List handles GET /api/v1/appointments?startDate=&endDate=&status=
func (h *AppointmentHandler) List(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}

	from, ok := queryTime(c, "startDate")
	if !ok {
		return
	}
	to, ok := queryTime(c, "endDate")
	if !ok {
		return
	}

	items, err := h.svc.List(c.Request.Context(), caller, from, to, queryStatuses(c)...)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	views := make([]appointmentView, 0, len(items))
	for _, a := range items {
		views = append(views, newAppointmentView(a))
	}
	c.JSON(http.StatusOK, gin.H{"appointments": views})
}

func (h *AppointmentHandler) Create(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req createAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Create(c.Request.Context(), caller, &appointment.CreateAppointmentCommand{
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: req.DurationMinutes,
		DentistID:       req.DentistID,
		PatientID:       req.PatientID,
		Reason:          req.Reason,
		Notes:           req.Notes,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, appointmentResponse{Appointment: newAppointmentView(a)})
}

func (h *AppointmentHandler) Update(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req updateAppointmentRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Update(c.Request.Context(), caller, &appointment.UpdateAppointmentCommand{
		ID:              req.ID,
		AppointmentDate: req.AppointmentDate,
		DurationMinutes: req.DurationMinutes,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          req.Status,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, appointmentResponse{Appointment: newAppointmentView(a)})
}

func (h *AppointmentHandler) Cancel(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req appointmentIDRequest
	if !bindJSON(c, &req) {
		return
	}

	a, changed, err := h.svc.Cancel(c.Request.Context(), caller, req.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	resp := appointmentResponse{Appointment: newAppointmentView(a)}
	if !changed {
		resp.Message = "Appointment is already cancelled."
	}
	c.JSON(http.StatusOK, resp)
}

func (h *AppointmentHandler) Confirm(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req appointmentIDRequest
	if !bindJSON(c, &req) {
		return
	}

	a, err := h.svc.Confirm(c.Request.Context(), caller, req.ID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, appointmentResponse{Appointment: newAppointmentView(a)})
}

// queryTime parses an optional RFC 3339 query parameter.
func queryTime(c *gin.Context, key string) (*time.Time, bool) {
	raw := c.Query(key)
	if raw == "" {
		return nil, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, ValidationErrorResponse{
			Error:  "Validation failed",
			Fields: []string{key + ": must be an RFC 3339 timestamp"},
		})
		return nil, false
	}
	return &t, true
}

// queryStatuses reads status filters given as repeated or comma separated values.
func queryStatuses(c *gin.Context) []appointment.Status {
	var out []appointment.Status
	for _, raw := range c.QueryArray("status") {
		for _, part := range strings.Split(raw, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, appointment.Status(part))
			}
		}
	}
	return out
}
