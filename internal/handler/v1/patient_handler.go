package v1

import (
	"net/http"
	"time"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain/patient"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type PatientHandler struct {
	svc      *service.PatientService
	sessions *service.SessionService
	cookie   auth.CookieOptions
	log      *zap.Logger
}

func NewPatientHandler(svc *service.PatientService, sessions *service.SessionService, cookie auth.CookieOptions, log *zap.Logger) *PatientHandler {
	return &PatientHandler{svc: svc, sessions: sessions, cookie: cookie, log: log}
}

func (h *PatientHandler) Register(public, private *gin.RouterGroup, limiter gin.HandlerFunc) {
	public.POST("/patients/register", limiter, h.RegisterPatient)
	private.GET("/patients", h.List)
	private.GET("/patients/profile", h.GetProfile)
	private.POST("/patients/profile", h.UpdateProfile)
}

// date accepts both YYYY-MM-DD and full RFC 3339 timestamps.
type date struct {
	time.Time
}

func (d *date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if s == "null" {
		return nil
	}
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return &time.ParseError{Layout: time.DateOnly, Value: s}
	}
	s = s[1 : len(s)-1]
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		d.Time = t
		return nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return err
	}
	d.Time = t
	return nil
}

type registerPatientRequest struct {
	Email                 string  `json:"email" binding:"required,email"`
	Password              string  `json:"password" binding:"required,min=8"`
	DisplayName           string  `json:"displayName" binding:"required"`
	Address               string  `json:"address" binding:"required"`
	Phone                 string  `json:"phone" binding:"required,max=30"`
	BirthDate             *date   `json:"birthDate" binding:"required"`
	Allergies             *string `json:"allergies"`
	MedicalHistory        *string `json:"medicalHistory"`
	EmergencyContactName  string  `json:"emergencyContactName" binding:"required"`
	EmergencyContactPhone string  `json:"emergencyContactPhone" binding:"required,max=30"`
}

type updateProfileRequest struct {
	PatientID             *int64  `json:"patientId" binding:"omitempty,gt=0"`
	DisplayName           *string `json:"displayName"`
	Address               *string `json:"address"`
	Phone                 *string `json:"phone" binding:"omitempty,max=30"`
	BirthDate             *date   `json:"birthDate"`
	Allergies             *string `json:"allergies"`
	MedicalHistory        *string `json:"medicalHistory"`
	EmergencyContactName  *string `json:"emergencyContactName"`
	EmergencyContactPhone *string `json:"emergencyContactPhone" binding:"omitempty,max=30"`
}

func (h *PatientHandler) RegisterPatient(c *gin.Context) {
	var req registerPatientRequest
	if !bindJSON(c, &req) {
		return
	}

	u, p, issued, err := h.svc.Register(c.Request.Context(), &patient.RegisterPatientCommand{
		Email:                 req.Email,
		Password:              req.Password,
		DisplayName:           req.DisplayName,
		Address:               req.Address,
		Phone:                 req.Phone,
		BirthDate:             req.BirthDate.Time,
		Allergies:             req.Allergies,
		MedicalHistory:        req.MedicalHistory,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	auth.SetSessionCookie(c.Writer, h.cookie, issued.Token, h.sessions.TTL())
	c.JSON(http.StatusOK, gin.H{"user": newUserView(u), "patient": newPatientView(p)})
}

func (h *PatientHandler) List(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	items, err := h.svc.List(c.Request.Context(), caller)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	views := make([]patientView, 0, len(items))
	for _, p := range items {
		views = append(views, newPatientView(p))
	}
	c.JSON(http.StatusOK, gin.H{"patients": views})
}

func (h *PatientHandler) GetProfile(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	patientID, ok := queryInt64(c, "patientId")
	if !ok {
		return
	}

	p, err := h.svc.GetProfile(c.Request.Context(), caller, patientID)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"patient": newPatientView(p)})
}

func (h *PatientHandler) UpdateProfile(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	var req updateProfileRequest
	if !bindJSON(c, &req) {
		return
	}

	cmd := &patient.UpdatePatientCommand{
		PatientID:             req.PatientID,
		DisplayName:           req.DisplayName,
		Address:               req.Address,
		Phone:                 req.Phone,
		Allergies:             req.Allergies,
		MedicalHistory:        req.MedicalHistory,
		EmergencyContactName:  req.EmergencyContactName,
		EmergencyContactPhone: req.EmergencyContactPhone,
	}
	if req.BirthDate != nil && !req.BirthDate.IsZero() {
		cmd.BirthDate = &req.BirthDate.Time
	}

	p, err := h.svc.UpdateProfile(c.Request.Context(), caller, cmd)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "patient": newPatientView(p)})
}
