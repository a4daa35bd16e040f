package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/domain"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DashboardHandler struct {
	svc *service.DashboardService
	log *zap.Logger
}

func NewDashboardHandler(svc *service.DashboardService, log *zap.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, log: log}
}

func (h *DashboardHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/dashboard/stats", h.Stats)
}

func (h *DashboardHandler) Stats(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	stats, err := h.svc.Stats(c.Request.Context(), caller)
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	body := gin.H{"role": stats.Role}
	switch stats.Role {
	case domain.RoleDentist:
		body["appointmentsToday"] = stats.AppointmentsToday
		body["totalPatients"] = stats.TotalPatients
		body["upcomingAppointments"] = stats.UpcomingAppointments
	case domain.RolePatient:
		body["nextAppointmentDate"] = stats.NextAppointmentDate
		body["treatmentsCount"] = stats.TreatmentsCount
	}
	c.JSON(http.StatusOK, body)
}
