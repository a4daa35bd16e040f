package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type DentistHandler struct {
	svc *service.DentistService
	log *zap.Logger
}

func NewDentistHandler(svc *service.DentistService, log *zap.Logger) *DentistHandler {
	return &DentistHandler{svc: svc, log: log}
}

func (h *DentistHandler) Register(rg *gin.RouterGroup) {
	rg.GET("/dentists", h.List)
}

func (h *DentistHandler) List(c *gin.Context) {
	users, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	out := make([]dentistView, 0, len(users))
	for _, u := range users {
		out = append(out, dentistView{ID: u.ID, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL})
	}
	c.JSON(http.StatusOK, gin.H{"dentists": out})
}
