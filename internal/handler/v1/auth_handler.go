package v1

import (
	"net/http"

	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/middleware"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/internal/service"
	"github.com/dmehra2102/prod-golang-projects/dentaflow/pkg/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type AuthHandler struct {
	svc      *service.AuthService
	sessions *service.SessionService
	cookie   auth.CookieOptions
	log      *zap.Logger
}

func NewAuthHandler(svc *service.AuthService, sessions *service.SessionService, cookie auth.CookieOptions, log *zap.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, sessions: sessions, cookie: cookie, log: log}
}

// Register mounts the public routes on public and the session routes on private.
func (h *AuthHandler) Register(public, private *gin.RouterGroup, loginLimiter gin.HandlerFunc) {
	public.POST("/auth/register", loginLimiter, h.RegisterAccount)
	public.POST("/auth/login_with_password", loginLimiter, h.Login)
	private.POST("/auth/logout", h.Logout)
	private.GET("/auth/session", h.Session)
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,min=8"`
	DisplayName string `json:"displayName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) RegisterAccount(c *gin.Context) {
	var req registerRequest
	if !bindJSON(c, &req) {
		return
	}

	u, issued, err := h.svc.Register(c.Request.Context(), service.RegisterCommand{
		Email:       req.Email,
		Password:    req.Password,
		DisplayName: req.DisplayName,
	})
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	auth.SetSessionCookie(c.Writer, h.cookie, issued.Token, h.sessions.TTL())
	c.JSON(http.StatusOK, gin.H{"user": newUserView(u)})
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindJSON(c, &req) {
		return
	}

	u, issued, err := h.svc.Login(c.Request.Context(), req.Email, req.Password, c.ClientIP())
	if err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	auth.SetSessionCookie(c.Writer, h.cookie, issued.Token, h.sessions.TTL())
	c.JSON(http.StatusOK, gin.H{"user": newUserView(u)})
}

func (h *AuthHandler) Logout(c *gin.Context) {
	caller, ok := mustCaller(c)
	if !ok {
		return
	}
	if err := h.svc.Logout(c.Request.Context(), caller); err != nil {
		respondServiceError(c, h.log, err)
		return
	}

	auth.ClearSessionCookie(c.Writer, h.cookie)
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

func (h *AuthHandler) Session(c *gin.Context) {
	u, ok := middleware.UserFrom(c)
	if !ok {
		respondError(c, http.StatusUnauthorized, "Not authenticated")
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": newUserView(u)})
}
