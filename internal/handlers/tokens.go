package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
	"github.com/coltonswapp/nest-note-sub009/pkg/response"
)

type TokenHandler struct {
	svc *services.TokenService
}

func NewTokenHandler(users *store.UserGateway) (*TokenHandler, error) {
	svc, err := services.NewTokenService(users)
	if err != nil {
		return nil, err
	}
	return &TokenHandler{svc: svc}, nil
}

type tokenRequest struct {
	Token string `json:"token" validate:"required"`
}

// POST /api/v1/users/:userID/tokens
func (h *TokenHandler) Register(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.RegisterToken(requestContext(c), c.Param("userID"), req.Token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// DELETE /api/v1/users/:userID/tokens
func (h *TokenHandler) Remove(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.svc.RemoveToken(requestContext(c), c.Param("userID"), req.Token); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil)
}

// GET /api/v1/users/:userID/preferences
func (h *TokenHandler) GetPreferences(c *gin.Context) {
	prefs, err := h.svc.GetPreferences(requestContext(c), c.Param("userID"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, prefs)
}

type preferencesRequest struct {
	SessionNotifications bool `json:"session_notifications"`
	OtherNotifications   bool `json:"other_notifications"`
}

// PUT /api/v1/users/:userID/preferences
func (h *TokenHandler) UpdatePreferences(c *gin.Context) {
	var req preferencesRequest
	if !bindAndValidate(c, &req) {
		return
	}

	err := h.svc.UpdatePreferences(requestContext(c), c.Param("userID"), models.NotificationPreferences{
		SessionNotifications: req.SessionNotifications,
		OtherNotifications:   req.OtherNotifications,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, nil)
}
