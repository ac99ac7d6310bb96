package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/pkg/response"
)

type SessionHandler struct {
	svc *services.SessionService
}

func NewSessionHandler(db *gorm.DB) (*SessionHandler, error) {
	svc, err := services.NewSessionService(db)
	if err != nil {
		return nil, err
	}
	return &SessionHandler{svc: svc}, nil
}

type createSessionRequest struct {
	OwnerUserID      string    `json:"owner_user_id" validate:"required"`
	AssignedSitterID *string   `json:"assigned_sitter_id,omitempty"`
	Title            string    `json:"title" validate:"required,max=200"`
	StartDate        time.Time `json:"start_date" validate:"required"`
	EndDate          time.Time `json:"end_date" validate:"required"`
}

// POST /api/v1/nests/:nestID/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	var req createSessionRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.svc.CreateSession(requestContext(c), services.CreateSessionInput{
		NestID:           c.Param("nestID"),
		OwnerUserID:      req.OwnerUserID,
		AssignedSitterID: req.AssignedSitterID,
		Title:            req.Title,
		StartDate:        req.StartDate,
		EndDate:          req.EndDate,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, session)
}

// GET /api/v1/nests/:nestID/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.svc.GetSession(requestContext(c), c.Param("nestID"), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, session)
}

// GET /api/v1/nests/:nestID/sessions?status=upcoming
func (h *SessionHandler) List(c *gin.Context) {
	sessions, err := h.svc.ListSessions(requestContext(c), c.Param("nestID"), models.SessionStatus(c.Query("status")))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, sessions)
}
