package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/database/testutil"
	"github.com/coltonswapp/nest-note-sub009/internal/models"
	"github.com/coltonswapp/nest-note-sub009/internal/push"
	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
)

func newTestRouter(t *testing.T) (*gin.Engine, *gorm.DB) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.MustOpenTestDB(t)
	users, err := store.NewUserGateway(db)
	require.NoError(t, err)
	sessions, err := store.NewSessionGateway(db)
	require.NoError(t, err)

	dispatcher, err := services.NewDispatchService(users, push.NewLoggingSender())
	require.NoError(t, err)
	sweeps, err := services.NewSweepService(sessions, dispatcher)
	require.NoError(t, err)
	archival, err := services.NewArchivalService(sessions)
	require.NoError(t, err)

	router, err := NewRouter(Deps{DB: db, Users: users, Sweeps: sweeps, Archival: archival})
	require.NoError(t, err)
	return router, db
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHealthEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetricsEndpoint(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestUnknownRouteReturnsJSON404(t *testing.T) {
	router, _ := newTestRouter(t)

	rec := doJSON(t, router, http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Contains(t, rec.Body.String(), "NOT_FOUND")
}

func TestSessionEndpoints(t *testing.T) {
	router, _ := newTestRouter(t)

	start := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	rec := doJSON(t, router, http.MethodPost, "/api/v1/nests/nest-1/sessions", gin.H{
		"owner_user_id": "owner-1",
		"title":         "Weekend stay",
		"start_date":    start,
		"end_date":      start.Add(2 * time.Hour),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created struct {
		Data models.Session `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.Data.ID)
	require.Equal(t, models.StatusUpcoming, created.Data.Status)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/nests/nest-1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/nests/nest-1/sessions/%s", created.Data.ID), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, fmt.Sprintf("/api/v1/nests/other/sessions/%s", created.Data.ID), nil)
	require.Equal(t, http.StatusNotFound, rec.Code)

	// Validation failures surface as 400s.
	rec = doJSON(t, router, http.MethodPost, "/api/v1/nests/nest-1/sessions", gin.H{
		"owner_user_id": "owner-1",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenAndPreferenceEndpoints(t *testing.T) {
	router, db := newTestRouter(t)
	require.NoError(t, db.Create(&models.User{ID: "user-1", Email: "user-1@example.com"}).Error)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/users/user-1/tokens", gin.H{"token": "tok-a"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/users/ghost/tokens", gin.H{"token": "tok-a"})
	require.Equal(t, http.StatusNotFound, rec.Code)

	rec = doJSON(t, router, http.MethodPut, "/api/v1/users/user-1/preferences", gin.H{
		"session_notifications": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/v1/users/user-1/preferences", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"session_notifications":true`)

	rec = doJSON(t, router, http.MethodDelete, "/api/v1/users/user-1/tokens", gin.H{"token": "tok-a"})
	require.Equal(t, http.StatusOK, rec.Code)

	var count int64
	require.NoError(t, db.Model(&models.PushToken{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestManualSweepEndpoints(t *testing.T) {
	router, db := newTestRouter(t)

	now := time.Now().UTC()
	session := models.Session{
		ID:               "due",
		NestID:           "nest-1",
		OwnerUserID:      "owner-1",
		Title:            "Due session",
		Status:           models.StatusUpcoming,
		StartDate:        now.Add(5 * time.Minute),
		EndDate:          now.Add(time.Hour),
		LastStatusUpdate: now.Add(-time.Hour),
	}
	require.NoError(t, db.Create(&session).Error)

	rec := doJSON(t, router, http.MethodPost, "/api/v1/sweeps/transitions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"started":1`)

	rec = doJSON(t, router, http.MethodPost, "/api/v1/sweeps/archival", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"archived":0`)
}
