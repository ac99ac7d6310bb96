package api

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"

	"github.com/coltonswapp/nest-note-sub009/internal/handlers"
	"github.com/coltonswapp/nest-note-sub009/internal/middleware"
	"github.com/coltonswapp/nest-note-sub009/internal/services"
	"github.com/coltonswapp/nest-note-sub009/internal/store"
)

// Deps carries the wired services the router exposes over HTTP.
type Deps struct {
	DB       *gorm.DB
	Users    *store.UserGateway
	Sweeps   *services.SweepService
	Archival *services.ArchivalService
}

// NewRouter builds the Gin engine, wires middleware and registers routes.
func NewRouter(deps Deps) (*gin.Engine, error) {
	if deps.DB == nil {
		return nil, fmt.Errorf("database handle must be provided")
	}
	if deps.Users == nil {
		return nil, fmt.Errorf("user gateway must be provided")
	}
	if deps.Sweeps == nil {
		return nil, fmt.Errorf("sweep service must be provided")
	}
	if deps.Archival == nil {
		return nil, fmt.Errorf("archival service must be provided")
	}

	r := gin.New()

	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())

	r.GET("/health", handlers.Health(deps.DB))
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	sessionHandler, err := handlers.NewSessionHandler(deps.DB)
	if err != nil {
		return nil, err
	}
	tokenHandler, err := handlers.NewTokenHandler(deps.Users)
	if err != nil {
		return nil, err
	}
	sweepHandler := handlers.NewSweepHandler(deps.Sweeps, deps.Archival)

	v1 := r.Group("/api/v1")

	nests := v1.Group("/nests/:nestID")
	{
		nests.POST("/sessions", sessionHandler.Create)
		nests.GET("/sessions", sessionHandler.List)
		nests.GET("/sessions/:id", sessionHandler.Get)
	}

	users := v1.Group("/users/:userID")
	{
		users.POST("/tokens", tokenHandler.Register)
		users.DELETE("/tokens", tokenHandler.Remove)
		users.GET("/preferences", tokenHandler.GetPreferences)
		users.PUT("/preferences", tokenHandler.UpdatePreferences)
	}

	sweeps := v1.Group("/sweeps")
	{
		sweeps.POST("/transitions", sweepHandler.RunTransitions)
		sweeps.POST("/archival", sweepHandler.RunArchival)
	}

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}
