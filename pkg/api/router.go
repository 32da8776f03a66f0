// Package api exposes the operator console over HTTP. Every action endpoint
// drives the session the same way the terminal commands do and answers with
// the fresh session snapshot.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/y60yu1ii/canalyst"
	"github.com/y60yu1ii/canalyst/pkg/api/handlers"
)

// Router holds the Gin engine and dependencies
type Router struct {
	engine  *gin.Engine
	session *canalyst.Session
	driver  handlers.Driver
}

// NewRouter creates a new API router
func NewRouter(session *canalyst.Session, driver handlers.Driver) *Router {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	SetupMiddleware(engine)

	router := &Router{
		engine:  engine,
		session: session,
		driver:  driver,
	}

	router.setupRoutes()

	return router
}

// setupRoutes configures all API routes
func (r *Router) setupRoutes() {
	// Health check at root
	healthHandler := handlers.NewHealthHandler(r.driver)
	r.engine.GET("/health", healthHandler.Health)

	// API v1 routes
	v1 := r.engine.Group("/api/v1")
	{
		// Health
		v1.GET("/health", healthHandler.Health)

		// Session lifecycle and actions
		sessionHandler := handlers.NewSessionHandler(r.session)
		session := v1.Group("/session")
		{
			session.GET("", sessionHandler.State)
			session.POST("/open", sessionHandler.Open)
			session.POST("/close", sessionHandler.Close)
			session.POST("/identity", sessionHandler.Identity)
			session.POST("/reconfigure", sessionHandler.Reconfigure)
			session.POST("/timing", sessionHandler.ApplyTiming)
			session.POST("/receive/start", sessionHandler.StartReceiving)
			session.POST("/receive/stop", sessionHandler.StopReceiving)
			session.POST("/transmit", sessionHandler.Transmit)
		}

		// Baud rate catalog
		profilesHandler := handlers.NewProfilesHandler(r.session)
		profiles := v1.Group("/profiles")
		{
			profiles.GET("", profilesHandler.List)
			profiles.POST("/select", profilesHandler.Select)
		}
	}
}

// Run starts the HTTP server
func (r *Router) Run(addr string) error {
	return r.engine.Run(addr)
}

// Handler exposes the engine for embedding in an http.Server.
func (r *Router) Handler() http.Handler {
	return r.engine
}
