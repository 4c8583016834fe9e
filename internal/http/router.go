// README: HTTP router registration.
package http

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"tripplanner/internal/http/handlers"
	"tripplanner/internal/http/middleware"
	"tripplanner/internal/http/templates"
	"tripplanner/internal/modules/session"
)

type RouterDeps struct {
	Sessions     *session.Service
	Log          *zap.Logger
	CookieSecure bool
}

func NewRouter(deps RouterDeps) *gin.Engine {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.SetHTMLTemplate(templates.Must())
	r.Use(
		middleware.Recovery(log),
		middleware.Client(deps.CookieSecure),
		middleware.Logging(log.Named("http")),
	)

	planner := handlers.NewPlannerHandler(deps.Sessions)
	r.GET("/", planner.Index)
	r.POST("/itinerary", planner.Submit)
	r.GET("/itinerary/frame", planner.Frame)
	r.GET("/itinerary/pdf", planner.PDF)
	r.POST("/ask", planner.Ask)
	r.POST("/reset", planner.Reset)
	r.GET("/api/session", planner.Status)

	r.GET("/health", handlers.Health)
	return r
}
