package server

import (
	"github.com/labstack/echo/v4"

	"github.com/fivepointers/pagerelay/internal/application/config"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/handlers"
	"github.com/fivepointers/pagerelay/internal/infra/ports/http/middleware"
)

func New(
	cfg *config.Config,
	statusHandler *handlers.StatusHandler,
	wsHandler *handlers.WebSocketHandler,
	versionHandler *handlers.VersionHandler,
	commentHandler *handlers.CommentHandler,
) *echo.Echo {
	e := echo.New()

	e.HideBanner = true

	e.Use(middleware.SlogLogger())
	e.Use(middleware.PrometheusMiddleware())

	e.GET("/", statusHandler.Status)

	// The websocket path carries the room key; client identity comes from
	// query params, the way the editor connects.
	e.GET("/ws/:room", wsHandler.Handle)

	api := e.Group("/api")
	{
		v1 := api.Group("/v1")
		v1.Use(middleware.JWTAuthMiddleware(cfg.JWTSecret))
		{
			versions := v1.Group("/rooms/:room/versions")
			{
				versions.GET("", versionHandler.List)
				versions.POST("", versionHandler.Create)
				versions.POST("/:id/restore", versionHandler.Restore)
				versions.PATCH("/:id", versionHandler.Rename)
				versions.DELETE("/:id", versionHandler.Delete)
			}

			comments := v1.Group("/rooms/:room/comments")
			{
				comments.GET("", commentHandler.List)
				comments.POST("", commentHandler.Create)
				comments.POST("/:id/replies", commentHandler.Reply)
				comments.POST("/:id/resolve", commentHandler.ToggleResolve)
				comments.DELETE("/:id", commentHandler.Delete)
			}
		}
	}

	return e
}
