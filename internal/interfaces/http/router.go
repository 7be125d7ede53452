// Package http wires the REST session endpoints and the websocket upgrade
// path into one gin engine.
package http

import (
	nethttp "net/http"

	"github.com/gin-gonic/gin"

	"github.com/gridbase-io/gridbase/internal/interfaces/http/handlers"
	"github.com/gridbase-io/gridbase/internal/interfaces/http/middleware"
	"github.com/gridbase-io/gridbase/internal/shared/logger"
	"github.com/gridbase-io/gridbase/internal/transport/ws"
)

// RouterDeps carries everything the router mounts.
type RouterDeps struct {
	SessionHandler *handlers.SessionHandler
	SocketServer   *ws.Server
	AllowedOrigins []string
	Mode           string
	Logger         logger.Interface
}

// SetupRouter builds the gin engine. Route surface:
//
//	POST   /api/sessions   connect (credentials -> token)
//	DELETE /api/sessions   disconnect
//	GET    /ws/grid        websocket upgrade (token via cookie or ?token=)
//	GET    /healthz        liveness
func SetupRouter(deps RouterDeps) *gin.Engine {
	if deps.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	if deps.Logger == nil {
		deps.Logger = logger.NewLogger()
	}

	r := gin.New()
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger(deps.Logger.Named("http")))
	if len(deps.AllowedOrigins) > 0 {
		r.Use(middleware.CORS(deps.AllowedOrigins))
	}

	api := r.Group("/api")
	{
		api.POST("/sessions", deps.SessionHandler.Connect)
		api.DELETE("/sessions", deps.SessionHandler.Disconnect)
	}

	r.GET("/ws/grid", deps.SocketServer.HandleWS)

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(nethttp.StatusOK, gin.H{"status": "ok"})
	})

	return r
}
