package httpserver

import (
	"github.com/aura-studio/gateway/proxy"
	"github.com/gin-gonic/gin"
)

// Engine is a local stand-in for API Gateway: it turns HTTP requests into
// proxy events and serves them through a proxy.Engine.
type Engine struct {
	*Options
	*gin.Engine
	proxy *proxy.Engine
}

func NewEngine(p *proxy.Engine, opts ...Option) *Engine {
	e := &Engine{
		Options: NewOptions(opts...),
		proxy:   p,
	}

	if !e.DebugMode {
		gin.SetMode(gin.ReleaseMode)
	}

	e.Engine = gin.New()
	e.Use(gin.LoggerWithWriter(p.Logger().Writer()), gin.Recovery())

	if e.CorsMode {
		e.Use(Cors())
	}

	e.InstallHandlers()

	return e
}
