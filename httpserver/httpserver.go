package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/aura-studio/gateway/proxy"
)

var srv *http.Server

// Serve listens on the configured address until Close is called.
func Serve(p *proxy.Engine, opts ...Option) error {
	e := NewEngine(p, opts...)
	srv = &http.Server{
		Addr:    e.Address,
		Handler: e,
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
