// Package httpserver exposes application health and the migration ledger over HTTP.
package httpserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/platforma-dev/ttrpg/log"
)

// Server is a gin based HTTP server that shuts down gracefully when its context ends.
type Server struct {
	engine          *gin.Engine
	addr            string
	shutdownTimeout time.Duration
}

// New creates a Server listening on addr with trace ID, request logging and panic recovery middleware.
func New(addr string, shutdownTimeout time.Duration) *Server {
	engine := gin.New()
	engine.Use(log.TraceID(""), requestLogger(), recoverer())

	return &Server{engine: engine, addr: addr, shutdownTimeout: shutdownTimeout}
}

// Handler returns the http.Handler serving all registered routes.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Group returns a route group under prefix.
func (s *Server) Group(prefix string) *gin.RouterGroup {
	return s.engine.Group(prefix)
}

// Run serves HTTP until ctx is cancelled, then waits up to the shutdown timeout for requests in flight.
func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.InfoContext(ctx, "http server listening", "addr", s.addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
	defer cancel()

	err := server.Shutdown(shutdownCtx)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to shutdown http server: %w", err)
	}

	log.InfoContext(ctx, "http server stopped")
	return nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		ctx := c.Request.Context()
		status := c.Writer.Status()
		attrs := []any{
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", status,
			"latency", time.Since(start),
			"clientIP", c.ClientIP(),
		}

		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorContext(ctx, "server error processing request", attrs...)
		case status >= http.StatusBadRequest:
			log.WarnContext(ctx, "client error processing request", attrs...)
		default:
			log.DebugContext(ctx, "request completed", attrs...)
		}
	}
}

func recoverer() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.ErrorContext(c.Request.Context(), "handler panicked", "panic", r)
				c.AbortWithStatusJSON(http.StatusInternalServerError, errorResponse("internal error"))
			}
		}()
		c.Next()
	}
}
