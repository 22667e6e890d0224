package httpserver

import (
	"context"
	"errors"
	"io/fs"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/platforma-dev/ttrpg/database"
	"github.com/platforma-dev/ttrpg/log"
)

// Migrations reads the migration ledger and plans pending work.
type Migrations interface {
	Records(ctx context.Context) ([]database.MigrationRecord, error)
	Plan(ctx context.Context, fsys fs.FS) ([]database.Result, error)
}

// Response is the envelope of every JSON response.
type Response struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func errorResponse(msg string) Response {
	return Response{Success: false, Error: msg}
}

// RegisterRoutes adds GET /health, GET /migrations and GET /migrations/plan.
// Plan compares scripts in fsys with the ledger. Unreadable scripts answer 500,
// any other failure 503.
func (s *Server) RegisterRoutes(health http.Handler, migrations Migrations, fsys fs.FS) {
	s.engine.GET("/health", gin.WrapH(health))

	group := s.engine.Group("/migrations")
	group.GET("", func(c *gin.Context) {
		records, err := migrations.Records(c.Request.Context())
		if err != nil {
			log.ErrorContext(c.Request.Context(), "failed to read migration ledger", "error", err)
			c.JSON(http.StatusServiceUnavailable, errorResponse("migration ledger unavailable"))
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: records})
	})
	group.GET("/plan", func(c *gin.Context) {
		plan, err := migrations.Plan(c.Request.Context(), fsys)
		if err != nil {
			log.ErrorContext(c.Request.Context(), "failed to plan migrations", "error", err)

			var srcErr *database.SourceReadError
			if errors.As(err, &srcErr) {
				c.JSON(http.StatusInternalServerError, errorResponse("failed to read migration scripts"))
				return
			}

			c.JSON(http.StatusServiceUnavailable, errorResponse("failed to plan migrations"))
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: plan})
	})
}
