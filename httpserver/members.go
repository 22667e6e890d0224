package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/platforma-dev/ttrpg/log"
	"github.com/platforma-dev/ttrpg/member"
)

// Members reads club members.
type Members interface {
	Get(ctx context.Context, id int64) (*member.Member, error)
	GetPaged(ctx context.Context, q member.PageQuery) ([]member.Member, error)
	MembersWithSessions(ctx context.Context) ([]member.Session, error)
}

// RegisterMemberRoutes adds GET /members, GET /members/:id and GET /members/sessions.
// /members accepts page, pageSize, sortBy, sortDirection and filter query parameters.
func (s *Server) RegisterMemberRoutes(members Members) {
	group := s.engine.Group("/members")

	group.GET("", func(c *gin.Context) {
		q := member.PageQuery{
			Page:          queryInt(c, "page"),
			PageSize:      queryInt(c, "pageSize"),
			SortBy:        c.Query("sortBy"),
			SortDirection: c.Query("sortDirection"),
			Filter:        c.Query("filter"),
		}

		page, err := members.GetPaged(c.Request.Context(), q)
		if err != nil {
			internalError(c, "failed to list members", err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: page})
	})

	group.GET("/sessions", func(c *gin.Context) {
		sessions, err := members.MembersWithSessions(c.Request.Context())
		if err != nil {
			internalError(c, "failed to list sessions", err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: sessions})
	})

	group.GET("/:id", func(c *gin.Context) {
		id, err := strconv.ParseInt(c.Param("id"), 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("member id must be a number"))
			return
		}

		m, err := members.Get(c.Request.Context(), id)
		if errors.Is(err, member.ErrMemberNotFound) {
			c.JSON(http.StatusNotFound, errorResponse("member not found"))
			return
		}
		if err != nil {
			internalError(c, "failed to get member", err)
			return
		}
		c.JSON(http.StatusOK, Response{Success: true, Data: m})
	})
}

// queryInt returns 0 for a missing or malformed parameter so that defaults apply.
func queryInt(c *gin.Context, key string) int {
	n, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return 0
	}
	return n
}

func internalError(c *gin.Context, msg string, err error) {
	log.ErrorContext(c.Request.Context(), msg, "error", err)
	c.JSON(http.StatusInternalServerError, errorResponse(msg))
}
