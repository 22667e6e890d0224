// Package member stores club members and their game session participation.
package member

import (
	"strings"
	"time"
)

// Member is a club member.
type Member struct {
	ID       int64     `db:"member_id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Nickname *string   `db:"nickname" json:"nickname,omitempty"`
	Email    string    `db:"email" json:"email"`
	JoinDate time.Time `db:"join_date" json:"joinDate"`
}

// Session is a member's participation in a game session.
type Session struct {
	MemberID    int64     `db:"member_id" json:"memberId"`
	MemberName  string    `db:"name" json:"memberName"`
	Nickname    *string   `db:"nickname" json:"nickname,omitempty"`
	GameTitle   string    `db:"title" json:"gameTitle"`
	SessionDate time.Time `db:"date" json:"sessionDate"`
}

const (
	defaultPageSize   = 10
	defaultSortColumn = "name"
)

var sortColumns = map[string]string{ //nolint:gochecknoglobals
	"name":      "name",
	"email":     "email",
	"join_date": "join_date",
}

// PageQuery selects one page of members.
// Page is 1-based. SortBy accepts name, email or join_date; anything else sorts by name.
// SortDirection is ASC unless it equals DESC, ignoring case. Filter matches name or email.
type PageQuery struct {
	Page          int
	PageSize      int
	SortBy        string
	SortDirection string
	Filter        string
}

// Normalized returns a copy of q with defaults applied and sort settings reduced to safe values.
func (q PageQuery) Normalized() PageQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize < 1 {
		q.PageSize = defaultPageSize
	}

	column, ok := sortColumns[strings.ToLower(q.SortBy)]
	if !ok {
		column = defaultSortColumn
	}
	q.SortBy = column

	if strings.EqualFold(q.SortDirection, "DESC") {
		q.SortDirection = "DESC"
	} else {
		q.SortDirection = "ASC"
	}

	q.Filter = strings.TrimSpace(q.Filter)

	return q
}

// Offset returns the number of rows before the page.
func (q PageQuery) Offset() int {
	n := q.Normalized()
	return (n.Page - 1) * n.PageSize
}
