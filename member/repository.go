package member

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
)

// ErrMemberNotFound is returned when no member has the requested id.
var ErrMemberNotFound = errors.New("member not found")

type db interface {
	NamedExecContext(ctx context.Context, query string, arg any) (sql.Result, error)
	GetContext(ctx context.Context, dest any, query string, args ...any) error
	SelectContext(ctx context.Context, dest any, query string, args ...any) error
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// Repository reads and writes members.
type Repository struct {
	db db
}

// NewRepository creates a Repository on top of db.
func NewRepository(db db) *Repository {
	return &Repository{
		db: db,
	}
}

const memberColumns = "member_id, name, nickname, email, join_date"

// Create inserts a member and returns its id.
func (r *Repository) Create(ctx context.Context, m *Member) (int64, error) {
	var id int64
	err := r.db.GetContext(ctx, &id,
		"INSERT INTO members (name, nickname, email, join_date) VALUES ($1, $2, $3, $4) RETURNING member_id",
		m.Name, m.Nickname, m.Email, m.JoinDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create member: %w", err)
	}
	return id, nil
}

// Get returns the member with the given id.
func (r *Repository) Get(ctx context.Context, id int64) (*Member, error) {
	var m Member
	err := r.db.GetContext(ctx, &m, "SELECT "+memberColumns+" FROM members WHERE member_id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get member %d: %w", id, ErrMemberNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member by id: %w", err)
	}
	return &m, nil
}

// GetAll returns every member ordered by id.
func (r *Repository) GetAll(ctx context.Context) ([]Member, error) {
	var members []Member
	err := r.db.SelectContext(ctx, &members, "SELECT "+memberColumns+" FROM members ORDER BY member_id")
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	return members, nil
}

// GetPaged returns one page of members.
func (r *Repository) GetPaged(ctx context.Context, q PageQuery) ([]Member, error) {
	query, args := pageSQL(q)

	var members []Member
	err := r.db.SelectContext(ctx, &members, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get members page: %w", err)
	}
	return members, nil
}

func pageSQL(q PageQuery) (string, []any) {
	q = q.Normalized()

	var sb strings.Builder
	sb.WriteString("SELECT " + memberColumns + " FROM members")

	var args []any
	if q.Filter != "" {
		args = append(args, "%"+q.Filter+"%")
		sb.WriteString(" WHERE (name LIKE $1 OR email LIKE $1)")
	}

	args = append(args, q.PageSize, q.Offset())
	fmt.Fprintf(&sb, " ORDER BY %s %s, member_id LIMIT $%d OFFSET $%d", q.SortBy, q.SortDirection, len(args)-1, len(args))

	return sb.String(), args
}

// Update overwrites all fields of the member with m.ID.
func (r *Repository) Update(ctx context.Context, m *Member) error {
	query := `
		UPDATE members
		SET name = :name, nickname = :nickname, email = :email, join_date = :join_date
		WHERE member_id = :member_id
	`
	res, err := r.db.NamedExecContext(ctx, query, m)
	if err != nil {
		return fmt.Errorf("failed to update member: %w", err)
	}
	return requireRow(res, m.ID)
}

// Delete removes the member with the given id.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM members WHERE member_id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return requireRow(res, id)
}

// Register creates a member and adds it to a session with the given role in one transaction.
func (r *Repository) Register(ctx context.Context, m *Member, sessionID, roleID int64) (id int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	err = tx.GetContext(ctx, &id,
		"INSERT INTO members (name, nickname, email, join_date) VALUES ($1, $2, $3, $4) RETURNING member_id",
		m.Name, m.Nickname, m.Email, m.JoinDate,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to create member: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"INSERT INTO session_participants (session_id, member_id, role_id) VALUES ($1, $2, $3)",
		sessionID, id, roleID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to add member to session: %w", err)
	}

	err = tx.Commit()
	if err != nil {
		return 0, fmt.Errorf("failed to commit registration: %w", err)
	}

	return id, nil
}

// MembersWithSessions returns every session participation, newest session first.
func (r *Repository) MembersWithSessions(ctx context.Context) ([]Session, error) {
	query := `
		SELECT m.member_id, m.name, m.nickname, g.title, s.date
		FROM members m
		JOIN session_participants sp ON sp.member_id = m.member_id
		JOIN sessions s ON s.session_id = sp.session_id
		JOIN games g ON g.game_id = s.game_id
		ORDER BY s.date DESC, m.member_id
	`
	var sessions []Session
	err := r.db.SelectContext(ctx, &sessions, query)
	if err != nil {
		return nil, fmt.Errorf("failed to get member sessions: %w", err)
	}
	return sessions, nil
}

func requireRow(res sql.Result, id int64) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("member %d: %w", id, ErrMemberNotFound)
	}
	return nil
}
