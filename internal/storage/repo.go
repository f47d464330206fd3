package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrDuplicate = errors.New("duplicate")
)

// DuplicateError reports which unique column rejected an insert.
type DuplicateError struct {
	Column string
}

func (e *DuplicateError) Error() string {
	return fmt.Sprintf("duplicate %s", e.Column)
}

func (e *DuplicateError) Unwrap() error {
	return ErrDuplicate
}

func (s *Store) CreateUser(ctx context.Context, u User) (int64, error) {
	q := s.sql.Insert("users").
		Columns("username", "email", "password", "created_at").
		Values(u.Username, u.Email, u.PasswordHash, time.Now().UTC()).
		Suffix("RETURNING id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build create user query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		if col := uniqueViolation(err); col != "" {
			return 0, &DuplicateError{Column: col}
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (User, error) {
	return s.getUser(ctx, sq.Eq{"email": email})
}

func (s *Store) GetUserByID(ctx context.Context, id int64) (User, error) {
	return s.getUser(ctx, sq.Eq{"id": id})
}

func (s *Store) getUser(ctx context.Context, where sq.Sqlizer) (User, error) {
	q := s.sql.Select("id", "username", "email", "password", "created_at").
		From("users").
		Where(where)
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return User{}, fmt.Errorf("build get user query: %w", err)
	}

	var u User
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.PasswordHash,
		&u.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return User{}, ErrNotFound
		}
		return User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int64, error) {
	sqlStr, args, err := s.sql.Select("COUNT(*)").From("users").ToSql()
	if err != nil {
		return 0, fmt.Errorf("build count users query: %w", err)
	}
	var n int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count users: %w", err)
	}
	return n, nil
}

func (s *Store) InsertChat(ctx context.Context, c Chat) (int64, error) {
	if c.Timestamp.IsZero() {
		c.Timestamp = time.Now().UTC()
	}
	var website any
	if c.EmbeddedWebsite != "" {
		website = c.EmbeddedWebsite
	}

	q := s.sql.Insert("chats").
		Columns("user_id", "query", "response", "pdf_preview", "embedded_website", "timestamp").
		Values(c.UserID, c.Query, c.Response, c.PDFPreview, website, c.Timestamp).
		Suffix("RETURNING id")

	sqlStr, args, err := q.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build insert chat query: %w", err)
	}
	var id int64
	if err := s.db.QueryRowContext(ctx, sqlStr, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("insert chat: %w", err)
	}
	return id, nil
}

// ListChats returns a user's history, newest first. limit <= 0 means all.
func (s *Store) ListChats(ctx context.Context, userID int64, limit int) ([]Chat, error) {
	q := s.sql.Select("id", "user_id", "query", "response", "pdf_preview", "embedded_website", "timestamp").
		From("chats").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("timestamp DESC", "id DESC")
	if limit > 0 {
		q = q.Limit(uint64(limit))
	}
	sqlStr, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list chats query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("list chats: %w", err)
	}
	defer rows.Close()

	out := make([]Chat, 0)
	for rows.Next() {
		var c Chat
		var website sql.NullString
		if err := rows.Scan(
			&c.ID,
			&c.UserID,
			&c.Query,
			&c.Response,
			&c.PDFPreview,
			&website,
			&c.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("scan chat row: %w", err)
		}
		c.EmbeddedWebsite = website.String
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chat rows: %w", err)
	}
	return out, nil
}

// uniqueViolation returns the offending column name, or "" if err is not a
// unique constraint failure.
func uniqueViolation(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		if pgErr.Code != "23505" {
			return ""
		}
		switch {
		case strings.Contains(pgErr.ConstraintName, "email"):
			return "email"
		case strings.Contains(pgErr.ConstraintName, "username"):
			return "username"
		}
		return pgErr.ConstraintName
	}

	// modernc.org/sqlite: "UNIQUE constraint failed: users.email"
	msg := err.Error()
	if i := strings.Index(msg, "UNIQUE constraint failed: "); i >= 0 {
		target := msg[i+len("UNIQUE constraint failed: "):]
		if j := strings.IndexAny(target, " ,)"); j >= 0 {
			target = target[:j]
		}
		if _, col, ok := strings.Cut(target, "."); ok {
			return col
		}
		return target
	}
	return ""
}
