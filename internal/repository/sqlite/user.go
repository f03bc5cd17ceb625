package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/xid"
	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/pagination"
	"github.com/sakif/snippet-api/internal/repository"
)

// compile-time check that *DB implements repository.UserRepository
var _ repository.UserRepository = (*DB)(nil)

const userColumns = `id, username, password_hash, github_id, created_at`

func scanUser(row rowScanner, u *model.User) error {
	var (
		githubID sql.NullInt64
		created  string
	)
	if err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &githubID, &created); err != nil {
		return err
	}
	if githubID.Valid {
		id := githubID.Int64
		u.GitHubID = &id
	}
	t, err := parseTime(created)
	if err != nil {
		return err
	}
	u.CreatedAt = t
	return nil
}

// isUniqueViolation matches SQLite's constraint message. The driver's error
// type carries a numeric code too, but matching the text keeps this package
// free of driver-internal imports.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// CreateUser inserts a new user. A taken username comes back as
// apperror.ErrConflict so the service can turn it into a field error.
func (db *DB) CreateUser(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	user.CreatedAt = db.timestamp()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO users (id, username, password_hash, github_id, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		user.ID,
		user.Username,
		user.PasswordHash,
		user.GitHubID,
		formatTime(user.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.Conflict("user", user.Username)
		}
		return fmt.Errorf("sqlite: inserting user %q: %w", user.Username, err)
	}

	return nil
}

// Upsert inserts or refreshes a user identified by their GitHub ID.
//
// An existing row keeps its internal ID, username and created_at; only a
// first-time GitHub login inserts. Callers must set user.GitHubID.
func (db *DB) Upsert(ctx context.Context, user *model.User) error {
	if user.GitHubID == nil {
		return fmt.Errorf("sqlite: upsert requires a GitHub ID")
	}

	existing, err := db.getUserWhere(ctx, `github_id = ?`, *user.GitHubID)
	if err == nil {
		*user = *existing
		return nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return fmt.Errorf("sqlite: looking up user by github_id %d: %w", *user.GitHubID, err)
	}

	return db.CreateUser(ctx, user)
}

// GetUserByID retrieves a user by their internal ID.
// Returns apperror.ErrNotFound if no user exists with that ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*model.User, error) {
	u, err := db.getUserWhere(ctx, `id = ?`, id)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound("user", id)
	}
	return u, err
}

// GetUserByUsername is used by the password login flow.
func (db *DB) GetUserByUsername(ctx context.Context, username string) (*model.User, error) {
	u, err := db.getUserWhere(ctx, `username = ?`, username)
	if errors.Is(err, apperror.ErrNotFound) {
		return nil, apperror.NotFound("user", username)
	}
	return u, err
}

func (db *DB) getUserWhere(ctx context.Context, where string, arg any) (*model.User, error) {
	var u model.User
	row := db.conn.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+where, arg)
	if err := scanUser(row, &u); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: getting user: %w", err)
	}
	return &u, nil
}

// ListUsers returns users oldest first, the order they registered in.
func (db *DB) ListUsers(ctx context.Context, limit, offset int) ([]model.User, error) {
	if limit <= 0 {
		limit = 20
	}
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}
	if offset < 0 {
		offset = 0
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+userColumns+` FROM users
		 ORDER BY created_at ASC, rowid ASC
		 LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0, limit)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}

	return users, nil
}

// CountUsers returns the total number of users.
func (db *DB) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting users: %w", err)
	}
	return n, nil
}

// SnippetIDsByOwner returns, for each owner, the IDs of the snippets they own,
// newest first. One query serves a whole page of users instead of one query
// per user (the classic N+1 problem).
//
// Owners without snippets are present in the map with an empty, non-nil slice
// so they render as [] rather than null.
func (db *DB) SnippetIDsByOwner(ctx context.Context, ownerIDs ...string) (map[string][]string, error) {
	result := make(map[string][]string, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return result, nil
	}

	placeholders := make([]string, len(ownerIDs))
	args := make([]any, len(ownerIDs))
	for i, id := range ownerIDs {
		placeholders[i] = "?"
		args[i] = id
		result[id] = []string{}
	}

	rows, err := db.conn.QueryContext(ctx,
		`SELECT owner_id, id FROM snippets
		 WHERE owner_id IN (`+strings.Join(placeholders, ", ")+`)
		 ORDER BY created_at DESC, rowid DESC`,
		args...,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippet ids by owner: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ownerID, snippetID string
		if err := rows.Scan(&ownerID, &snippetID); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet id: %w", err)
		}
		result[ownerID] = append(result[ownerID], snippetID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippet ids: %w", err)
	}

	return result, nil
}
