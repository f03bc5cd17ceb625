package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/xid"
	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/pagination"
	"github.com/sakif/snippet-api/internal/repository"
)

// COMPILE-TIME INTERFACE CHECK:
// If *DB stops implementing repository.SnippetRepository, this line fails to
// compile instead of failing later at the call site in server.go.
var _ repository.SnippetRepository = (*DB)(nil)

// snippetColumns is shared by every SELECT so Scan order never drifts.
// The JOIN pulls the owner's username in the same round trip.
const snippetColumns = `
	s.id, s.title, s.code, s.linenos, s.language, s.style,
	s.owner_id, u.username, s.created_at`

const snippetFrom = `
	FROM snippets s
	JOIN users u ON u.id = s.owner_id`

// orderClauses whitelists the ORDER BY fragments. Never interpolate a
// client-supplied string into SQL; map it through a table like this instead.
//
// rowid is the tie-breaker: two snippets created within the same nanosecond
// still come back in insertion order.
var orderClauses = map[repository.Ordering]string{
	repository.OrderCreatedDesc: "s.created_at DESC, s.rowid DESC",
	repository.OrderCreatedAsc:  "s.created_at ASC, s.rowid ASC",
	repository.OrderTitleAsc:    "s.title ASC, s.created_at DESC, s.rowid DESC",
	repository.OrderTitleDesc:   "s.title DESC, s.created_at DESC, s.rowid DESC",
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnippet(row rowScanner, s *model.Snippet) error {
	var created string
	if err := row.Scan(
		&s.ID, &s.Title, &s.Code, &s.Linenos, &s.Language, &s.Style,
		&s.OwnerID, &s.OwnerUsername, &created,
	); err != nil {
		return err
	}
	t, err := parseTime(created)
	if err != nil {
		return err
	}
	s.CreatedAt = t
	return nil
}

// Create inserts a new snippet into the database.
//
// The repository owns the server-generated fields: ID (xid, 20 URL-safe chars,
// sortable by creation time) and CreatedAt. Whatever the caller put in those
// fields is overwritten. OwnerID must reference an existing user; the foreign
// key rejects anything else.
func (db *DB) Create(ctx context.Context, snippet *model.Snippet) error {
	snippet.ID = xid.New().String()
	snippet.CreatedAt = db.timestamp()

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO snippets (id, title, code, linenos, language, style, owner_id, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		snippet.ID,
		snippet.Title,
		snippet.Code,
		snippet.Linenos,
		snippet.Language,
		snippet.Style,
		snippet.OwnerID,
		formatTime(snippet.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating snippet: %w", err)
	}

	return nil
}

// GetByID retrieves a single snippet by its ID.
// sql.ErrNoRows is translated into the domain's NotFound error so the handler
// can answer 404 without knowing anything about SQL.
func (db *DB) GetByID(ctx context.Context, id string) (*model.Snippet, error) {
	var snippet model.Snippet

	row := db.conn.QueryRowContext(ctx,
		`SELECT `+snippetColumns+snippetFrom+` WHERE s.id = ?`, id)
	if err := scanSnippet(row, &snippet); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("snippet", id)
		}
		return nil, fmt.Errorf("sqlite: getting snippet %s: %w", id, err)
	}

	return &snippet, nil
}

// List retrieves one window of snippets.
//
// LIMIT/OFFSET pagination:
// page 3 with 10 items per page → LIMIT 10 OFFSET 20. The pagination layer
// does that arithmetic; here we only clamp obviously bad values.
func (db *DB) List(ctx context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > pagination.MaxPageSize {
		limit = pagination.MaxPageSize
	}

	offset := opts.Offset
	if offset < 0 {
		offset = 0
	}

	ordering := opts.Ordering
	if ordering == "" {
		ordering = repository.OrderCreatedDesc
	}
	orderBy, ok := orderClauses[ordering]
	if !ok {
		return nil, fmt.Errorf("sqlite: unsupported ordering %q", ordering)
	}

	query := `SELECT ` + snippetColumns + snippetFrom
	args := make([]any, 0, 3)
	if opts.OwnerID != "" {
		query += ` WHERE s.owner_id = ?`
		args = append(args, opts.OwnerID)
	}
	query += ` ORDER BY ` + orderBy + ` LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing snippets: %w", err)
	}
	// CRITICAL: always close rows — an unclosed *sql.Rows pins a pool connection.
	defer rows.Close()

	snippets := make([]model.Snippet, 0, limit)
	for rows.Next() {
		var s model.Snippet
		if err := scanSnippet(rows, &s); err != nil {
			return nil, fmt.Errorf("sqlite: scanning snippet row: %w", err)
		}
		snippets = append(snippets, s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating snippets: %w", err)
	}

	return snippets, nil
}

// Count returns the number of snippets, optionally restricted to one owner.
func (db *DB) Count(ctx context.Context, ownerID string) (int, error) {
	query := `SELECT COUNT(*) FROM snippets`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}

	var n int
	if err := db.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: counting snippets: %w", err)
	}
	return n, nil
}

// Update writes the mutable columns of an existing snippet.
//
// id, owner_id and created_at are deliberately absent from the SET list:
// they are fixed at insert time. RowsAffected()==0 means the WHERE clause
// matched nothing, i.e. the snippet does not exist.
func (db *DB) Update(ctx context.Context, snippet *model.Snippet) error {
	result, err := db.conn.ExecContext(ctx,
		`UPDATE snippets
		 SET title = ?, code = ?, linenos = ?, language = ?, style = ?
		 WHERE id = ?`,
		snippet.Title,
		snippet.Code,
		snippet.Linenos,
		snippet.Language,
		snippet.Style,
		snippet.ID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: updating snippet %s: %w", snippet.ID, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", snippet.ID)
	}

	return nil
}

// Delete removes a snippet permanently. Deleting an id twice reports
// NotFound the second time.
func (db *DB) Delete(ctx context.Context, id string) error {
	result, err := db.conn.ExecContext(ctx,
		`DELETE FROM snippets WHERE id = ?`,
		id,
	)
	if err != nil {
		return fmt.Errorf("sqlite: deleting snippet %s: %w", id, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperror.NotFound("snippet", id)
	}

	return nil
}
