// Package model defines the data structures used throughout the application.
package model

import "time"

// User represents a registered user account.
//
// A user can sign in two ways: username + password (PasswordHash set) or
// GitHub OAuth (GitHubID set). Both end up as the same row, identified by our
// own xid so primary keys are not tied to a third party's numbering scheme.
//
// WHY GitHubID *int64?
// Password-only users have no GitHub account. A nil pointer is stored as NULL,
// which keeps the UNIQUE constraint on github_id from colliding on zero values.
type User struct {
	ID           string
	Username     string
	PasswordHash string
	GitHubID     *int64
	CreatedAt    time.Time
}
