package sqlite

import (
	"context"
	"errors"
	"testing"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
)

// =========================================================================
// CREATE TESTS
// =========================================================================

func TestCreateUser(t *testing.T) {
	db := newTestDB(t)

	user := &model.User{Username: "alice", PasswordHash: "hash"}
	if err := db.CreateUser(context.Background(), user); err != nil {
		t.Fatalf("CreateUser() error = %v", err)
	}

	if user.ID == "" {
		t.Error("CreateUser() did not set user.ID")
	}
	if user.CreatedAt.IsZero() {
		t.Error("CreateUser() did not set user.CreatedAt")
	}
}

func TestCreateUser_DuplicateUsername(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "alice")

	err := db.CreateUser(context.Background(), &model.User{Username: "alice"})
	if !errors.Is(err, apperror.ErrConflict) {
		t.Errorf("CreateUser() error = %v, want ErrConflict", err)
	}
}

// =========================================================================
// UPSERT TESTS
// =========================================================================

func TestUpsert_InsertsThenReuses(t *testing.T) {
	db := newTestDB(t)
	ghID := int64(12345)

	first := &model.User{Username: "octocat", GitHubID: &ghID}
	if err := db.Upsert(context.Background(), first); err != nil {
		t.Fatalf("Upsert() insert error = %v", err)
	}
	if first.ID == "" {
		t.Fatal("Upsert() did not set ID on insert")
	}

	second := &model.User{Username: "renamed-on-github", GitHubID: &ghID}
	if err := db.Upsert(context.Background(), second); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	if second.ID != first.ID {
		t.Errorf("Upsert() ID = %q, want existing %q", second.ID, first.ID)
	}
	if second.Username != "octocat" {
		t.Errorf("Upsert() Username = %q, want the stored %q", second.Username, "octocat")
	}

	n, err := db.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers() error = %v", err)
	}
	if n != 1 {
		t.Errorf("CountUsers() = %d, want 1", n)
	}
}

func TestUpsert_RequiresGitHubID(t *testing.T) {
	db := newTestDB(t)

	if err := db.Upsert(context.Background(), &model.User{Username: "x"}); err == nil {
		t.Error("Upsert() without GitHubID should fail")
	}
}

// =========================================================================
// GET TESTS
// =========================================================================

func TestGetUserByID(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	found, err := db.GetUserByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetUserByID() error = %v", err)
	}
	if found.Username != "alice" {
		t.Errorf("Username = %q, want alice", found.Username)
	}
	if found.GitHubID != nil {
		t.Errorf("GitHubID = %v, want nil", *found.GitHubID)
	}
}

func TestGetUserByID_NotFound(t *testing.T) {
	db := newTestDB(t)

	_, err := db.GetUserByID(context.Background(), "nope")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByID() error = %v, want ErrNotFound", err)
	}
}

func TestGetUserByUsername(t *testing.T) {
	db := newTestDB(t)
	created := createTestUser(t, db, "alice")

	found, err := db.GetUserByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("GetUserByUsername() error = %v", err)
	}
	if found.ID != created.ID {
		t.Errorf("ID = %q, want %q", found.ID, created.ID)
	}
	if found.PasswordHash != "hash" {
		t.Errorf("PasswordHash = %q, want hash", found.PasswordHash)
	}

	_, err = db.GetUserByUsername(context.Background(), "bob")
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("GetUserByUsername(bob) error = %v, want ErrNotFound", err)
	}
}

// =========================================================================
// LIST TESTS
// =========================================================================

func TestListUsers(t *testing.T) {
	db := newTestDB(t)
	createTestUser(t, db, "carol")
	createTestUser(t, db, "alice")
	createTestUser(t, db, "bob")

	users, err := db.ListUsers(context.Background(), 2, 0)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(users) != 2 {
		t.Fatalf("len = %d, want 2", len(users))
	}
	// Registration order.
	if users[0].Username != "carol" || users[1].Username != "alice" {
		t.Errorf("order = %s, %s; want carol, alice", users[0].Username, users[1].Username)
	}

	rest, err := db.ListUsers(context.Background(), 2, 2)
	if err != nil {
		t.Fatalf("ListUsers() error = %v", err)
	}
	if len(rest) != 1 || rest[0].Username != "bob" {
		t.Errorf("second page = %+v, want [bob]", rest)
	}
}

// =========================================================================
// SNIPPET IDS BY OWNER
// =========================================================================

func TestSnippetIDsByOwner(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	bob := createTestUser(t, db, "bob")
	carol := createTestUser(t, db, "carol")

	a1 := createTestSnippet(t, db, alice, "a1", "1")
	b1 := createTestSnippet(t, db, bob, "b1", "1")
	a2 := createTestSnippet(t, db, alice, "a2", "2")

	ids, err := db.SnippetIDsByOwner(context.Background(), alice.ID, bob.ID, carol.ID)
	if err != nil {
		t.Fatalf("SnippetIDsByOwner() error = %v", err)
	}

	if got := ids[alice.ID]; len(got) != 2 || got[0] != a2.ID || got[1] != a1.ID {
		t.Errorf("alice = %v, want [%s %s]", got, a2.ID, a1.ID)
	}
	if got := ids[bob.ID]; len(got) != 1 || got[0] != b1.ID {
		t.Errorf("bob = %v, want [%s]", got, b1.ID)
	}
	if got, ok := ids[carol.ID]; !ok || got == nil || len(got) != 0 {
		t.Errorf("carol = %#v, want empty non-nil slice", got)
	}
}

func TestSnippetIDsByOwner_NoOwners(t *testing.T) {
	db := newTestDB(t)

	ids, err := db.SnippetIDsByOwner(context.Background())
	if err != nil {
		t.Fatalf("SnippetIDsByOwner() error = %v", err)
	}
	if len(ids) != 0 {
		t.Errorf("len = %d, want 0", len(ids))
	}
}

func TestDeleteUserCascadesSnippets(t *testing.T) {
	db := newTestDB(t)
	alice := createTestUser(t, db, "alice")
	s := createTestSnippet(t, db, alice, "a", "1")

	if _, err := db.conn.Exec(`DELETE FROM users WHERE id = ?`, alice.ID); err != nil {
		t.Fatalf("deleting user: %v", err)
	}

	_, err := db.GetByID(context.Background(), s.ID)
	if !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("snippet survived owner deletion: err = %v", err)
	}
}
