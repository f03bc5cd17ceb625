package repository

import (
	"context"

	"github.com/sakif/snippet-api/internal/model"
)

// Ordering is a column plus direction accepted by SnippetRepository.List.
type Ordering string

const (
	OrderCreatedDesc Ordering = "-created"
	OrderCreatedAsc  Ordering = "created"
	OrderTitleAsc    Ordering = "title"
	OrderTitleDesc   Ordering = "-title"
)

// ParseOrdering accepts the public names of the supported orderings. The
// empty string selects the default, newest first.
func ParseOrdering(s string) (Ordering, bool) {
	switch o := Ordering(s); o {
	case "":
		return OrderCreatedDesc, true
	case OrderCreatedDesc, OrderCreatedAsc, OrderTitleAsc, OrderTitleDesc:
		return o, true
	default:
		return "", false
	}
}

type ListOptions struct {
	Limit    int
	Offset   int
	Ordering Ordering // zero value means OrderCreatedDesc
	OwnerID  string   // optional filter
}

type SnippetRepository interface {
	Create(ctx context.Context, snippet *model.Snippet) error
	GetByID(ctx context.Context, id string) (*model.Snippet, error)
	List(ctx context.Context, opts ListOptions) ([]model.Snippet, error)
	Count(ctx context.Context, ownerID string) (int, error)
	Update(ctx context.Context, snippet *model.Snippet) error
	Delete(ctx context.Context, id string) error
}

type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	Upsert(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context, limit, offset int) ([]model.User, error)
	CountUsers(ctx context.Context) (int, error)
	SnippetIDsByOwner(ctx context.Context, ownerIDs ...string) (map[string][]string, error)
}
