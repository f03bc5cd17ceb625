package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/repository"
)

// =========================================================================
// FAKE REPOSITORY
// =========================================================================
//
// fakeStore is an in-memory implementation of both repository interfaces.
// A hand-written fake keeps the tests readable: you can see exactly what the
// "database" does. Errors can be injected to simulate a failing database.
//
// seq stands in for created_at: every insert gets the next number, so
// "newest first" is simply "highest seq first".

type fakeSnippet struct {
	model.Snippet
	seq int
}

type fakeStore struct {
	snippets map[string]*fakeSnippet
	users    map[string]*model.User
	seq      int

	createErr error
	countErr  error
	listCalls int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		snippets: make(map[string]*fakeSnippet),
		users:    make(map[string]*model.User),
	}
}

func (f *fakeStore) next() int {
	f.seq++
	return f.seq
}

func (f *fakeStore) Create(_ context.Context, s *model.Snippet) error {
	if f.createErr != nil {
		return f.createErr
	}
	owner, ok := f.users[s.OwnerID]
	if !ok {
		return fmt.Errorf("fake: FOREIGN KEY constraint failed")
	}
	seq := f.next()
	s.ID = fmt.Sprintf("snip-%d", seq)
	s.CreatedAt = time.Unix(int64(seq), 0).UTC()
	stored := *s
	stored.OwnerUsername = owner.Username
	f.snippets[s.ID] = &fakeSnippet{Snippet: stored, seq: seq}
	return nil
}

func (f *fakeStore) GetByID(_ context.Context, id string) (*model.Snippet, error) {
	s, ok := f.snippets[id]
	if !ok {
		return nil, apperror.NotFound("snippet", id)
	}
	result := s.Snippet
	return &result, nil
}

func (f *fakeStore) sorted(ordering repository.Ordering, ownerID string) []*fakeSnippet {
	all := make([]*fakeSnippet, 0, len(f.snippets))
	for _, s := range f.snippets {
		if ownerID == "" || s.OwnerID == ownerID {
			all = append(all, s)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		a, b := all[i], all[j]
		switch ordering {
		case repository.OrderCreatedAsc:
			return a.seq < b.seq
		case repository.OrderTitleAsc:
			if a.Title != b.Title {
				return a.Title < b.Title
			}
		case repository.OrderTitleDesc:
			if a.Title != b.Title {
				return a.Title > b.Title
			}
		}
		return a.seq > b.seq
	})
	return all
}

func (f *fakeStore) List(_ context.Context, opts repository.ListOptions) ([]model.Snippet, error) {
	f.listCalls++
	all := f.sorted(opts.Ordering, opts.OwnerID)

	result := []model.Snippet{}
	for i := opts.Offset; i < len(all) && len(result) < opts.Limit; i++ {
		result = append(result, all[i].Snippet)
	}
	return result, nil
}

func (f *fakeStore) Count(_ context.Context, ownerID string) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	return len(f.sorted("", ownerID)), nil
}

func (f *fakeStore) Update(_ context.Context, s *model.Snippet) error {
	stored, ok := f.snippets[s.ID]
	if !ok {
		return apperror.NotFound("snippet", s.ID)
	}
	stored.Title = s.Title
	stored.Code = s.Code
	stored.Linenos = s.Linenos
	stored.Language = s.Language
	stored.Style = s.Style
	return nil
}

func (f *fakeStore) Delete(_ context.Context, id string) error {
	if _, ok := f.snippets[id]; !ok {
		return apperror.NotFound("snippet", id)
	}
	delete(f.snippets, id)
	return nil
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.Username == u.Username {
			return apperror.Conflict("user", u.Username)
		}
	}
	u.ID = fmt.Sprintf("user-%d", f.next())
	u.CreatedAt = time.Unix(int64(f.seq), 0).UTC()
	stored := *u
	f.users[u.ID] = &stored
	return nil
}

func (f *fakeStore) Upsert(ctx context.Context, u *model.User) error {
	for _, existing := range f.users {
		if existing.GitHubID != nil && u.GitHubID != nil && *existing.GitHubID == *u.GitHubID {
			*u = *existing
			return nil
		}
	}
	return f.CreateUser(ctx, u)
}

func (f *fakeStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, apperror.NotFound("user", id)
	}
	result := *u
	return &result, nil
}

func (f *fakeStore) GetUserByUsername(_ context.Context, username string) (*model.User, error) {
	for _, u := range f.users {
		if u.Username == username {
			result := *u
			return &result, nil
		}
	}
	return nil, apperror.NotFound("user", username)
}

func (f *fakeStore) ListUsers(_ context.Context, limit, offset int) ([]model.User, error) {
	all := make([]model.User, 0, len(f.users))
	for _, u := range f.users {
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.Before(all[j].CreatedAt) })

	result := []model.User{}
	for i := offset; i < len(all) && len(result) < limit; i++ {
		result = append(result, all[i])
	}
	return result, nil
}

func (f *fakeStore) CountUsers(context.Context) (int, error) {
	return len(f.users), nil
}

func (f *fakeStore) SnippetIDsByOwner(_ context.Context, ownerIDs ...string) (map[string][]string, error) {
	result := make(map[string][]string, len(ownerIDs))
	for _, id := range ownerIDs {
		result[id] = []string{}
		for _, s := range f.sorted(repository.OrderCreatedDesc, id) {
			result[id] = append(result[id], s.ID)
		}
	}
	return result, nil
}

// addUser inserts a user directly, bypassing any service.
func (f *fakeStore) addUser(username string) *model.User {
	u := &model.User{Username: username}
	if err := f.CreateUser(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
