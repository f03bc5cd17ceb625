// Package service contains the business logic layer of the application.
//
// THE THREE-LAYER ARCHITECTURE:
//
//	Handler (HTTP layer)     → parses requests, writes responses
//	Service (Business layer) → validates, enforces rules, orchestrates
//	Repository (Data layer)  → reads/writes to the database
//
// Handlers only know HTTP (status codes, headers, JSON). Services only know
// the rules (what a valid snippet is, who owns it). Neither knows SQL.
//
// DEPENDENCY INJECTION:
// SnippetService takes a repository.SnippetRepository (interface), NOT a
// *sqlite.DB. Tests pass an in-memory fake (see snippet_test.go); main wires
// the real database.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/repository"
	"github.com/sakif/snippet-api/internal/serializer"
)

// SnippetService handles business logic for code snippets.
type SnippetService struct {
	repo   repository.SnippetRepository
	logger *slog.Logger
}

// NewSnippetService creates a new SnippetService.
func NewSnippetService(repo repository.SnippetRepository, logger *slog.Logger) *SnippetService {
	return &SnippetService{
		repo:   repo,
		logger: logger,
	}
}

// Create validates fields and stores a new snippet owned by ownerID.
//
// The owner comes from the authenticated caller, never from the payload; the
// serializer drops any "owner" the client sends. Validation runs to completion
// before the repository is touched, so a bad payload writes nothing.
func (s *SnippetService) Create(ctx context.Context, ownerID string, fields serializer.Fields) (*model.Snippet, error) {
	if ownerID == "" {
		return nil, apperror.Unauthorized("an owner is required to create a snippet")
	}

	in, err := serializer.DecodeSnippet(fields, serializer.Create)
	if err != nil {
		return nil, err
	}

	snippet := &model.Snippet{OwnerID: ownerID}
	in.Apply(snippet)

	if err := s.repo.Create(ctx, snippet); err != nil {
		s.logger.Error("failed to create snippet",
			slog.String("owner", ownerID),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("creating snippet: %w", err)
	}

	// Re-read so the response carries the owner's username from the JOIN.
	created, err := s.repo.GetByID(ctx, snippet.ID)
	if err != nil {
		return nil, fmt.Errorf("reloading snippet %s: %w", snippet.ID, err)
	}

	s.logger.Info("snippet created",
		slog.String("id", created.ID),
		slog.String("owner", created.OwnerUsername),
	)

	return created, nil
}

// Get retrieves a snippet by its ID.
// Returns apperror.ErrNotFound if the snippet doesn't exist.
func (s *SnippetService) Get(ctx context.Context, id string) (*model.Snippet, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, apperror.NotFound("snippet", id)
	}

	// NotFound is a normal outcome, not something to log.
	return s.repo.GetByID(ctx, id)
}

// ListResult is one page of snippets plus the total across all pages.
type ListResult struct {
	Snippets []model.Snippet
	Count    int
}

// List returns one window of snippets in the requested order.
//
// ordering is the raw ?ordering= value: "", "created", "-created", "title" or
// "-title". Anything else is a validation error on the "ordering" field.
func (s *SnippetService) List(ctx context.Context, limit, offset int, ordering string) (*ListResult, error) {
	order, ok := repository.ParseOrdering(ordering)
	if !ok {
		return nil, apperror.ValidationFailed("ordering",
			fmt.Sprintf(`"%s" is not a valid choice.`, ordering))
	}

	count, err := s.repo.Count(ctx, "")
	if err != nil {
		s.logger.Error("failed to count snippets", slog.String("error", err.Error()))
		return nil, fmt.Errorf("counting snippets: %w", err)
	}

	// Past the last page there is nothing to fetch.
	snippets := []model.Snippet{}
	if offset < count {
		snippets, err = s.repo.List(ctx, repository.ListOptions{
			Limit:    limit,
			Offset:   offset,
			Ordering: order,
		})
		if err != nil {
			s.logger.Error("failed to list snippets", slog.String("error", err.Error()))
			return nil, fmt.Errorf("listing snippets: %w", err)
		}
	}

	return &ListResult{Snippets: snippets, Count: count}, nil
}

// Update modifies an existing snippet.
//
// STRATEGY: "Fetch then update"
//  1. Fetch the existing snippet; a missing id is NotFound before any
//     validation happens
//  2. Validate the payload: every writable field for a full update
//     (partial=false), only the supplied ones for a partial update
//  3. Merge and save; id, owner and created are never touched
//
// Ownership is not checked: any caller may update any snippet.
func (s *SnippetService) Update(ctx context.Context, id string, fields serializer.Fields, partial bool) (*model.Snippet, error) {
	snippet, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	mode := serializer.Replace
	if partial {
		mode = serializer.Patch
	}
	in, err := serializer.DecodeSnippet(fields, mode)
	if err != nil {
		return nil, err
	}
	in.Apply(snippet)

	if err := s.repo.Update(ctx, snippet); err != nil {
		s.logger.Error("failed to update snippet",
			slog.String("id", id),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("updating snippet: %w", err)
	}

	s.logger.Info("snippet updated",
		slog.String("id", snippet.ID),
		slog.Bool("partial", partial),
	)

	return snippet, nil
}

// Delete removes a snippet by its ID.
// Returns apperror.ErrNotFound if the snippet doesn't exist, including when
// it was already deleted.
func (s *SnippetService) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return apperror.NotFound("snippet", id)
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("snippet deleted", slog.String("id", id))
	return nil
}
