package handler

import (
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-api/internal/pagination"
	"github.com/sakif/snippet-api/internal/serializer"
	"github.com/sakif/snippet-api/internal/service"
)

// UserHandler serves the read-only /users endpoints.
type UserHandler struct {
	users     *service.UserService
	paginator pagination.Paginator
	logger    *slog.Logger
}

func NewUserHandler(users *service.UserService, paginator pagination.Paginator, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, paginator: paginator, logger: logger}
}

// HandleList returns one page of users, oldest first.
//
// HTTP: GET /users?page=N
func (h *UserHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	window, err := h.paginator.Window(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	details, count, err := h.users.List(r.Context(), window.Limit, window.Offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	results := make([]serializer.UserResponse, 0, len(details))
	for i := range details {
		results = append(results, serializer.NewUserResponse(&details[i].User, details[i].SnippetIDs))
	}
	writeJSON(w, http.StatusOK, pagination.NewPage(r, window, count, results))
}

// HandleGet returns one user with the ids of their snippets.
//
// HTTP: GET /users/{id}
func (h *UserHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	detail, err := h.users.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, serializer.NewUserResponse(&detail.User, detail.SnippetIDs))
}
