// Package handler contains the HTTP handlers for the snippet API.
//
// HANDLER RESPONSIBILITIES:
//  1. Parse the incoming HTTP request (path values, query, body)
//  2. Call the service layer
//  3. Write the HTTP response (status code, headers, body)
//
// Handlers contain no business rules. Validation lives in the serializer,
// rules in the service, and the single error-to-status mapping in writeError.
package handler

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/highlight"
	"github.com/sakif/snippet-api/internal/pagination"
	"github.com/sakif/snippet-api/internal/serializer"
	"github.com/sakif/snippet-api/internal/service"
)

// OrderingParam is the query parameter selecting the list order.
const OrderingParam = "ordering"

// SnippetHandler serves /snippets and its sub-resources.
type SnippetHandler struct {
	snippets  *service.SnippetService
	paginator pagination.Paginator
	exec      executor.Executor
	logger    *slog.Logger
}

// NewSnippetHandler creates a SnippetHandler. exec may be executor.Disabled{}.
func NewSnippetHandler(
	snippets *service.SnippetService,
	paginator pagination.Paginator,
	exec executor.Executor,
	logger *slog.Logger,
) *SnippetHandler {
	return &SnippetHandler{
		snippets:  snippets,
		paginator: paginator,
		exec:      exec,
		logger:    logger,
	}
}

// HandleList returns one page of snippets.
//
// HTTP: GET /snippets?page=N&ordering=title
//
// RESPONSE FORMAT:
//
//	{"count": 42, "next": "http://host/snippets?page=3", "previous": "http://host/snippets",
//	 "results": [{"id": "...", "title": "...", ...}]}
func (h *SnippetHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	window, err := h.paginator.Window(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.snippets.List(r.Context(), window.Limit, window.Offset, r.URL.Query().Get(OrderingParam))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, pagination.NewPage(r, window, res.Count, serializer.NewSnippetResponses(res.Snippets)))
}

// HandleCreate stores a new snippet owned by the caller.
//
// HTTP: POST /snippets
// Auth: Required. RequireAuth has already answered 401 for anonymous callers,
// so an unauthenticated request never reaches validation.
func (h *SnippetHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	snippet, err := h.snippets.Create(r.Context(), userID, fields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/snippets/"+snippet.ID)
	writeJSON(w, http.StatusCreated, serializer.NewSnippetResponse(snippet))
}

// HandleGet returns a single snippet.
//
// HTTP: GET /snippets/{id}
// A missing id is a bare 404.
func (h *SnippetHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, serializer.NewSnippetResponse(snippet))
}

// HandleUpdate replaces every writable field of a snippet.
//
// HTTP: PUT /snippets/{id}
func (h *SnippetHandler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, false)
}

// HandlePatch changes only the fields present in the body.
//
// HTTP: PATCH /snippets/{id}
func (h *SnippetHandler) HandlePatch(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, true)
}

func (h *SnippetHandler) update(w http.ResponseWriter, r *http.Request, partial bool) {
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	snippet, err := h.snippets.Update(r.Context(), r.PathValue("id"), fields, partial)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, serializer.NewSnippetResponse(snippet))
}

// HandleDelete removes a snippet.
//
// HTTP: DELETE /snippets/{id}
// 204 No Content on success; deleting twice gives 404 the second time.
func (h *SnippetHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.snippets.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleHighlight renders the snippet as a standalone HTML page using its
// language, style and linenos settings.
//
// HTTP: GET /snippets/{id}/highlight
//
// The page is rendered into a buffer first: if chroma fails halfway we can
// still send a clean 500 instead of half a document.
func (h *SnippetHandler) HandleHighlight(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var buf bytes.Buffer
	if err := highlight.Render(&buf, snippet.Code, highlight.Options{
		Language: snippet.Language,
		Style:    snippet.Style,
		Linenos:  snippet.Linenos,
	}); err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

// HandleRun executes the stored snippet in the sandbox.
//
// HTTP: POST /snippets/{id}/run
// Auth: Required.
//
// RESPONSE FORMAT:
//
//	{"stdout": "hi\n", "stderr": "", "exitCode": 0, "duration": 41000000, "timedOut": false}
//
// A program that fails or times out is still a 200: the run itself worked.
func (h *SnippetHandler) HandleRun(w http.ResponseWriter, r *http.Request) {
	snippet, err := h.snippets.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	result, err := h.exec.Execute(r.Context(), executor.ExecutionRequest{
		Language: snippet.Language,
		Code:     snippet.Code,
	})
	if errors.Is(err, executor.ErrUnsupportedLanguage) {
		err = apperror.BadRequest(fmt.Sprintf("Running %s snippets is not supported.", snippet.Language))
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, result)
}
