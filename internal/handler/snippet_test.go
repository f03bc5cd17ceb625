package handler_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/model"
)

// =========================================================================
// CREATE
// =========================================================================

func TestSnippetHandler_Create(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleCreate, request(http.MethodPost, "/snippets",
		`{"code": "print('hi')", "owner": "mallory", "id": "forged"}`, env.alice.ID, ""))

	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	got := decode[snippetJSON](t, rr)

	assert.NotEmpty(t, got.ID)
	assert.NotEqual(t, "forged", got.ID)
	assert.Equal(t, "alice", got.Owner)
	assert.Equal(t, "print('hi')", got.Code)
	assert.Equal(t, "", got.Title)
	assert.False(t, got.Linenos)
	assert.Equal(t, model.DefaultLanguage, got.Language)
	assert.Equal(t, model.DefaultStyle, got.Style)
	assert.False(t, got.Created.IsZero())
	assert.Equal(t, "/snippets/"+got.ID, rr.Header().Get("Location"))
}

func TestSnippetHandler_CreateMissingCode(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleCreate, request(http.MethodPost, "/snippets", `{"title": "x"}`, env.alice.ID, ""))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"code": ["This field is required."]}`, rr.Body.String())

	count, err := env.db.Count(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSnippetHandler_CreateReportsEveryField(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleCreate, request(http.MethodPost, "/snippets",
		`{"code": "  ", "language": "klingon", "linenos": "maybe", "title": "`+strings.Repeat("t", 101)+`"}`,
		env.alice.ID, ""))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{
		"code": ["This field may not be blank."],
		"language": ["\"klingon\" is not a valid choice."],
		"linenos": ["Must be a valid boolean."],
		"title": ["Ensure this field has no more than 100 characters."]
	}`, rr.Body.String())
}

func TestSnippetHandler_CreateMalformedJSON(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleCreate, request(http.MethodPost, "/snippets", `{"code": `, env.alice.ID, ""))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.True(t, strings.HasPrefix(body["detail"], "JSON parse error - "), body["detail"])
}

// =========================================================================
// LIST
// =========================================================================

func TestSnippetHandler_ListPages(t *testing.T) {
	env := newTestEnv(t)
	for _, code := range []string{"a=1", "a=2", "a=3"} {
		env.create(t, `{"code": "`+code+`"}`)
	}

	rr := serve(env.snippets.HandleList, request(http.MethodGet, "/snippets", "", "", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	first := decode[pageJSON[snippetJSON]](t, rr)

	assert.Equal(t, 3, first.Count)
	require.Len(t, first.Results, 2)
	assert.Equal(t, "a=3", first.Results[0].Code)
	assert.Equal(t, "a=2", first.Results[1].Code)
	require.NotNil(t, first.Next)
	assert.Equal(t, "http://example.com/snippets?page=2", *first.Next)
	assert.Nil(t, first.Previous)

	rr = serve(env.snippets.HandleList, request(http.MethodGet, *first.Next, "", "", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	second := decode[pageJSON[snippetJSON]](t, rr)

	require.Len(t, second.Results, 1)
	assert.Equal(t, "a=1", second.Results[0].Code)
	assert.Nil(t, second.Next)
	require.NotNil(t, second.Previous)
	assert.Equal(t, "http://example.com/snippets", *second.Previous)
}

func TestSnippetHandler_ListOrdering(t *testing.T) {
	env := newTestEnv(t)
	env.create(t, `{"code": "x", "title": "b"}`)
	env.create(t, `{"code": "x", "title": "a"}`)

	rr := serve(env.snippets.HandleList, request(http.MethodGet, "/snippets?ordering=title", "", "", ""))
	require.Equal(t, http.StatusOK, rr.Code)
	page := decode[pageJSON[snippetJSON]](t, rr)
	require.Len(t, page.Results, 2)
	assert.Equal(t, "a", page.Results[0].Title)

	rr = serve(env.snippets.HandleList, request(http.MethodGet, "/snippets?ordering=code", "", "", ""))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.JSONEq(t, `{"ordering": ["\"code\" is not a valid choice."]}`, rr.Body.String())
}

func TestSnippetHandler_ListBadPage(t *testing.T) {
	env := newTestEnv(t)

	for _, page := range []string{"0", "-1", "abc"} {
		rr := serve(env.snippets.HandleList, request(http.MethodGet, "/snippets?page="+page, "", "", ""))
		assert.Equal(t, http.StatusNotFound, rr.Code, "page=%s", page)
		assert.Empty(t, rr.Body.String())
	}
}

func TestSnippetHandler_ListEmpty(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleList, request(http.MethodGet, "/snippets", "", "", ""))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"count": 0, "next": null, "previous": null, "results": []}`, rr.Body.String())
}

// =========================================================================
// RETRIEVE / UPDATE / DELETE
// =========================================================================

func TestSnippetHandler_GetMissing(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandleGet, request(http.MethodGet, "/snippets/nope", "", "", "nope"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestSnippetHandler_PatchOnlyTitle(t *testing.T) {
	env := newTestEnv(t)
	orig := env.create(t, `{"code": "x = 1", "language": "go", "style": "vim", "linenos": true}`)

	rr := serve(env.snippets.HandlePatch, request(http.MethodPatch, "/snippets/"+orig.ID, `{"title": "x"}`, "", orig.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[snippetJSON](t, rr)

	want := orig
	want.Title = "x"
	assert.Equal(t, want.ID, got.ID)
	assert.Equal(t, want.Title, got.Title)
	assert.Equal(t, want.Code, got.Code)
	assert.Equal(t, want.Linenos, got.Linenos)
	assert.Equal(t, want.Language, got.Language)
	assert.Equal(t, want.Style, got.Style)
	assert.Equal(t, want.Owner, got.Owner)
	assert.True(t, want.Created.Equal(got.Created))
}

func TestSnippetHandler_PutRequiresAllFields(t *testing.T) {
	env := newTestEnv(t)
	orig := env.create(t, `{"code": "x"}`)

	rr := serve(env.snippets.HandleUpdate, request(http.MethodPut, "/snippets/"+orig.ID, `{"code": "y"}`, "", orig.ID))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	body := decode[map[string][]string](t, rr)
	assert.Contains(t, body, "title")
	assert.Contains(t, body, "language")

	rr = serve(env.snippets.HandleUpdate, request(http.MethodPut, "/snippets/"+orig.ID,
		`{"title": "t", "code": "y", "linenos": false, "language": "ruby", "style": "emacs"}`, "", orig.ID))
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	got := decode[snippetJSON](t, rr)
	assert.Equal(t, "ruby", got.Language)
	assert.Equal(t, "alice", got.Owner)
}

func TestSnippetHandler_UpdateMissing(t *testing.T) {
	env := newTestEnv(t)

	rr := serve(env.snippets.HandlePatch, request(http.MethodPatch, "/snippets/nope", `{"title": "x"}`, "", "nope"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Empty(t, rr.Body.String())
}

func TestSnippetHandler_Delete(t *testing.T) {
	env := newTestEnv(t)
	s := env.create(t, `{"code": "bye"}`)

	rr := serve(env.snippets.HandleDelete, request(http.MethodDelete, "/snippets/"+s.ID, "", "", s.ID))
	assert.Equal(t, http.StatusNoContent, rr.Code)
	assert.Empty(t, rr.Body.String())

	rr = serve(env.snippets.HandleDelete, request(http.MethodDelete, "/snippets/"+s.ID, "", "", s.ID))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// HIGHLIGHT
// =========================================================================

func TestSnippetHandler_Highlight(t *testing.T) {
	env := newTestEnv(t)
	s := env.create(t, `{"code": "print('hi')", "linenos": true}`)

	rr := serve(env.snippets.HandleHighlight, request(http.MethodGet, "/snippets/"+s.ID+"/highlight", "", "", s.ID))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "text/html; charset=utf-8", rr.Header().Get("Content-Type"))
	assert.Contains(t, rr.Body.String(), "<html")

	rr = serve(env.snippets.HandleHighlight, request(http.MethodGet, "/snippets/nope/highlight", "", "", "nope"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

// =========================================================================
// RUN
// =========================================================================

func TestSnippetHandler_Run(t *testing.T) {
	env := newTestEnv(t)
	s := env.create(t, `{"code": "print('Hello World')"}`)
	env.exec.ReturnRes = &executor.ExecutionResult{
		Stdout:   "Hello World\n",
		ExitCode: 0,
		Duration: 100 * time.Millisecond,
	}

	rr := serve(env.snippets.HandleRun, request(http.MethodPost, "/snippets/"+s.ID+"/run", "", env.alice.ID, s.ID))

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decode[executor.ExecutionResult](t, rr)
	assert.Equal(t, "Hello World\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)

	assert.Equal(t, "print('Hello World')", env.exec.CapturedReq.Code)
	assert.Equal(t, "python", env.exec.CapturedReq.Language)
}

func TestSnippetHandler_RunErrors(t *testing.T) {
	_, disabled := executor.Disabled{}.Execute(context.Background(), executor.ExecutionRequest{})

	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"unsupported language", fmt.Errorf("%w: rust", executor.ErrUnsupportedLanguage), http.StatusBadRequest},
		{"disabled", disabled, http.StatusServiceUnavailable},
		{"sandbox failure", errors.New("docker: daemon gone"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			s := env.create(t, `{"code": "fn main() {}", "language": "rust"}`)

			env.exec.ReturnErr = tt.err

			rr := serve(env.snippets.HandleRun, request(http.MethodPost, "/snippets/"+s.ID+"/run", "", env.alice.ID, s.ID))
			assert.Equal(t, tt.status, rr.Code, rr.Body.String())
		})
	}

	env := newTestEnv(t)
	rr := serve(env.snippets.HandleRun, request(http.MethodPost, "/snippets/nope/run", "", env.alice.ID, "nope"))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
