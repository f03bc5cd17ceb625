package handler_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/executor"
	"github.com/sakif/snippet-api/internal/handler"
	"github.com/sakif/snippet-api/internal/model"
	"github.com/sakif/snippet-api/internal/pagination"
	"github.com/sakif/snippet-api/internal/repository/sqlite"
	"github.com/sakif/snippet-api/internal/service"
)

// MockExecutor implements a fast, mock executor for handler testing without Docker overhead.
type MockExecutor struct {
	CapturedReq executor.ExecutionRequest
	ReturnRes   *executor.ExecutionResult
	ReturnErr   error
}

func (m *MockExecutor) Execute(_ context.Context, req executor.ExecutionRequest) (*executor.ExecutionResult, error) {
	m.CapturedReq = req
	if m.ReturnErr != nil {
		return nil, m.ReturnErr
	}
	return m.ReturnRes, nil
}

// testEnv wires real services over an in-memory database.
type testEnv struct {
	db       *sqlite.DB
	snippets *handler.SnippetHandler
	users    *handler.UserHandler
	auth     *handler.AuthHandler
	exec     *MockExecutor
	alice    *model.User

	authSvc *service.AuthService
	userSvc *service.UserService
	logger  *slog.Logger
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tokens, err := auth.NewTokenService("handler-test-secret-0123456789", time.Hour)
	require.NoError(t, err)
	passwords := auth.NewPasswordServiceWithCost(bcrypt.MinCost)

	snippetSvc := service.NewSnippetService(db, logger)
	userSvc := service.NewUserService(db, logger)
	authSvc := service.NewAuthService(db, tokens, passwords, logger)

	alice := &model.User{Username: "alice"}
	require.NoError(t, db.CreateUser(context.Background(), alice))

	exec := &MockExecutor{}
	paginator := pagination.New(2)
	return &testEnv{
		db:       db,
		snippets: handler.NewSnippetHandler(snippetSvc, paginator, exec, logger),
		users:    handler.NewUserHandler(userSvc, paginator, logger),
		auth:     handler.NewAuthHandler(authSvc, userSvc, &fakeGitHub{}, false, logger),
		exec:     exec,
		alice:    alice,
		authSvc:  authSvc,
		userSvc:  userSvc,
		logger:   logger,
	}
}

// newAuthHandlerWith rebuilds the auth handler around a specific GitHub fake.
func newAuthHandlerWith(t *testing.T, env *testEnv, gh handler.GitHubExchanger) *handler.AuthHandler {
	t.Helper()
	return handler.NewAuthHandler(env.authSvc, env.userSvc, gh, false, env.logger)
}

// request builds a request, optionally signed in as userID and with an {id}
// path value, the way chi would deliver it.
func request(method, target, body, userID, id string) *http.Request {
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, r)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req = req.WithContext(auth.WithUserID(req.Context(), userID))
	}
	if id != "" {
		req.SetPathValue("id", id)
	}
	return req
}

func serve(h http.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v), "body: %s", rr.Body.String())
	return v
}

type snippetJSON struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Code     string    `json:"code"`
	Linenos  bool      `json:"linenos"`
	Language string    `json:"language"`
	Style    string    `json:"style"`
	Owner    string    `json:"owner"`
	Created  time.Time `json:"created"`
}

type pageJSON[T any] struct {
	Count    int     `json:"count"`
	Next     *string `json:"next"`
	Previous *string `json:"previous"`
	Results  []T     `json:"results"`
}

func (e *testEnv) create(t *testing.T, body string) snippetJSON {
	t.Helper()
	rr := serve(e.snippets.HandleCreate, request(http.MethodPost, "/snippets", body, e.alice.ID, ""))
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	return decode[snippetJSON](t, rr)
}
