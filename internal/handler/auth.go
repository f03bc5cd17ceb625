package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/rs/xid"

	"github.com/sakif/snippet-api/internal/apperror"
	"github.com/sakif/snippet-api/internal/auth"
	"github.com/sakif/snippet-api/internal/serializer"
	"github.com/sakif/snippet-api/internal/service"
)

// GitHubExchanger is the part of auth.GitHubProvider the handler uses.
type GitHubExchanger interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (*auth.GitHubUser, error)
}

// AuthHandler manages accounts and sessions.
//
// HANDLER RESPONSIBILITIES:
//   - HandleRegister       → create a username/password account
//   - HandleLogin          → check credentials, issue a JWT (body + cookie)
//   - HandleLogout         → clear the JWT cookie
//   - HandleMe             → return the signed-in user
//   - HandleGitHubLogin    → redirect the browser to GitHub's authorization page
//   - HandleGitHubCallback → receive the code, exchange it for a user, issue JWT
type AuthHandler struct {
	auth         *service.AuthService
	users        *service.UserService
	github       GitHubExchanger
	cookieSecure bool
	logger       *slog.Logger
}

// NewAuthHandler creates an AuthHandler. github may be nil when GitHub login
// is not configured; the GitHub routes are then not mounted.
func NewAuthHandler(
	authService *service.AuthService,
	users *service.UserService,
	github GitHubExchanger,
	cookieSecure bool,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:         authService,
		users:        users,
		github:       github,
		cookieSecure: cookieSecure,
		logger:       logger,
	}
}

// TokenResponse is returned by the login endpoints. The same token is also
// set as an HttpOnly cookie for browsers.
type TokenResponse struct {
	Token     string                  `json:"token"`
	ExpiresIn int                     `json:"expires_in"`
	User      serializer.UserResponse `json:"user"`
}

// HandleRegister creates a password account.
//
// HTTP: POST /auth/register
// REQUEST BODY: {"username": "alice", "password": "s3cret"}
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	user, err := h.auth.Register(r.Context(), fields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	w.Header().Set("Location", "/users/"+user.ID)
	writeJSON(w, http.StatusCreated, serializer.NewUserResponse(user, nil))
}

// HandleLogin exchanges a username and password for a token.
//
// HTTP: POST /auth/login
// Bad credentials are a 400 with {"non_field_errors": [...]}, whichever of
// the two was wrong.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	fields, err := readFields(w, r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.auth.Login(r.Context(), fields)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.respondWithToken(w, r, res)
}

// HandleLogout clears the JWT cookie.
//
// HTTP: POST /auth/logout
//
// WHY POST AND NOT GET?
// Logout is a state-changing operation. Using GET would be vulnerable to
// CSRF and to browsers pre-fetching the URL.
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	auth.ClearTokenCookie(w, h.cookieSecure)
	writeJSON(w, http.StatusOK, DetailResponse{Detail: "Successfully logged out."})
}

// HandleMe returns the currently authenticated user.
//
// HTTP: GET /auth/me
// Auth: Required (RequireAuth middleware sets userID in context)
func (h *AuthHandler) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFromContext(r.Context())

	detail, err := h.users.Get(r.Context(), userID)
	if errors.Is(err, apperror.ErrNotFound) {
		// A valid token for a deleted account.
		err = apperror.Unauthorized(auth.MsgNotAuthenticated)
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, serializer.NewUserResponse(&detail.User, detail.SnippetIDs))
}

// HandleGitHubLogin redirects the user to GitHub's authorization page.
//
// HTTP: GET /auth/github/login
//
// CSRF PROTECTION VIA STATE:
// We generate a random state string and store it in a short-lived cookie.
// When GitHub calls back, HandleGitHubCallback verifies the state matches.
// This proves the callback was initiated by this server, not a CSRF attacker.
func (h *AuthHandler) HandleGitHubLogin(w http.ResponseWriter, r *http.Request) {
	state := xid.New().String()
	auth.SetStateCookie(w, state, h.cookieSecure)
	http.Redirect(w, r, h.github.AuthURL(state), http.StatusTemporaryRedirect)
}

// HandleGitHubCallback completes the OAuth login flow.
//
// HTTP: GET /auth/github/callback?code=xxx&state=yyy
//
// FLOW:
//  1. Validate the state parameter (CSRF check)
//  2. Exchange the code for a GitHub user profile
//  3. Find or create the matching user
//  4. Issue a JWT, in the body and as a cookie
func (h *AuthHandler) HandleGitHubCallback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	// --- Step 1: Validate CSRF state ---
	stateCookie, err := r.Cookie(auth.StateCookieName)
	if err != nil || stateCookie.Value == "" || query.Get("state") != stateCookie.Value {
		h.logger.Warn("auth callback: state mismatch")
		writeError(w, h.logger, apperror.BadRequest("Invalid OAuth state."))
		return
	}
	auth.ClearStateCookie(w)

	if errParam := query.Get("error"); errParam != "" {
		h.logger.Info("auth callback: user denied authorization", slog.String("error", errParam))
		writeError(w, h.logger, apperror.Unauthorized("GitHub authorization was denied."))
		return
	}

	code := query.Get("code")
	if code == "" {
		writeError(w, h.logger, apperror.BadRequest("Missing OAuth code."))
		return
	}

	// --- Step 2: Exchange code for GitHub user profile ---
	ghUser, err := h.github.Exchange(r.Context(), code)
	if err != nil {
		h.logger.Error("auth callback: GitHub exchange failed", slog.String("error", err.Error()))
		writeError(w, h.logger, apperror.Unauthorized("GitHub authentication failed."))
		return
	}

	// --- Steps 3 and 4 ---
	res, err := h.auth.LoginGitHub(r.Context(), ghUser)
	if errors.Is(err, apperror.ErrConflict) {
		// A password account already owns this login.
		err = &apperror.AppError{Err: apperror.ErrConflict, Message: service.MsgUsernameTaken}
	}
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.respondWithToken(w, r, res)
}

func (h *AuthHandler) respondWithToken(w http.ResponseWriter, r *http.Request, res *service.AuthResult) {
	ttl := h.auth.TokenTTL()
	auth.SetTokenCookie(w, res.Token, ttl, h.cookieSecure)

	detail, err := h.users.Get(r.Context(), res.User.ID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, TokenResponse{
		Token:     res.Token,
		ExpiresIn: int(ttl.Seconds()),
		User:      serializer.NewUserResponse(&detail.User, detail.SnippetIDs),
	})
}
