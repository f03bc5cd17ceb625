package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key any
// package that knows the string could read or shadow the value. Only this
// package can create a contextKey, so only it can set the user ID.
type contextKey string

const userIDKey contextKey = "userID"

// Messages returned in the {"detail": ...} body of 401 responses.
const (
	MsgNotAuthenticated = "Authentication credentials were not provided."
	MsgInvalidToken     = "Invalid token."
)

// Authenticate identifies the caller, if it can, and stores the user ID in
// the request context. It never rejects a request for being anonymous; routes
// that need a user add RequireAuth after it.
//
// TOKEN SOURCES, in order:
//  1. Authorization: Bearer <jwt>. A client that sends a header means to be
//     authenticated, so a bad header token is answered with 401 right away.
//  2. The "token" cookie. A stale cookie is ignored and the request carries on
//     anonymously, so an expired browser session can still read.
//
// MIDDLEWARE PATTERN IN GO:
// A middleware takes an http.Handler and returns a new one that wraps it.
// Chi applies middlewares in a chain: req → M1 → M2 → Handler → M2 → M1 → resp
func Authenticate(tokens *TokenService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bearer, ok := bearerToken(r); ok {
				userID, err := tokens.Validate(bearer)
				if err != nil {
					w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
					writeDetail(w, http.StatusUnauthorized, MsgInvalidToken)
					return
				}
				next.ServeHTTP(w, r.WithContext(WithUserID(r.Context(), userID)))
				return
			}

			if cookie, err := r.Cookie(CookieName); err == nil && cookie.Value != "" {
				if userID, err := tokens.Validate(cookie.Value); err == nil {
					r = r.WithContext(WithUserID(r.Context(), userID))
				}
			}

			next.ServeHTTP(w, r)
		})
	}
}

// RequireAuth rejects anonymous requests with 401 before the handler runs,
// so an unauthenticated create never reaches validation.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserIDFromContext(r.Context()); !ok {
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			writeDetail(w, http.StatusUnauthorized, MsgNotAuthenticated)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// WithUserID returns a copy of ctx carrying userID. Tests use it to fake an
// authenticated request without minting a token.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserIDFromContext retrieves the authenticated user's ID from the request context.
//
// Returns ("", false) if the request is anonymous.
//
// Usage in handlers:
//
//	userID, ok := auth.UserIDFromContext(r.Context())
//	if !ok {
//	    // anonymous user
//	}
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey).(string)
	return id, ok && id != ""
}

// bearerToken extracts the token from "Authorization: Bearer <jwt>".
// The scheme is matched case-insensitively.
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}
