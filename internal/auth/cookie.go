package auth

import (
	"net/http"
	"time"
)

const (
	// CookieName holds the session JWT.
	CookieName = "token"
	// StateCookieName holds the OAuth state between login and callback.
	StateCookieName = "oauth_state"
)

// SetTokenCookie stores token in an HttpOnly cookie that expires with it.
//
// HttpOnly = JavaScript cannot read this cookie (XSS protection).
// SameSite=Lax = sent on top-level navigations but not cross-site POSTs.
// secure should be true whenever the API is served over HTTPS.
func SetTokenCookie(w http.ResponseWriter, token string, ttl time.Duration, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(ttl.Seconds()),
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearTokenCookie tells the browser to drop the session cookie. The token
// itself stays valid until it expires; without the cookie the browser simply
// stops sending it.
func ClearTokenCookie(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SetStateCookie remembers the OAuth state for ten minutes, long enough for
// the user to approve on GitHub.
func SetStateCookie(w http.ResponseWriter, state string, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     StateCookieName,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearStateCookie drops the state cookie. State is single-use.
func ClearStateCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:   StateCookieName,
		Value:  "",
		Path:   "/",
		MaxAge: -1,
	})
}
