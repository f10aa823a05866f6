package handler

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/securecookie"

	"login-service/internal/config"
	"login-service/internal/service"
	"login-service/internal/util"
)

type sessionKey struct{}

// SessionCookies signs and encrypts the session token carried in the session cookie.
type SessionCookies struct {
	codec  *securecookie.SecureCookie
	name   string
	secure bool
}

// NewSessionCookies derives the signing and encryption keys from cfg.Secret.
func NewSessionCookies(cfg config.SessionConfig, secure bool) *SessionCookies {
	hashKey := sha256.Sum256([]byte("session-hash:" + cfg.Secret))
	blockKey := sha256.Sum256([]byte("session-block:" + cfg.Secret))

	name := cfg.CookieName
	if name == "" {
		name = "sid"
	}
	return &SessionCookies{
		codec:  securecookie.New(hashKey[:], blockKey[:]),
		name:   name,
		secure: secure,
	}
}

// Read returns the token from a valid cookie, or "" when the cookie is missing or was
// not issued with this secret.
func (c *SessionCookies) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name)
	if err != nil {
		return ""
	}
	var token string
	if err := c.codec.Decode(c.name, cookie.Value, &token); err != nil {
		util.Debug("Rejected session cookie", util.ErrorField(err))
		return ""
	}
	return token
}

func (c *SessionCookies) Write(w http.ResponseWriter, token string) error {
	encoded, err := c.codec.Encode(c.name, token)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

func (c *SessionCookies) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// SessionMiddleware resolves the session for every request, creating one (and setting the
// cookie) when the request carries no live session. Request metadata for audit events is
// attached to the context as well.
func SessionMiddleware(svc *service.LoginService, cookies *SessionCookies) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := service.WithRequestMeta(r.Context(), service.RequestMeta{
				IPAddress: r.RemoteAddr,
				UserAgent: r.UserAgent(),
				RequestID: middleware.GetReqID(r.Context()),
			})

			token, created, err := svc.ResumeSession(ctx, cookies.Read(r))
			if err != nil {
				status, message := getStatusCode(err)
				respondWithError(w, r, status, err, message)
				return
			}
			if created {
				if err := cookies.Write(w, token); err != nil {
					respondWithError(w, r, http.StatusInternalServerError, err, "Internal server error")
					return
				}
			}

			ctx = context.WithValue(ctx, sessionKey{}, token)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionToken returns the token SessionMiddleware resolved for this request.
func sessionToken(r *http.Request) string {
	token, _ := r.Context().Value(sessionKey{}).(string)
	return token
}
