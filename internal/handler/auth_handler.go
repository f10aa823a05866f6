package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"login-service/internal/service"
	"login-service/internal/util"
)

const maxFormBytes = 16 << 10

// AuthHandler serves the credential, second-factor, status and logout endpoints.
type AuthHandler struct {
	svc     *service.LoginService
	cookies *SessionCookies
}

func NewAuthHandler(svc *service.LoginService, cookies *SessionCookies) *AuthHandler {
	return &AuthHandler{svc: svc, cookies: cookies}
}

func (h *AuthHandler) RegisterRoutes(r chi.Router) {
	r.Post("/login", h.Login)
	r.Post("/verify-2fa", h.VerifySecondFactor)
	r.Get("/auth/status", h.Status)
	r.Get("/logout", h.Logout)
}

// loginForm accepts both the accountId/credential names and the username/password names
// used by plain HTML forms.
type loginForm struct {
	AccountID  string `json:"accountId"`
	Username   string `json:"username"`
	Credential string `json:"credential"`
	Password   string `json:"password"`
	Code       string `json:"code"`
}

func (f loginForm) account() string {
	if f.AccountID != "" {
		return f.AccountID
	}
	return f.Username
}

func (f loginForm) secret() string {
	if f.Credential != "" {
		return f.Credential
	}
	return f.Password
}

func readLoginForm(w http.ResponseWriter, r *http.Request) (loginForm, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxFormBytes)

	var form loginForm
	if wantsJSONBody(r) {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, fmt.Errorf("invalid JSON body: %w", err)
		}
	} else {
		if err := r.ParseForm(); err != nil {
			return form, fmt.Errorf("invalid form body: %w", err)
		}
		form = loginForm{
			AccountID:  r.PostForm.Get("accountId"),
			Username:   r.PostForm.Get("username"),
			Credential: r.PostForm.Get("credential"),
			Password:   r.PostForm.Get("password"),
			Code:       r.PostForm.Get("code"),
		}
	}

	form.AccountID = util.SanitizeFormValue(form.AccountID)
	form.Username = util.SanitizeFormValue(form.Username)
	form.Code = util.SanitizeFormValue(form.Code)
	return form, nil
}

func wantsJSONBody(r *http.Request) bool {
	return strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
}

// Login handles credential submission
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form, err := readLoginForm(w, r)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	redirect, err := h.svc.SubmitCredentials(r.Context(), sessionToken(r), form.account(), form.secret())
	if err != nil {
		status, message := getStatusCode(err)
		respondWithError(w, r, status, err, message)
		return
	}
	http.Redirect(w, r, redirect.Path(), http.StatusFound)
}

// VerifySecondFactor handles second-factor code submission
func (h *AuthHandler) VerifySecondFactor(w http.ResponseWriter, r *http.Request) {
	form, err := readLoginForm(w, r)
	if err != nil {
		respondWithError(w, r, http.StatusBadRequest, err, "Invalid request body")
		return
	}

	redirect, err := h.svc.SubmitSecondFactor(r.Context(), sessionToken(r), form.Code)
	if err != nil {
		status, message := getStatusCode(err)
		respondWithError(w, r, status, err, message)
		return
	}
	http.Redirect(w, r, redirect.Path(), http.StatusFound)
}

// Status reports the identity behind the session as {authenticated, accountId?, displayName?}.
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	identity, err := h.svc.CurrentIdentity(r.Context(), sessionToken(r))
	if err != nil {
		status, message := getStatusCode(err)
		respondWithError(w, r, status, err, message)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	respondWithJSON(w, http.StatusOK, identity)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Logout(r.Context(), sessionToken(r)); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, err, "Could not log out")
		return
	}
	h.cookies.Clear(w)
	http.Redirect(w, r, "/", http.StatusFound)
}
