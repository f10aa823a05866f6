package handler

import (
	"embed"
	"html/template"
	"net/http"

	"github.com/go-chi/chi/v5"

	"login-service/internal/service"
)

//go:embed templates/*.html
var templatesFS embed.FS

var pageTmpl = template.Must(template.ParseFS(templatesFS, "templates/*.html"))

type homePageData struct {
	Identity service.Identity
}

// PageHandler renders the home, login and second-factor pages.
type PageHandler struct {
	svc *service.LoginService
}

func NewPageHandler(svc *service.LoginService) *PageHandler {
	return &PageHandler{svc: svc}
}

func (h *PageHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.Home)
	r.Get("/login", h.Login)
	r.Get("/2fa", h.SecondFactor)
}

func (h *PageHandler) Home(w http.ResponseWriter, r *http.Request) {
	identity, err := h.svc.CurrentIdentity(r.Context(), sessionToken(r))
	if err != nil {
		status, message := getStatusCode(err)
		respondWithError(w, r, status, err, message)
		return
	}
	render(w, r, "index.html", homePageData{Identity: identity})
}

func (h *PageHandler) Login(w http.ResponseWriter, r *http.Request) {
	render(w, r, "login.html", nil)
}

// SecondFactor shows the code form only while a challenge is pending.
func (h *PageHandler) SecondFactor(w http.ResponseWriter, r *http.Request) {
	pending, err := h.svc.HasPendingChallenge(r.Context(), sessionToken(r))
	if err != nil {
		status, message := getStatusCode(err)
		respondWithError(w, r, status, err, message)
		return
	}
	if !pending {
		http.Redirect(w, r, "/login", http.StatusFound)
		return
	}
	render(w, r, "2fa.html", nil)
}

func render(w http.ResponseWriter, r *http.Request, name string, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := pageTmpl.ExecuteTemplate(w, name, data); err != nil {
		respondWithError(w, r, http.StatusInternalServerError, err, "Internal server error")
	}
}
