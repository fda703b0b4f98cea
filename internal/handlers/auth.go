package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/types"
)

const (
	noticeLoginRequired      = "Inicia sesión para continuar."
	noticeInvalidCredentials = "Email o contraseña incorrectos."
	noticeDuplicateEmail     = "El email ya está registrado."
	noticeRegisterInvalid    = "Completa nombre, email válido y contraseña."
	noticeUnexpected         = "Ocurrió un error inesperado. Intenta de nuevo."
)

// Capability is what a route demands of the current actor.
type Capability int

const (
	CapabilityAuthenticated Capability = iota
	CapabilityAdmin
)

// AuthHandler serves registration, login and logout.
type AuthHandler struct {
	web   *Web
	users *services.UserService
}

func NewAuthHandler(web *Web, users *services.UserService) *AuthHandler {
	return &AuthHandler{web: web, users: users}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, web *Web, users *services.UserService) {
	handler := NewAuthHandler(web, users)

	r.Get("/registro", handler.RegisterPage)
	r.Post("/registro", handler.Register)
	r.Get("/login", handler.LoginPage)
	r.Post("/login", handler.Login)
	r.Get("/logout", handler.Logout)
}

// ResolveActor loads the user named by the session cookie into the request
// context. Missing, invalid or stale sessions yield the anonymous actor.
func ResolveActor(web *Web, users *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := types.Anonymous
			if userID, err := web.sessions.UserID(r); err == nil {
				user, err := users.GetByID(r.Context(), userID)
				switch {
				case err == nil:
					actor = types.ActorFor(user)
				case errors.Is(err, services.ErrNotFound):
					web.sessions.Clear(w)
				default:
					web.logger.WithError(err).Warn("failed to resolve session user")
				}
			}
			next.ServeHTTP(w, r.WithContext(withActor(r.Context(), actor)))
		})
	}
}

// Require guards routes by capability. Anonymous visitors of authenticated
// routes are sent to the login page; every failed admin check is a 403.
func Require(web *Web, capability Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor := actorFromContext(r.Context())
			switch capability {
			case CapabilityAdmin:
				if !actor.IsAdmin() {
					web.forbidden(w, r)
					return
				}
			default:
				if !actor.IsAuthenticated() {
					web.redirect(w, r, "/login", noticeLoginRequired)
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (h *AuthHandler) RegisterPage(w http.ResponseWriter, r *http.Request) {
	h.web.render(w, r, http.StatusOK, "registro.html", "Registro", nil)
}

// Register creates a learner account and signs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	form, err := parseRegisterForm(r)
	if err != nil {
		h.web.redirect(w, r, "/registro", noticeRegisterInvalid)
		return
	}

	user, err := h.users.Register(r.Context(), form.Name, form.Email, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrDuplicateEmail) {
			h.web.redirect(w, r, "/registro", noticeDuplicateEmail)
			return
		}
		h.web.logger.WithError(err).Error("registration failed")
		h.web.redirect(w, r, "/registro", noticeUnexpected)
		return
	}

	if err := h.web.sessions.Issue(w, user.ID); err != nil {
		h.web.serverError(w, r, err)
		return
	}
	h.web.redirect(w, r, "/mis-cursos", "¡Bienvenido/a, "+user.Name+"!")
}

func (h *AuthHandler) LoginPage(w http.ResponseWriter, r *http.Request) {
	h.web.render(w, r, http.StatusOK, "login.html", "Ingresar", nil)
}

// Login verifies credentials. Administrators land on the admin view.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	form, err := parseLoginForm(r)
	if err != nil {
		h.web.redirect(w, r, "/login", noticeInvalidCredentials)
		return
	}

	user, err := h.users.Authenticate(r.Context(), form.Email, form.Password)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			h.web.redirect(w, r, "/login", noticeInvalidCredentials)
			return
		}
		h.web.logger.WithError(err).Error("login failed")
		h.web.redirect(w, r, "/login", noticeUnexpected)
		return
	}

	if err := h.web.sessions.Issue(w, user.ID); err != nil {
		h.web.serverError(w, r, err)
		return
	}
	target := "/mis-cursos"
	if user.IsAdmin {
		target = "/admin"
	}
	h.web.redirect(w, r, target, "")
}

// Logout clears the session whether or not one exists.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.web.sessions.Clear(w)
	h.web.redirect(w, r, "/", "Sesión cerrada.")
}
