package handlers

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/internal/session"
	"github.com/qenty/academy/types"
)

//go:embed templates/*.html
var templateFS embed.FS

var pages = []string{
	"index.html",
	"cursos.html",
	"registro.html",
	"login.html",
	"dashboard.html",
	"aula.html",
	"admin.html",
	"editar.html",
	"error.html",
}

// Web renders pages and carries the session manager shared by every handler.
type Web struct {
	templates map[string]*template.Template
	sessions  *session.Manager
	logger    logrus.FieldLogger
}

func NewWeb(sessions *session.Manager, logger logrus.FieldLogger) (*Web, error) {
	funcs := template.FuncMap{
		"price":    formatPrice,
		"coverURL": func(key string) string { return "/media/" + key },
	}

	templates := make(map[string]*template.Template, len(pages))
	for _, page := range pages {
		tmpl, err := template.New(page).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+page)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", page, err)
		}
		templates[page] = tmpl
	}
	return &Web{templates: templates, sessions: sessions, logger: logger}, nil
}

type pageData struct {
	Title  string
	Actor  types.Actor
	Notice string
	Data   any
}

func (web *Web) render(w http.ResponseWriter, r *http.Request, status int, page, title string, data any) {
	tmpl, ok := web.templates[page]
	if !ok {
		web.serverError(w, r, fmt.Errorf("unknown template %s", page))
		return
	}

	var buf bytes.Buffer
	err := tmpl.ExecuteTemplate(&buf, "layout", pageData{
		Title:  title,
		Actor:  actorFromContext(r.Context()),
		Notice: web.sessions.PopFlash(w, r),
		Data:   data,
	})
	if err != nil {
		web.serverError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// redirect stores notice for the next page and sends the browser to target.
func (web *Web) redirect(w http.ResponseWriter, r *http.Request, target, notice string) {
	if notice != "" {
		web.sessions.SetFlash(w, notice)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

func (web *Web) forbidden(w http.ResponseWriter, r *http.Request) {
	web.render(w, r, http.StatusForbidden, "error.html", "Acceso denegado", "No tienes permiso para ver esta página.")
}

func (web *Web) notFound(w http.ResponseWriter, r *http.Request) {
	web.render(w, r, http.StatusNotFound, "error.html", "No encontrado", "La página que buscas no existe.")
}

// serverError logs err and answers with a plain 500; it never renders a
// template so a broken template cannot recurse.
func (web *Web) serverError(w http.ResponseWriter, r *http.Request, err error) {
	web.logger.WithError(err).WithFields(logrus.Fields{
		"method": r.Method,
		"path":   r.URL.Path,
	}).Error("request failed")
	http.Error(w, "Ocurrió un error inesperado.", http.StatusInternalServerError)
}

// formatPrice renders an amount in pesos with dot thousand separators.
func formatPrice(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	digits := strconv.FormatInt(amount, 10)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return sign + "$" + b.String()
}
