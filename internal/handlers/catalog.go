package handlers

import (
	"errors"
	"math/rand/v2"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/types"
)

const featuredCount = 3

const (
	noticeCourseNotFound = "El curso no existe."
	noticeNoAccess       = "Todavía no tienes acceso a este curso."
)

// OraclePhrases rotate on the landing page.
var OraclePhrases = []string{
	"Lo que buscas te está buscando a ti.",
	"La intuición es el susurro del alma.",
	"Donde pones tu atención, pones tu energía.",
	"El universo no habla inglés, habla frecuencia.",
	"Tus heridas son el lugar por donde entra la luz.",
	"Confía en la magia de los nuevos comienzos.",
}

// CatalogHandler serves the public catalog and the learner views.
type CatalogHandler struct {
	web     *Web
	courses *services.CourseService
}

func NewCatalogHandler(web *Web, courses *services.CourseService) *CatalogHandler {
	return &CatalogHandler{web: web, courses: courses}
}

// CatalogRouter registers catalog routes on the given router.
func CatalogRouter(r chi.Router, web *Web, courses *services.CourseService) {
	handler := NewCatalogHandler(web, courses)

	r.Get("/", handler.Home)
	r.Get("/cursos", handler.ListCourses)
	r.Group(func(r chi.Router) {
		r.Use(Require(web, CapabilityAuthenticated))
		r.Get("/mis-cursos", handler.Dashboard)
		r.Get("/aula/{courseID}", handler.Classroom)
	})
}

func (h *CatalogHandler) Home(w http.ResponseWriter, r *http.Request) {
	featured, err := h.courses.Featured(r.Context(), featuredCount)
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}
	h.web.render(w, r, http.StatusOK, "index.html", "Inicio", struct {
		Phrase   string
		Featured []types.Course
	}{
		Phrase:   OraclePhrases[rand.IntN(len(OraclePhrases))],
		Featured: featured,
	})
}

func (h *CatalogHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courses, err := h.courses.List(ctx)
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}

	owned := map[int]bool{}
	if actor := actorFromContext(ctx); actor.IsAuthenticated() {
		mine, err := h.courses.OwnedCourses(ctx, actor)
		if err != nil {
			h.web.serverError(w, r, err)
			return
		}
		for _, course := range mine {
			owned[course.ID] = true
		}
	}

	h.web.render(w, r, http.StatusOK, "cursos.html", "Cursos", struct {
		Courses []types.Course
		Owned   map[int]bool
	}{
		Courses: courses,
		Owned:   owned,
	})
}

func (h *CatalogHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.OwnedCourses(r.Context(), actorFromContext(r.Context()))
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}
	h.web.render(w, r, http.StatusOK, "dashboard.html", "Mis cursos", struct {
		Courses []types.Course
	}{
		Courses: courses,
	})
}

// Classroom shows the course content to owners and administrators.
func (h *CatalogHandler) Classroom(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
		return
	}
	course, err := h.courses.Get(ctx, courseID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
			return
		}
		h.web.serverError(w, r, err)
		return
	}

	allowed, err := h.courses.CanAccess(ctx, actorFromContext(ctx), course)
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}
	if !allowed {
		h.web.redirect(w, r, "/cursos", noticeNoAccess)
		return
	}

	h.web.render(w, r, http.StatusOK, "aula.html", course.Name, struct {
		Course   types.Course
		VideoURL string
	}{
		Course:   course,
		VideoURL: videoURL(course.VideoRef),
	})
}

// videoURL turns a bare video id into an embeddable URL. Full URLs pass through.
func videoURL(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return "https://www.youtube.com/embed/" + ref
}
