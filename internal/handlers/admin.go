package handlers

import (
	"bytes"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/internal/services"
	"github.com/qenty/academy/types"
)

const (
	maxMultipartMemory = 8 << 20
	maxCoverBytes      = 5 << 20
	maxAdminBodyBytes  = maxCoverBytes + 1<<20
	formFieldCover     = "portada"
)

const (
	noticeCourseCreated   = "Curso creado."
	noticeCourseUpdated   = "Curso actualizado."
	noticeCourseDeleted   = "Curso eliminado."
	noticeCourseInvalid   = "Datos del curso inválidos. Revisa nombre y precio."
	noticeCourseHasOwners = "No se puede eliminar un curso que ya tiene alumnos."
	noticeCoverInvalid    = "La portada debe ser una imagen de hasta 5 MB."
	noticeStorageDisabled = "No hay almacenamiento configurado para portadas."
)

var (
	errUploadTooLarge = errors.New("uploaded file too large")
	errNotAnImage     = errors.New("upload is not an image")
)

// AdminHandler serves catalog management and the revenue report.
type AdminHandler struct {
	web     *Web
	courses *services.CourseService
	reports *services.ReportService
}

func NewAdminHandler(web *Web, courses *services.CourseService, reports *services.ReportService) *AdminHandler {
	return &AdminHandler{web: web, courses: courses, reports: reports}
}

// AdminRouter registers admin routes on the given router.
func AdminRouter(r chi.Router, web *Web, courses *services.CourseService, reports *services.ReportService) {
	handler := NewAdminHandler(web, courses, reports)

	r.Route("/admin", func(r chi.Router) {
		r.Use(Require(web, CapabilityAdmin))
		r.Get("/", handler.Panel)
		r.Post("/", handler.CreateCourse)
		r.Get("/borrar/{courseID}", handler.DeleteCourse)
		r.Get("/editar/{courseID}", handler.EditPage)
		r.Post("/editar/{courseID}", handler.UpdateCourse)
	})
}

// Panel lists the catalog and the revenue report.
func (h *AdminHandler) Panel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	courses, err := h.courses.List(ctx)
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}
	report, err := h.reports.Revenue(ctx)
	if err != nil {
		h.web.serverError(w, r, err)
		return
	}
	h.web.render(w, r, http.StatusOK, "admin.html", "Administración", struct {
		Courses []types.Course
		Report  types.RevenueReport
	}{
		Courses: courses,
		Report:  report,
	})
}

func (h *AdminHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	input, cover, notice := h.parseCourseRequest(w, r)
	if notice != "" {
		h.web.redirect(w, r, "/admin", notice)
		return
	}

	course, err := h.courses.Create(r.Context(), input, cover)
	if err != nil {
		h.handleWriteError(w, r, err, "/admin")
		return
	}
	h.web.logger.WithField("course_id", course.ID).Info("course created")
	h.web.redirect(w, r, "/admin", noticeCourseCreated)
}

func (h *AdminHandler) EditPage(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/admin", noticeCourseNotFound)
		return
	}
	course, err := h.courses.Get(r.Context(), courseID)
	if err != nil {
		h.handleWriteError(w, r, err, "/admin")
		return
	}
	h.web.render(w, r, http.StatusOK, "editar.html", "Editar curso", struct {
		Course types.Course
	}{
		Course: course,
	})
}

// UpdateCourse overwrites every editable field of the course.
func (h *AdminHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/admin", noticeCourseNotFound)
		return
	}
	input, cover, notice := h.parseCourseRequest(w, r)
	if notice != "" {
		h.web.redirect(w, r, "/admin/editar/"+chi.URLParam(r, "courseID"), notice)
		return
	}

	if _, err := h.courses.Update(r.Context(), courseID, input, cover); err != nil {
		h.handleWriteError(w, r, err, "/admin")
		return
	}
	h.web.redirect(w, r, "/admin", noticeCourseUpdated)
}

// DeleteCourse removes a course nobody owns.
func (h *AdminHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/admin", noticeCourseNotFound)
		return
	}
	if err := h.courses.Delete(r.Context(), courseID); err != nil {
		h.handleWriteError(w, r, err, "/admin")
		return
	}
	h.web.logger.WithField("course_id", courseID).Info("course deleted")
	h.web.redirect(w, r, "/admin", noticeCourseDeleted)
}

func (h *AdminHandler) handleWriteError(w http.ResponseWriter, r *http.Request, err error, target string) {
	switch {
	case errors.Is(err, services.ErrInvalidCourse):
		h.web.redirect(w, r, target, noticeCourseInvalid)
	case errors.Is(err, services.ErrNotFound):
		h.web.redirect(w, r, target, noticeCourseNotFound)
	case errors.Is(err, services.ErrCourseHasOwners):
		h.web.redirect(w, r, target, noticeCourseHasOwners)
	case errors.Is(err, services.ErrStorageDisabled):
		h.web.redirect(w, r, target, noticeStorageDisabled)
	default:
		h.web.logger.WithError(err).Error("course write failed")
		h.web.redirect(w, r, target, noticeUnexpected)
	}
}

// parseCourseRequest reads the course fields and the optional cover. A
// non-empty notice means the request must be rejected without writes.
func (h *AdminHandler) parseCourseRequest(w http.ResponseWriter, r *http.Request) (services.CourseInput, *services.Cover, string) {
	r.Body = http.MaxBytesReader(w, r.Body, maxAdminBodyBytes)
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		if !errors.Is(err, http.ErrNotMultipart) {
			return services.CourseInput{}, nil, noticeCoverInvalid
		}
		if err := r.ParseForm(); err != nil {
			return services.CourseInput{}, nil, noticeCourseInvalid
		}
	}

	input, err := parseCourseForm(r)
	if err != nil {
		return services.CourseInput{}, nil, noticeCourseInvalid
	}

	cover, err := parseCover(r)
	if err != nil {
		return services.CourseInput{}, nil, noticeCoverInvalid
	}
	return input, cover, ""
}

// parseCover returns nil when no file was chosen.
func parseCover(r *http.Request) (*services.Cover, error) {
	if r.MultipartForm == nil {
		return nil, nil
	}
	files := r.MultipartForm.File[formFieldCover]
	if len(files) == 0 || files[0].Size == 0 {
		return nil, nil
	}

	header := files[0]
	file, err := header.Open()
	if err != nil {
		return nil, err
	}
	data, err := readFileLimited(file, maxCoverBytes)
	_ = file.Close()
	if err != nil {
		return nil, err
	}

	contentType := http.DetectContentType(data)
	if !strings.HasPrefix(contentType, "image/") {
		return nil, errNotAnImage
	}
	return &services.Cover{
		Filename:    header.Filename,
		ContentType: contentType,
		Size:        int64(len(data)),
		Body:        bytes.NewReader(data),
	}, nil
}
