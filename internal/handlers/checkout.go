package handlers

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/qenty/academy/internal/services"
)

const (
	noticeAlreadyOwned     = "Ya tienes este curso."
	noticePaymentError     = "No pudimos iniciar el pago. Intenta de nuevo más tarde."
	noticePaymentFailed    = "El pago no se completó. Puedes intentarlo nuevamente."
	noticePaymentPending   = "Tu pago está pendiente de aprobación. Te avisaremos cuando se acredite."
	noticePurchaseComplete = "¡Pago aprobado! Ya puedes acceder a "
)

// CheckoutHandler starts purchases and receives the processor redirects.
type CheckoutHandler struct {
	web      *Web
	checkout *services.CheckoutService
}

func NewCheckoutHandler(web *Web, checkout *services.CheckoutService) *CheckoutHandler {
	return &CheckoutHandler{web: web, checkout: checkout}
}

// CheckoutRouter registers purchase routes on the given router.
func CheckoutRouter(r chi.Router, web *Web, checkout *services.CheckoutService) {
	handler := NewCheckoutHandler(web, checkout)

	r.Group(func(r chi.Router) {
		r.Use(Require(web, CapabilityAuthenticated))
		r.Get("/comprar/{courseID}", handler.Buy)
		r.Get("/pago-exitoso/{courseID}", handler.Approved)
		r.Get("/pago-fallido/{courseID}", handler.Failed)
		r.Get("/pago-pendiente/{courseID}", handler.Pending)
	})
}

// Buy sends the learner to the processor's hosted checkout.
func (h *CheckoutHandler) Buy(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
		return
	}

	result, err := h.checkout.Start(r.Context(), actorFromContext(r.Context()), courseID)
	switch {
	case err == nil:
	case errors.Is(err, services.ErrNotFound):
		h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
		return
	case errors.Is(err, services.ErrPaymentProcessor):
		h.web.logger.WithError(err).WithField("course_id", courseID).Error("checkout session failed")
		h.web.redirect(w, r, "/cursos", noticePaymentError)
		return
	default:
		h.web.serverError(w, r, err)
		return
	}

	if result.AlreadyOwned {
		h.web.redirect(w, r, "/mis-cursos", noticeAlreadyOwned)
		return
	}
	http.Redirect(w, r, result.RedirectURL, http.StatusSeeOther)
}

// Approved grants the course. The processor redirect is trusted as is.
func (h *CheckoutHandler) Approved(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseCourseID(r)
	if err != nil {
		h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
		return
	}

	confirmation, err := h.checkout.Confirm(r.Context(), actorFromContext(r.Context()), courseID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			h.web.redirect(w, r, "/cursos", noticeCourseNotFound)
			return
		}
		h.web.serverError(w, r, err)
		return
	}

	notice := noticeAlreadyOwned
	if confirmation.Granted {
		notice = noticePurchaseComplete + confirmation.Course.Name + "."
	}
	h.web.redirect(w, r, "/mis-cursos", notice)
}

func (h *CheckoutHandler) Failed(w http.ResponseWriter, r *http.Request) {
	h.web.redirect(w, r, "/cursos", noticePaymentFailed)
}

func (h *CheckoutHandler) Pending(w http.ResponseWriter, r *http.Request) {
	h.web.redirect(w, r, "/mis-cursos", noticePaymentPending)
}
