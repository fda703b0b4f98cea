package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/qenty/academy/internal/services"
)

var validate = validator.New()

type RegisterForm struct {
	Name     string `form:"nombre" validate:"required,max=100"`
	Email    string `form:"email" validate:"required,email,max=254"`
	Password string `form:"password" validate:"required,max=72"`
}

type LoginForm struct {
	Email    string `form:"email" validate:"required"`
	Password string `form:"password" validate:"required"`
}

// CourseForm is the admin create/edit form. Price arrives as text and must
// parse as a non-negative integer.
type CourseForm struct {
	Name        string `form:"nombre" validate:"required,max=200"`
	Price       string `form:"precio" validate:"required,number"`
	Description string `form:"descripcion" validate:"max=2000"`
	Icon        string `form:"icono" validate:"max=32"`
	VideoRef    string `form:"video" validate:"max=500"`
}

func parseRegisterForm(r *http.Request) (RegisterForm, error) {
	form := RegisterForm{
		Name:     strings.TrimSpace(r.PostFormValue("nombre")),
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	return form, validate.Struct(form)
}

func parseLoginForm(r *http.Request) (LoginForm, error) {
	form := LoginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	return form, validate.Struct(form)
}

// parseCourseForm reads the text fields of an already parsed form.
func parseCourseForm(r *http.Request) (services.CourseInput, error) {
	form := CourseForm{
		Name:        strings.TrimSpace(r.FormValue("nombre")),
		Price:       strings.TrimSpace(r.FormValue("precio")),
		Description: strings.TrimSpace(r.FormValue("descripcion")),
		Icon:        strings.TrimSpace(r.FormValue("icono")),
		VideoRef:    strings.TrimSpace(r.FormValue("video")),
	}
	if err := validate.Struct(form); err != nil {
		return services.CourseInput{}, err
	}
	price, err := strconv.ParseInt(form.Price, 10, 64)
	if err != nil || price < 0 {
		return services.CourseInput{}, services.ErrInvalidCourse
	}
	return services.CourseInput{
		Name:        form.Name,
		Price:       price,
		Description: form.Description,
		Icon:        form.Icon,
		VideoRef:    form.VideoRef,
	}, nil
}
