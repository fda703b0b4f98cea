package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/qenty/academy/config"
)

// SampleCourses fills an empty catalog on first boot.
var SampleCourses = []CourseInput{
	{Name: "Tarot Evolutivo", Price: 45000, Icon: "🔮", Description: "Aprende los Arcanos Mayores y Menores con enfoque terapéutico."},
	{Name: "Runas Nórdicas y Egipcias", Price: 38000, Icon: "ᚱ", Description: "Conecta con la sabiduría ancestral de los vikingos y faraones."},
	{Name: "Velomancia Aplicada", Price: 30000, Icon: "🕯️", Description: "El arte de interpretar la llama y los restos de las velas."},
	{Name: "Defensa Mágica", Price: 42000, Icon: "🛡️", Description: "Técnicas para proteger tu energía y limpiar espacios."},
	{Name: "Chamanismo Universal", Price: 55000, Icon: "🥁", Description: "Viajes de tambor, animales de poder y conexión natural."},
	{Name: "Oráculo Lenormand", Price: 35000, Icon: "🃏", Description: "Lectura predictiva precisa con el mazo de 36 cartas."},
}

// Seed creates the configured administrator if missing and the sample
// catalog if no course exists. Running it again changes nothing.
func Seed(ctx context.Context, users *UserService, courses *CourseService, admin config.AdminConfig, logger logrus.FieldLogger) error {
	if strings.TrimSpace(admin.Password) == "" {
		return ErrAdminPasswordRequired
	}
	created, err := users.EnsureAdmin(ctx, admin.Name, admin.Email, admin.Password)
	if err != nil {
		return fmt.Errorf("seed admin: %w", err)
	}
	if created {
		logger.WithField("email", admin.Email).Info("administrator account created")
	}

	existing, err := courses.Featured(ctx, 1)
	if err != nil {
		return fmt.Errorf("seed courses: %w", err)
	}
	if len(existing) > 0 {
		return nil
	}
	for _, input := range SampleCourses {
		if _, err := courses.Create(ctx, input, nil); err != nil {
			return fmt.Errorf("seed course %q: %w", input.Name, err)
		}
	}
	logger.WithField("count", len(SampleCourses)).Info("sample catalog created")
	return nil
}
