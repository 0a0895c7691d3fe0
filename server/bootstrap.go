package server

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/jrsteele09/go-edu-portal/internal/errors"
	"github.com/jrsteele09/go-edu-portal/programs"
	"github.com/jrsteele09/go-edu-portal/users"
	"github.com/rs/zerolog/log"
)

const (
	DefaultAdminFirstName = "Portal"
	DefaultAdminLastName  = "Administrator"
)

// samplePrograms is the catalogue a fresh data folder starts with.
var samplePrograms = []programs.Program{
	{
		Title:         "Web Development Bootcamp",
		Category:      "technology",
		Level:         programs.LevelBeginner,
		Summary:       "HTML, CSS and JavaScript from first principles to a deployed site.",
		DurationWeeks: 12,
	},
	{
		Title:         "Data Science Foundations",
		Category:      "technology",
		Level:         programs.LevelIntermediate,
		Summary:       "Statistics, Python and machine learning on real data sets.",
		DurationWeeks: 16,
	},
	{
		Title:         "Digital Marketing Essentials",
		Category:      "business",
		Level:         programs.LevelBeginner,
		Summary:       "Search, social and email campaigns with measurable results.",
		DurationWeeks: 8,
	},
	{
		Title:         "Project Management Professional",
		Category:      "business",
		Level:         programs.LevelAdvanced,
		Summary:       "Plan, run and close projects using predictive and agile methods.",
		DurationWeeks: 10,
	},
}

// InitialiseSystem makes sure an admin account and the sample catalogue exist.
// Returns the generated admin password on first creation (empty string if the admin
// already exists or ADMIN_PASSWORD is set)
func (s *Server) InitialiseSystem(ctx context.Context) (generatedPassword string, err error) {
	log.Info().Msg("🔧 Bootstrap: Checking system configuration...")

	generatedPassword, err = s.bootstrapAdmin(ctx, s.config.GetAdminEmail())
	if err != nil {
		return "", fmt.Errorf("failed to bootstrap admin: %w", err)
	}

	seeded, err := s.seedPrograms(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to seed programs: %w", err)
	}

	if generatedPassword != "" {
		log.Info().Msg("✅ Bootstrap complete: System initialized")
		log.Info().Msgf("   Base URL:    %s", s.config.GetBaseURL())
		log.Info().Msgf("   Admin Email: %s", s.config.GetAdminEmail())
		log.Info().Msgf("   Password:    %s", generatedPassword)
		log.Info().Msg("   ⚠️  SAVE THIS PASSWORD - it will not be displayed again!")
	} else {
		log.Info().Msgf("✅ Bootstrap: Admin present, %d programs seeded", seeded)
	}
	return generatedPassword, nil
}

func (s *Server) bootstrapAdmin(ctx context.Context, adminEmail string) (generatedPassword string, err error) {
	adminEmail = users.NormaliseEmail(adminEmail)
	if existing, err := s.repos.Users.GetByEmail(adminEmail); err == nil {
		if !existing.IsAdmin() {
			log.Warn().Str("email", adminEmail).Msg("admin email belongs to a regular account")
		}
		return "", nil
	}

	password := s.config.GetAdminPassword()
	if password == "" {
		if password, err = generatePassword(); err != nil {
			return "", err
		}
		generatedPassword = password
	}

	admin, err := users.NewUser(adminEmail, password, DefaultAdminFirstName, DefaultAdminLastName, users.RoleAdmin)
	if err != nil {
		return "", errors.Wrapf(err, "invalid admin account %s", adminEmail)
	}
	admin.DateJoined = s.nowFunc()

	if err := s.repos.Users.Create(admin); err != nil {
		return "", errors.Wrapf(err, "failed to create admin %s", adminEmail)
	}
	log.Info().Msgf("   ✅ Created admin: %s", admin.Email)
	return generatedPassword, nil
}

// seedPrograms adds the sample programs whose slugs are not in the catalogue yet.
func (s *Server) seedPrograms(ctx context.Context) (int, error) {
	seeded := 0
	for _, sample := range samplePrograms {
		p := sample
		p.Slug = programs.Slugify(p.Title)
		if _, err := s.repos.Programs.GetBySlug(p.Slug); err == nil {
			continue
		} else if !errors.Is(err, errors.ErrNotFound) {
			return seeded, err
		}
		p.Published = true
		p.CreatedAt = s.nowFunc()
		if err := s.repos.Programs.Upsert(&p); err != nil {
			return seeded, errors.Wrapf(err, "failed to seed program %s", p.Slug)
		}
		seeded++
	}
	return seeded, nil
}

// generatePassword returns a random password that passes users.ValidatePasswordStrength.
func generatePassword() (string, error) {
	passwordBytes := make([]byte, 16)
	if _, err := rand.Read(passwordBytes); err != nil {
		return "", fmt.Errorf("failed to generate password: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(passwordBytes) + "-Aa1", nil
}
