package testutil

import (
	"context"
	"net/mail"
	"testing"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/school"
	"github.com/trezcool/escuela/core/user"
)

// NewConfig returns the configuration used by tests.
func NewConfig() *core.Config {
	conf := &core.Config{
		AppName:                   "Escuela",
		Env:                       "TEST",
		TestMode:                  true,
		SecretKey:                 "test-secret",
		JWTExpirationDelta:        8 * time.Hour,
		PasswordResetTimeoutDelta: 3 * 24 * time.Hour,
		FrontendBaseURL:           "http://localhost:8080",
		DefaultFromEmail:          mail.Address{Name: "Escuela", Address: "no-reply@escuela.test"},
	}
	conf.Server.Address = ":0"
	conf.Storage.Driver = "local"
	conf.RateLimit.Login = "10-M"
	conf.RateLimit.Disabled = true
	return conf
}

// NewValidator returns a validator with every custom validation registered, and its translator.
func NewValidator() (*validator.Validate, ut.Translator) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	school.InitValidators(validate, translator)
	return validate, translator
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	nombre, email, pwd string,
	rol user.Role,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	t.Helper()
	tstamp := time.Now().UTC()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC()
	}
	usr := user.User{
		Nombre:    nombre,
		Email:     email,
		Rol:       rol,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

func CreateGroup(t *testing.T, repo school.Repository, nombre string) school.Group {
	t.Helper()
	grp, err := repo.CreateGroup(context.Background(), school.Group{Nombre: nombre, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("CreateGroup() failed: %v", err)
	}
	return grp
}

func CreateCourse(t *testing.T, repo school.Repository, nombre string, docenteID int) school.Course {
	t.Helper()
	now := time.Now().UTC()
	c := school.Course{Nombre: nombre, CreatedAt: now, UpdatedAt: now}
	if docenteID > 0 {
		c.DocenteID = null.IntFrom(docenteID)
	}
	c, err := repo.CreateCourse(context.Background(), c)
	if err != nil {
		t.Fatalf("CreateCourse() failed: %v", err)
	}
	return c
}

func Enroll(t *testing.T, repo school.Repository, alumnoID, cursoID int) {
	t.Helper()
	_, err := repo.Enroll(context.Background(), school.Enrollment{AlumnoID: alumnoID, CursoID: cursoID, CreatedAt: time.Now().UTC()})
	if err != nil {
		t.Fatalf("Enroll() failed: %v", err)
	}
}
