package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/trezcool/escuela/client/session"
	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/user"
)

var luis = auth.Identity{ID: 9, Email: "luis@x.com", Nombre: "Luis Pérez", Rol: user.RoleAlumno}

func newAPI(t *testing.T) *httptest.Server {
	e := echo.New()
	e.POST("/api/login", func(ctx echo.Context) error {
		var data struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := ctx.Bind(&data); err != nil {
			return err
		}
		if data.Email != luis.Email || data.Password != "secreta1" {
			return ctx.JSON(http.StatusUnauthorized, echo.Map{"message": "invalid credentials"})
		}
		return ctx.JSON(http.StatusOK, echo.Map{"message": "login successful", "token": "tok-9", "user": luis})
	})
	e.GET("/api/alumno/cursos", func(ctx echo.Context) error {
		if ctx.Request().Header.Get(echo.HeaderAuthorization) != "Bearer tok-9" {
			return ctx.JSON(http.StatusForbidden, echo.Map{"message": "token required"})
		}
		return ctx.JSON(http.StatusOK, []echo.Map{{"id": 1, "nombre": "Historia"}})
	})
	srv := httptest.NewServer(e)
	t.Cleanup(srv.Close)
	return srv
}

type runner struct {
	base []string
}

func (r runner) run(args ...string) (string, error) {
	var out bytes.Buffer
	cli := newCommandLine(&out, zap.NewNop())
	err := cli.run(context.Background(), append(append([]string{"escuela"}, args...), r.base...))
	return out.String(), err
}

func Test_commandLine(t *testing.T) {
	srv := newAPI(t)
	r := runner{base: []string{"--server", srv.URL, "--session", filepath.Join(t.TempDir(), "s.db")}}

	_, err := r.run()
	assert.Equal(t, errHelp, err)

	_, err = r.run("whoami")
	assert.Equal(t, errNotLoggedIn, err)

	out, err := r.run("home")
	require.NoError(t, err)
	assert.Equal(t, "login\n", out)

	_, err = r.run("login")
	assert.Equal(t, errHelp, err, "email is required")

	readPasswordFunc = func(int) ([]byte, error) { return []byte("nope"), nil }
	_, err = r.run("login", "--email", luis.Email)
	var apiErr *session.Error
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, "invalid credentials", apiErr.Message)

	readPasswordFunc = func(int) ([]byte, error) { return []byte("secreta1"), nil }
	out, err = r.run("login", "--email", luis.Email)
	require.NoError(t, err)
	assert.Contains(t, out, "logged in as luis@x.com (alumno)")

	// the session survives across processes
	out, err = r.run("whoami")
	require.NoError(t, err)
	assert.Equal(t, "9\tluis@x.com\tLuis Pérez\talumno\n", out)

	out, err = r.run("home")
	require.NoError(t, err)
	assert.Equal(t, "alumno/inicio\n", out)

	out, err = r.run("home", "admin/usuarios")
	require.NoError(t, err)
	assert.Equal(t, "alumno/inicio\n", out)

	out, err = r.run("home", "alumno/calificaciones")
	require.NoError(t, err)
	assert.Equal(t, "alumno/calificaciones\n", out)

	out, err = r.run("get", "api/alumno/cursos")
	require.NoError(t, err)
	assert.Contains(t, out, `"nombre": "Historia"`)

	out, err = r.run("logout")
	require.NoError(t, err)
	assert.Equal(t, "logged out\n", out)

	_, err = r.run("get", "/api/alumno/cursos")
	require.True(t, errors.As(err, &apiErr), "got %v", err)
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
	assert.Equal(t, "token required", apiErr.Message)

	out, err = r.run("home", "alumno/cursos")
	require.NoError(t, err)
	assert.Equal(t, "login\n", out)
}
