package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escuela/core/user"
	emailsvc "github.com/trezcool/escuela/services/email"
	inmemdb "github.com/trezcool/escuela/storage/database/inmem"
	testutil "github.com/trezcool/escuela/tests"
)

var (
	db      *inmemdb.DB
	usrRepo user.Repository
)

func setup(t *testing.T) *commandLine {
	// set up DB & repos
	db = inmemdb.Open()
	usrRepo = inmemdb.NewUserRepository(db)

	// set up services
	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()

	// start CLI
	return &commandLine{
		usrSvc: user.NewService(usrRepo, emailsvc.NewConsoleServiceMock(conf), validate, conf),
		out:    io.Discard,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		assert.Equal(t, tt.wantErr, errors.Cause(err))
	case tt.wantErrStr != "":
		if assert.Error(t, err) {
			assert.Contains(t, err.Error(), tt.wantErrStr)
		}
	default:
		assert.NoError(t, err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(int) ([]byte, error) { return []byte(pwd), nil }
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t)

	var ran []string
	gooseRunFunc = func(_ context.Context, _ *sqlx.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		ran = append(ran, command)
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), args))
		})
	}
	assert.Equal(t, []string{"up", "up-to", "down", "down-to", "redo", "status", "create"}, ran)
}

func Test_commandLine_root(t *testing.T) {
	cli := setup(t)
	var out bytes.Buffer
	cli.out = &out

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErrStr: "unknown command"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), append([]string{"admin"}, tt.args...)))
		})
	}
	assert.Contains(t, out.String(), "resetpassword")
}

func Test_commandLine_addUser(t *testing.T) {
	cli := setup(t)
	testutil.CreateUser(t, usrRepo, "Existente", "taken@x.com", "", user.RoleDocente, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no flags", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no password", args: []string{"adduser", "--email", "a@x.com", "--nombre", "Ana"}, wantErr: errHelp},
		{name: "taken email", args: []string{"adduser", "--email", "TAKEN@x.com", "--nombre", "Ana"}, extra: extra{pwd: "Admin2024!"}, wantErr: user.ErrEmailExists},
		{name: "alumno", args: []string{"adduser", "--email", "b@x.com", "--nombre", "Beto", "--rol", "alumno"}, extra: extra{pwd: "Admin2024!"}, wantErrStr: "registrable_role"},
		{name: "admin", args: []string{"adduser", "--email", "Root@x.com", "--nombre", "Root"}, extra: extra{pwd: "Admin2024!"}},
		{name: "docente", args: []string{"adduser", "--email", "doc@x.com", "--nombre", "Doc", "--rol", "docente"}, extra: extra{pwd: "Docente2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(pwd)
			tt.check(t, cli.run(context.Background(), append([]string{"admin"}, tt.args...)))
		})
	}

	root, err := usrRepo.GetUserByEmail(context.Background(), "root@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.RoleAdmin, root.Rol)
	assert.NoError(t, root.CheckPassword("Admin2024!"))
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli := setup(t)
	usr := testutil.CreateUser(t, usrRepo, "User", "awe@test.mx", "Vieja2024", user.RoleDocente, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "--email", "lol@x.com"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--email", "lol@x.com"}, extra: extra{pwd: "Nueva2024"}, wantErr: user.ErrNotFound},
		{name: "reset with email", args: []string{"resetpassword", "--email", " AWE@test.mx"}, extra: extra{pwd: "Nueva2024"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pwd := ""
			if e, ok := tt.extra.(extra); ok {
				pwd = e.pwd
			}
			mockPassword(pwd)

			err := cli.run(context.Background(), append([]string{"admin"}, tt.args...))
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := usrRepo.GetUserByID(context.Background(), usr.ID)
				require.NoError(t, err)
				assert.False(t, bytes.Equal(refreshedUsr.PasswordHash, usr.PasswordHash), "failed to update new password")
				assert.NoError(t, refreshedUsr.CheckPassword("Nueva2024"))
			}
		})
	}
}

func Test_commandLine_promote(t *testing.T) {
	cli := setup(t)
	asp := testutil.CreateUser(t, usrRepo, "Asp", "asp@x.com", "", user.RoleAspirante, true)
	grp := testutil.CreateGroup(t, inmemdb.NewSchoolRepository(db), "3C")

	tests := []cliTest{
		{name: "no args", args: []string{"promote"}, wantErr: errHelp},
		{name: "unknown group", args: []string{"promote", "--email", asp.Email, "--grupo", "99"}, wantErr: user.ErrGroupNotFound},
		{name: "promote", args: []string{"promote", "--email", asp.Email, "--grupo", strconv.Itoa(grp.ID)}},
		{name: "promote twice", args: []string{"promote", "--email", asp.Email, "--grupo", strconv.Itoa(grp.ID)}, wantErr: user.ErrNotAspirante},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(context.Background(), append([]string{"admin"}, tt.args...)))
		})
	}
}
