package user_test

import (
	"context"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
	emailsvc "github.com/trezcool/escuela/services/email"
	inmemdb "github.com/trezcool/escuela/storage/database/inmem"
	testutil "github.com/trezcool/escuela/tests"
)

type fixture struct {
	db   *inmemdb.DB
	repo user.Repository
	svc  *user.Service
	conf *core.Config
}

func setup(t *testing.T) fixture {
	t.Helper()
	emailsvc.ResetSentMessages()
	conf := testutil.NewConfig()
	validate, _ := testutil.NewValidator()
	db := inmemdb.Open()
	repo := inmemdb.NewUserRepository(db)
	return fixture{
		db:   db,
		repo: repo,
		svc:  user.NewService(repo, emailsvc.NewConsoleServiceMock(conf), validate, conf),
		conf: conf,
	}
}

func newUser(email, rol string) user.NewUser {
	return user.NewUser{Email: email, Password: "Sup3rSecreto", Nombre: "Ana", ApellidoPaterno: "López", Rol: rol}
}

func TestService_Register(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	usr, err := f.svc.Register(ctx, newUser("  Ana@Escuela.MX ", "aspirante"))
	require.NoError(t, err)
	assert.Equal(t, "ana@escuela.mx", usr.Email)
	assert.Equal(t, user.RoleAspirante, usr.Rol)
	assert.True(t, usr.IsActive)
	assert.NoError(t, usr.CheckPassword("Sup3rSecreto"))

	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "welcome", sent[0].TemplateName)
	assert.Equal(t, "ana@escuela.mx", sent[0].To[0].Address)

	t.Run("duplicate email", func(t *testing.T) {
		_, err := f.svc.Register(ctx, newUser("ana@escuela.mx", "docente"))
		assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
	})

	invalid := []struct {
		name  string
		data  user.NewUser
		field string
	}{
		{name: "alumno is not registrable", data: newUser("b@x.com", "alumno"), field: "rol"},
		{name: "unknown role", data: newUser("b@x.com", "director"), field: "rol"},
		{name: "bad email", data: newUser("not-an-email", "aspirante"), field: "email"},
		{name: "short password", data: func() user.NewUser { nu := newUser("b@x.com", "aspirante"); nu.Password = "abc"; return nu }(), field: "password"},
		{name: "numeric password", data: func() user.NewUser { nu := newUser("b@x.com", "aspirante"); nu.Password = "12345678"; return nu }(), field: "password"},
		{name: "password like email", data: func() user.NewUser { nu := newUser("bertha@x.com", "aspirante"); nu.Password = "bertha@x.co"; return nu }(), field: "password"},
	}
	for _, tt := range invalid {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Register(ctx, tt.data)
			var verrs validator.ValidationErrors
			require.True(t, errors.As(err, &verrs), "want validation errors, got %v", err)
			assert.Equal(t, tt.field, verrs[0].Field())
		})
	}
}

func TestService_Register_restrictPrivileged(t *testing.T) {
	f := setup(t)
	f.conf.Registration.RestrictPrivileged = true
	ctx := context.Background()
	admin := testutil.CreateUser(t, f.repo, "Admin", "admin@x.com", "", user.RoleAdmin, true)
	aspirante := testutil.CreateUser(t, f.repo, "Asp", "asp@x.com", "", user.RoleAspirante, true)

	_, err := f.svc.Register(ctx, newUser("d1@x.com", "docente"))
	assert.Equal(t, user.ErrPrivilegedRole, err)

	_, err = f.svc.Register(ctx, newUser("d2@x.com", "docente"), aspirante)
	assert.Equal(t, user.ErrPrivilegedRole, err)

	_, err = f.svc.Register(ctx, newUser("d3@x.com", "docente"), admin)
	assert.NoError(t, err)

	_, err = f.svc.Register(ctx, newUser("a1@x.com", "aspirante"))
	assert.NoError(t, err)
}

func TestService_Promote(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	grp := testutil.CreateGroup(t, inmemdb.NewSchoolRepository(f.db), "1A")
	aspirante := testutil.CreateUser(t, f.repo, "Asp", "asp@x.com", "", user.RoleAspirante, true)
	docente := testutil.CreateUser(t, f.repo, "Doc", "doc@x.com", "", user.RoleDocente, true)

	_, err := f.svc.Promote(ctx, aspirante.ID, user.Promotion{GrupoID: 999})
	assert.Equal(t, user.ErrGroupNotFound, errors.Cause(err))

	usr, err := f.svc.Promote(ctx, aspirante.ID, user.Promotion{GrupoID: grp.ID})
	require.NoError(t, err)
	assert.Equal(t, user.RoleAlumno, usr.Rol)
	assert.Equal(t, grp.ID, usr.GrupoID.Int)
	assert.Equal(t, "promotion", emailsvc.SentMessages()[0].TemplateName)

	_, err = f.svc.Promote(ctx, aspirante.ID, user.Promotion{GrupoID: grp.ID})
	assert.Equal(t, user.ErrNotAspirante, err)
	_, err = f.svc.Promote(ctx, docente.ID, user.Promotion{GrupoID: grp.ID})
	assert.Equal(t, user.ErrNotAspirante, err)
	_, err = f.svc.Promote(ctx, 999, user.Promotion{GrupoID: grp.ID})
	assert.Equal(t, user.ErrNotFound, err)
}

func TestService_Query(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ana := testutil.CreateUser(t, f.repo, "Ana", "ana@x.com", "", user.RoleDocente, true)
	beto := testutil.CreateUser(t, f.repo, "Beto", "beto@x.com", "", user.RoleAspirante, true)
	caro := testutil.CreateUser(t, f.repo, "Carolina", "caro@x.com", "", user.RoleAspirante, false)
	bPtr := func(b bool) *bool { return &b }

	tests := []struct {
		name   string
		filter user.QueryFilter
		order  []core.DBOrdering
		want   []user.User
	}{
		{name: "all", want: []user.User{ana, beto, caro}},
		{name: "search", filter: user.QueryFilter{Search: " BET "}, want: []user.User{beto}},
		{name: "role", filter: user.QueryFilter{Roles: []user.Role{"aspirante"}}, want: []user.User{beto, caro}},
		{name: "unknown role", filter: user.QueryFilter{Roles: []user.Role{"director"}}, want: []user.User{}},
		{name: "inactive", filter: user.QueryFilter{IsActive: bPtr(false)}, want: []user.User{caro}},
		{name: "ordering", order: []core.DBOrdering{{Field: "nombre", Ascending: false}}, want: []user.User{caro, beto, ana}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.svc.Query(ctx, tt.filter, tt.order...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestService_Update(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ana := testutil.CreateUser(t, f.repo, "Ana", "ana@x.com", "", user.RoleDocente, true)
	testutil.CreateUser(t, f.repo, "Beto", "beto@x.com", "", user.RoleAspirante, true)
	sPtr := func(s string) *string { return &s }
	bPtr := func(b bool) *bool { return &b }

	usr, err := f.svc.Update(ctx, ana.ID, user.UpdateUser{Nombre: sPtr(" Ana María "), IsActive: bPtr(false), Telefono: sPtr("5551234")})
	require.NoError(t, err)
	assert.Equal(t, "Ana María", usr.Nombre)
	assert.False(t, usr.IsActive)
	assert.Equal(t, "5551234", usr.Telefono.String)
	assert.Equal(t, user.RoleDocente, usr.Rol)

	_, err = f.svc.Update(ctx, ana.ID, user.UpdateUser{Email: sPtr("BETO@x.com")})
	assert.Equal(t, user.ErrEmailExists, errors.Cause(err))
}

func TestService_PasswordReset(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	ana := testutil.CreateUser(t, f.repo, "Ana", "ana@x.com", "OldPassw0rd", user.RoleDocente, true)
	testutil.CreateUser(t, f.repo, "Off", "off@x.com", "OldPassw0rd", user.RoleDocente, false)

	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "nobody@x.com"))
	assert.Equal(t, user.ErrNotFound, f.svc.RequestPasswordReset(ctx, "off@x.com"))
	assert.Empty(t, emailsvc.SentMessages())

	require.NoError(t, f.svc.RequestPasswordReset(ctx, " ANA@x.com"))
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]string)

	err := f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: "bad-token", Password: "N3wPassword"})
	var verr *core.ValidationError
	require.True(t, errors.As(err, &verr))

	require.NoError(t, f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: data["Token"], Password: "N3wPassword"}))
	usr, err := f.svc.GetByID(ctx, ana.ID)
	require.NoError(t, err)
	assert.NoError(t, usr.CheckPassword("N3wPassword"))

	// tokens are single use: the password hash changed
	err = f.svc.ResetPassword(ctx, user.ResetUserPassword{UID: data["UID"], Token: data["Token"], Password: "An0therPassword"})
	assert.True(t, errors.As(err, &verr))
}
