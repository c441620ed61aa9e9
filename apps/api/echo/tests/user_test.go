package tests

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/escuela/apps/api/echo"
	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/user"
	emailsvc "github.com/trezcool/escuela/services/email"
	testutil "github.com/trezcool/escuela/tests"
)

func loginToken(t *testing.T, email, pwd string) LoginResponse {
	t.Helper()
	rec := do(http.MethodPost, "/api/login", "", marchallObj(t, LoginRequest{Email: email, Password: pwd}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp LoginResponse
	unmarshal(t, rec, &resp)
	return resp
}

func Test_userApi_registerThenLogin(t *testing.T) {
	resetDB(t)
	nu := user.NewUser{
		Email:              "Aspirante@Escuela.mx",
		Password:           "Contrasena2024",
		Nombre:             "Luis",
		ApellidoPaterno:    "Pérez",
		Rol:                "aspirante",
		EscuelaProcedencia: "Secundaria 12",
	}

	rec := do(http.MethodPost, "/api/register", "", marchallObj(t, nu))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created user.User
	unmarshal(t, rec, &created)
	assert.Equal(t, "aspirante@escuela.mx", created.Email)
	assert.Equal(t, user.RoleAspirante, created.Rol)
	assert.NotContains(t, rec.Body.String(), "password")
	assert.Len(t, emailsvc.SentMessages(), 1)

	resp := loginToken(t, "aspirante@escuela.mx", nu.Password)
	assert.Equal(t, auth.Identity{ID: created.ID, Email: created.Email, Nombre: "Luis Pérez", Rol: user.RoleAspirante}, resp.User)

	// same email, any case
	nu.Email = "ASPIRANTE@escuela.mx"
	rec = do(http.MethodPost, "/api/register", "", marchallObj(t, nu))
	checkCodeAndData(t, httpTest{
		wantCode: http.StatusConflict,
		wantData: marchallObj(t, httpErr{Message: "a user with this email already exists"}),
	}, rec)

	runHTTPTests(t, []httpTest{
		{
			name:     "alumno cannot register",
			method:   http.MethodPost,
			path:     "/api/register",
			body:     []byte(`{"email":"a@x.com","password":"Contrasena2024","nombre":"A","rol":"alumno"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "unknown role",
			method:   http.MethodPost,
			path:     "/api/register",
			body:     []byte(`{"email":"a@x.com","password":"Contrasena2024","nombre":"A","rol":"director"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name:     "weak password",
			method:   http.MethodPost,
			path:     "/api/register",
			body:     []byte(`{"email":"a@x.com","password":"123456789","nombre":"A","rol":"aspirante"}`),
			wantCode: http.StatusBadRequest,
		},
	})
}

func Test_userApi_promotionStaleness(t *testing.T) {
	resetDB(t)
	pwd := "Contrasena2024"
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@x.com", pwd, user.RoleAdmin, true)
	asp := testutil.CreateUser(t, usrRepo, "Asp", "asp@x.com", pwd, user.RoleAspirante, true)
	grp := testutil.CreateGroup(t, schRepo, "1A")
	adminToken := getToken(t, admin)

	oldToken := loginToken(t, asp.Email, pwd).Token

	rec := do(http.MethodPost, "/api/usuarios/"+itoa(asp.ID)+"/promover", adminToken, marchallObj(t, user.Promotion{GrupoID: grp.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var promoted user.User
	unmarshal(t, rec, &promoted)
	assert.Equal(t, user.RoleAlumno, promoted.Rol)

	// the old token keeps its role until it expires
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/aspirante/documentos", oldToken).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/alumno/cursos", oldToken).Code)

	newToken := loginToken(t, asp.Email, pwd).Token
	assert.Equal(t, http.StatusOK, do(http.MethodGet, "/api/alumno/cursos", newToken).Code)
	assert.Equal(t, http.StatusForbidden, do(http.MethodGet, "/api/aspirante/documentos", newToken).Code)

	runHTTPTests(t, []httpTest{
		{
			name:     "already promoted",
			method:   http.MethodPost,
			path:     "/api/usuarios/" + itoa(asp.ID) + "/promover",
			body:     marchallObj(t, user.Promotion{GrupoID: grp.ID}),
			token:    adminToken,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{Message: user.ErrNotAspirante.Error()}),
		},
		{
			name:     "unknown user",
			method:   http.MethodPost,
			path:     "/api/usuarios/999/promover",
			body:     marchallObj(t, user.Promotion{GrupoID: grp.ID}),
			token:    adminToken,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, httpErr{Message: user.ErrNotFound.Error()}),
		},
	})
}

func Test_userApi_docenteVsAdmin(t *testing.T) {
	resetDB(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@x.com", "", user.RoleAdmin, true)
	docente := testutil.CreateUser(t, usrRepo, "Doc", "doc@x.com", "", user.RoleDocente, true)

	runHTTPTests(t, []httpTest{
		{
			name:     "docente lists users",
			method:   http.MethodGet,
			path:     "/api/usuarios",
			token:    getToken(t, docente),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errInsufficientRole),
		},
		{
			name:     "admin lists users",
			method:   http.MethodGet,
			path:     "/api/usuarios",
			token:    getToken(t, admin),
			wantCode: http.StatusOK,
			wantData: marchallList(t, admin, docente),
		},
		{
			name:     "docente lists groups",
			method:   http.MethodGet,
			path:     "/api/grupos",
			token:    getToken(t, docente),
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
		{
			name:     "docente creates a group",
			method:   http.MethodPost,
			path:     "/api/grupos",
			body:     []byte(`{"nombre":"2B"}`),
			token:    getToken(t, docente),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errInsufficientRole),
		},
	})
}

func Test_userApi_userQuery(t *testing.T) {
	resetDB(t)
	path := func(search, ordering string, roles ...string) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		for _, r := range roles {
			v.Add("rol", r)
		}
		return "/api/usuarios?" + v.Encode()
	}

	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@x.com", "", user.RoleAdmin, true)
	beto := testutil.CreateUser(t, usrRepo, "Beto", "beto@x.com", "", user.RoleAspirante, true)
	carla := testutil.CreateUser(t, usrRepo, "Carla", "carla@x.com", "", user.RoleDocente, true)
	dani := testutil.CreateUser(t, usrRepo, "Dani", "dani@x.com", "", user.RoleAspirante, false)
	token := getToken(t, admin)

	tests := []httpTest{
		{name: "all", path: path("", ""), wantData: marchallList(t, admin, beto, carla, dani)},
		{name: "search", path: path("CARL", ""), wantData: marchallList(t, carla)},
		{name: "search email", path: path("dani@", ""), wantData: marchallList(t, dani)},
		{name: "role", path: path("", "", "aspirante"), wantData: marchallList(t, beto, dani)},
		{name: "roles", path: path("", "", "aspirante", "docente"), wantData: marchallList(t, beto, carla, dani)},
		{name: "unknown role", path: path("", "", "director"), wantData: marchallList(t)},
		{name: "ordering", path: path("", "-nombre"), wantData: marchallList(t, dani, carla, beto, admin)},
		{name: "search and role", path: path("b", "", "aspirante"), wantData: marchallList(t, beto)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(http.MethodGet, tt.path, token)
			tt.wantCode = http.StatusOK
			checkCodeAndData(t, tt, rec)
			if tt.name == "ordering" {
				var got []user.User
				unmarshal(t, rec, &got)
				require.Len(t, got, 4)
				assert.Equal(t, dani.ID, got[0].ID)
			}
		})
	}

	rec := do(http.MethodGet, path("", "password_hash"), token)
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	var body httpErr
	unmarshal(t, rec, &body)
	assert.Contains(t, body.Errors, "ordering")
}

func Test_userApi_retrieveAndUpdate(t *testing.T) {
	resetDB(t)
	admin := testutil.CreateUser(t, usrRepo, "Admin", "admin@x.com", "", user.RoleAdmin, true)
	doc := testutil.CreateUser(t, usrRepo, "Doc", "doc@x.com", "", user.RoleDocente, true)
	token := getToken(t, admin)

	runHTTPTests(t, []httpTest{
		{name: "retrieve", method: http.MethodGet, path: "/api/usuarios/" + itoa(doc.ID), token: token, wantCode: http.StatusOK, wantData: marchallObj(t, doc)},
		{name: "retrieve unknown", method: http.MethodGet, path: "/api/usuarios/999", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Message: user.ErrNotFound.Error()})},
		{name: "retrieve bad id", method: http.MethodGet, path: "/api/usuarios/abc", token: token, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name:     "deactivate self",
			method:   http.MethodPut,
			path:     "/api/usuarios/" + itoa(admin.ID),
			body:     []byte(`{"is_active":false}`),
			token:    token,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, httpErr{
				Message: "you cannot deactivate your own account",
				Errors:  map[string]string{"is_active": "you cannot deactivate your own account"},
			}),
		},
		{
			name:     "duplicate email",
			method:   http.MethodPut,
			path:     "/api/usuarios/" + itoa(doc.ID),
			body:     []byte(`{"email":"ADMIN@x.com"}`),
			token:    token,
			wantCode: http.StatusConflict,
		},
	})

	rec := do(http.MethodPut, "/api/usuarios/"+itoa(doc.ID), token, []byte(`{"especialidad":"Matemáticas","is_active":false,"rol":"admin"}`))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var updated user.User
	unmarshal(t, rec, &updated)
	assert.Equal(t, "Matemáticas", updated.Especialidad.String)
	assert.False(t, updated.IsActive)
	assert.Equal(t, user.RoleDocente, updated.Rol)
}

func Test_userApi_profile(t *testing.T) {
	resetDB(t)
	alu := testutil.CreateUser(t, usrRepo, "Alu", "alu@x.com", "", user.RoleAlumno, true)

	runHTTPTests(t, []httpTest{
		{name: "own profile", method: http.MethodGet, path: "/api/perfil", token: getToken(t, alu), wantCode: http.StatusOK, wantData: marchallObj(t, alu)},
	})
}

func Test_userApi_passwordReset(t *testing.T) {
	resetDB(t)
	usr := testutil.CreateUser(t, usrRepo, "Ana", "ana@x.com", "Viej4Contrasena", user.RoleDocente, true)
	ok := marchallObj(t, MessageResponse{Message: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	runHTTPTests(t, []httpTest{
		{name: "unknown email", method: http.MethodPost, path: "/api/password-reset", body: []byte(`{"email":"nobody@x.com"}`), wantCode: http.StatusOK, wantData: ok},
		{name: "bad email", method: http.MethodPost, path: "/api/password-reset", body: []byte(`{"email":"nobody"}`), wantCode: http.StatusBadRequest},
	})
	assert.Empty(t, emailsvc.SentMessages())

	rec := do(http.MethodPost, "/api/password-reset", "", []byte(`{"email":"Ana@x.com"}`))
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: ok}, rec)
	sent := emailsvc.SentMessages()
	require.Len(t, sent, 1)
	data := sent[0].TemplateData.(map[string]string)

	reset := func(token, pwd string) []byte {
		return marchallObj(t, user.ResetUserPassword{UID: data["UID"], Token: token, Password: pwd})
	}
	rec = do(http.MethodPost, "/api/password-reset-confirm", "", reset("1a-bad", "Nuev4Contrasena"))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(http.MethodPost, "/api/password-reset-confirm", "", reset(data["Token"], "Nuev4Contrasena"))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	resp := loginToken(t, usr.Email, "Nuev4Contrasena")
	assert.Equal(t, usr.ID, resp.User.ID)
}
