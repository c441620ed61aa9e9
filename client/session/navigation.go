package session

import (
	"strings"

	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/user"
)

// Screen names a client view. Role views are prefixed with the role owning them, e.g. "alumno/calificaciones".
type Screen string

const (
	ScreenLoading Screen = "loading"
	ScreenLogin   Screen = "login"

	ScreenAdminHome      Screen = "admin/inicio"
	ScreenAdminUsers     Screen = "admin/usuarios"
	ScreenAdminGroups    Screen = "admin/grupos"
	ScreenAdminCourses   Screen = "admin/cursos"
	ScreenAdminDocuments Screen = "admin/documentos"

	ScreenDocenteHome    Screen = "docente/inicio"
	ScreenDocenteCourses Screen = "docente/cursos"
	ScreenDocenteGrades  Screen = "docente/calificaciones"

	ScreenAspiranteHome      Screen = "aspirante/inicio"
	ScreenAspiranteDocuments Screen = "aspirante/documentos"

	ScreenAlumnoHome    Screen = "alumno/inicio"
	ScreenAlumnoCourses Screen = "alumno/cursos"
	ScreenAlumnoGrades  Screen = "alumno/calificaciones"
)

var homes = map[user.Role]Screen{
	user.RoleAdmin:     ScreenAdminHome,
	user.RoleDocente:   ScreenDocenteHome,
	user.RoleAspirante: ScreenAspiranteHome,
	user.RoleAlumno:    ScreenAlumnoHome,
}

// Screens lists every role view, keyed by its owning role.
func Screens() map[user.Role][]Screen {
	return map[user.Role][]Screen{
		user.RoleAdmin:     {ScreenAdminHome, ScreenAdminUsers, ScreenAdminGroups, ScreenAdminCourses, ScreenAdminDocuments},
		user.RoleDocente:   {ScreenDocenteHome, ScreenDocenteCourses, ScreenDocenteGrades},
		user.RoleAspirante: {ScreenAspiranteHome, ScreenAspiranteDocuments},
		user.RoleAlumno:    {ScreenAlumnoHome, ScreenAlumnoCourses, ScreenAlumnoGrades},
	}
}

// Home returns the landing screen of role.
func Home(role user.Role) (Screen, bool) {
	s, ok := homes[role]
	return s, ok
}

// Role returns the role owning the screen, or "" for shared screens such as login.
func (s Screen) Role() user.Role {
	prefix, _, found := strings.Cut(string(s), "/")
	if !found {
		return ""
	}
	return user.Role(prefix)
}

type sessionState interface {
	IsLoading() bool
	CurrentUser() (auth.Identity, bool)
}

// Resolve decides which screen to show when screen is requested in the current session state.
func Resolve(p sessionState, screen Screen) Screen {
	if p.IsLoading() {
		return ScreenLoading
	}
	usr, ok := p.CurrentUser()
	if !ok {
		return ScreenLogin
	}
	home, ok := Home(usr.Rol)
	if !ok {
		return ScreenLogin
	}
	if screen.Role() != usr.Rol || !known(usr.Rol, screen) {
		return home
	}
	return screen
}

func known(role user.Role, screen Screen) bool {
	for _, s := range Screens()[role] {
		if s == screen {
			return true
		}
	}
	return false
}
