package user

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/escuela/core"
)

// Role is one of the closed set of roles a User can hold.
type Role string

// Roles
const (
	RoleAdmin     Role = "admin"
	RoleDocente   Role = "docente"   // teacher
	RoleAspirante Role = "aspirante" // applicant
	RoleAlumno    Role = "alumno"    // student
)

var (
	AllRoles = []Role{RoleAdmin, RoleDocente, RoleAspirante, RoleAlumno}

	// RegistrableRoles can be set through registration; alumnos only come from promotion.
	RegistrableRoles = []Role{RoleAdmin, RoleDocente, RoleAspirante}

	ErrInvalidRole = errors.New("invalid role")
)

// ParseRole maps a raw string onto a Role, rejecting anything outside the enumeration.
func ParseRole(s string) (Role, error) {
	r := Role(core.CleanString(s, true /* lower */))
	if !r.Valid() {
		return "", ErrInvalidRole
	}
	return r, nil
}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) Registrable() bool {
	for _, role := range RegistrableRoles {
		if r == role {
			return true
		}
	}
	return false
}

// Privileged roles may require an admin to register them.
func (r Role) Privileged() bool {
	return r == RoleAdmin || r == RoleDocente
}

func (r Role) String() string { return string(r) }

type User struct {
	ID                 int         `json:"id" db:"id"`
	Email              string      `json:"email" db:"email"`
	PasswordHash       []byte      `json:"-" db:"password_hash"`
	Nombre             string      `json:"nombre" db:"nombre"`
	ApellidoPaterno    string      `json:"apellido_paterno" db:"apellido_paterno"`
	ApellidoMaterno    string      `json:"apellido_materno" db:"apellido_materno"`
	Rol                Role        `json:"rol" db:"rol"`
	GrupoID            null.Int    `json:"grupo_id" db:"grupo_id"`
	Telefono           null.String `json:"telefono" db:"telefono"`
	Especialidad       null.String `json:"especialidad" db:"especialidad"`
	EscuelaProcedencia null.String `json:"escuela_procedencia" db:"escuela_procedencia"`
	IsActive           bool        `json:"is_active" db:"is_active"`
	CreatedAt          time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt          time.Time   `json:"updated_at" db:"updated_at"` // UTC
	LastLogin          null.Time   `json:"last_login" db:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// FullName composes the display name carried in tokens: nombre + apellidos.
func (u User) FullName() string {
	return core.JoinNonEmpty(u.Nombre, u.ApellidoPaterno, u.ApellidoMaterno)
}

func (u User) IsAdmin() bool     { return u.Rol == RoleAdmin }
func (u User) IsDocente() bool   { return u.Rol == RoleDocente }
func (u User) IsAspirante() bool { return u.Rol == RoleAspirante }
func (u User) IsAlumno() bool    { return u.Rol == RoleAlumno }

// NewUser contains information needed to register a new User.
type NewUser struct {
	Email              string `json:"email" validate:"required,email,max=254"`
	Password           string `json:"password" validate:"required"`
	Nombre             string `json:"nombre" validate:"required,max=100,alphanum_"`
	ApellidoPaterno    string `json:"apellido_paterno" validate:"omitempty,max=100,alphanum_"`
	ApellidoMaterno    string `json:"apellido_materno" validate:"omitempty,max=100,alphanum_"`
	Rol                string `json:"rol" validate:"required,registrable_role"`
	Telefono           string `json:"telefono" validate:"omitempty,max=20"`
	Especialidad       string `json:"especialidad" validate:"omitempty,max=100"`
	EscuelaProcedencia string `json:"escuela_procedencia" validate:"omitempty,max=150"`
}

func (nu *NewUser) Clean() {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.Nombre = core.CleanString(nu.Nombre)
	nu.ApellidoPaterno = core.CleanString(nu.ApellidoPaterno)
	nu.ApellidoMaterno = core.CleanString(nu.ApellidoMaterno)
	nu.Rol = core.CleanString(nu.Rol, true /* lower */)
	nu.Telefono = core.CleanString(nu.Telefono)
	nu.Especialidad = core.CleanString(nu.Especialidad)
	nu.EscuelaProcedencia = core.CleanString(nu.EscuelaProcedencia)
}

// UpdateUser defines what an admin may modify on an existing User.
// Roles are only changed through promotion.
type UpdateUser struct {
	Email              *string `json:"email" validate:"omitempty,email,max=254"`
	Nombre             *string `json:"nombre" validate:"omitempty,max=100,alphanum_"`
	ApellidoPaterno    *string `json:"apellido_paterno" validate:"omitempty,max=100,alphanum_"`
	ApellidoMaterno    *string `json:"apellido_materno" validate:"omitempty,max=100,alphanum_"`
	Telefono           *string `json:"telefono" validate:"omitempty,max=20"`
	Especialidad       *string `json:"especialidad" validate:"omitempty,max=100"`
	EscuelaProcedencia *string `json:"escuela_procedencia" validate:"omitempty,max=150"`
	IsActive           *bool   `json:"is_active"`
	Password           string  `json:"password"`
}

func (uu *UpdateUser) Clean() {
	clean := func(s *string, lower bool) {
		if s != nil {
			*s = core.CleanString(*s, lower)
		}
	}
	clean(uu.Email, true)
	clean(uu.Nombre, false)
	clean(uu.ApellidoPaterno, false)
	clean(uu.ApellidoMaterno, false)
	clean(uu.Telefono, false)
	clean(uu.Especialidad, false)
	clean(uu.EscuelaProcedencia, false)
}

func (uu UpdateUser) apply(usr *User) {
	if uu.Email != nil && *uu.Email != "" {
		usr.Email = *uu.Email
	}
	if uu.Nombre != nil && *uu.Nombre != "" {
		usr.Nombre = *uu.Nombre
	}
	if uu.ApellidoPaterno != nil {
		usr.ApellidoPaterno = *uu.ApellidoPaterno
	}
	if uu.ApellidoMaterno != nil {
		usr.ApellidoMaterno = *uu.ApellidoMaterno
	}
	if uu.Telefono != nil {
		usr.Telefono = nullString(*uu.Telefono)
	}
	if uu.Especialidad != nil {
		usr.Especialidad = nullString(*uu.Especialidad)
	}
	if uu.EscuelaProcedencia != nil {
		usr.EscuelaProcedencia = nullString(*uu.EscuelaProcedencia)
	}
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
}

// Promotion turns an aspirante into an alumno of a group.
type Promotion struct {
	GrupoID int `json:"grupo_id" validate:"required,min=1"`
}

type ResetUserPassword struct {
	Token    string `json:"token,omitempty" validate:"required"`
	UID      string `json:"uid,omitempty" validate:"required"`
	Password string `json:"password,omitempty" validate:"required"`
}

// OrderingFields are the fields users can be listed by.
var OrderingFields = []string{"id", "email", "nombre", "created_at"}

type QueryFilter struct {
	Search   string `query:"search"`
	Roles    []Role `query:"rol"`
	GrupoID  *int   `query:"grupo_id"`
	IsActive *bool  `query:"is_active"`
}

func (qf *QueryFilter) IsEmpty() bool {
	return qf.Search == "" && qf.Roles == nil && qf.GrupoID == nil && qf.IsActive == nil
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	roles := qf.Roles[:0]
	for _, r := range qf.Roles {
		if r, err := ParseRole(string(r)); err == nil {
			roles = append(roles, r)
		}
	}
	if len(roles) == 0 && len(qf.Roles) > 0 {
		// only unknown roles were requested: match nothing
		roles = []Role{""}
	}
	if len(roles) == 0 {
		roles = nil
	}
	qf.Roles = roles
}

// UnmarshalJSON keeps unknown roles out of the domain.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	role, err := ParseRole(s)
	if err != nil {
		return err
	}
	*r = role
	return nil
}

func nullString(s string) null.String {
	return null.NewString(s, s != "")
}
