package user

import (
	"context"
	"net/mail"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/escuela/core"
)

var (
	// errors
	ErrNotFound       = errors.New("user not found")
	ErrEmailExists    = errors.New("a user with this email already exists")
	ErrNotAspirante   = errors.New("only aspirantes can be promoted")
	ErrGroupNotFound  = errors.New("group not found")
	ErrPrivilegedRole = errors.New("an admin is required to register this role")

	nowFunc = time.Now // mockable
)

type (
	Repository interface {
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUserByID(ctx context.Context, id int) (User, error)
		GetUserByEmail(ctx context.Context, email string) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of nombre, apellidos or email.
		FilterUsers(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// UpdateUser saves all mutable fields; ErrEmailExists & ErrGroupNotFound on constraint violations.
		UpdateUser(ctx context.Context, usr User) (User, error)
		SetLastLogin(ctx context.Context, id int, t time.Time) error
	}

	Service struct {
		repo     Repository
		mailSvc  core.EmailService
		validate *validator.Validate
		conf     *core.Config
	}
)

func NewService(repo Repository, mailSvc core.EmailService, validate *validator.Validate, conf *core.Config) *Service {
	return &Service{repo: repo, mailSvc: mailSvc, validate: validate, conf: conf}
}

// Register validates & creates a new User, hashing the password right away.
// registrar is the identity registering the user, if any.
func (svc *Service) Register(ctx context.Context, nu NewUser, registrar ...User) (User, error) {
	nu.Clean()
	if err := svc.validate.Struct(nu); err != nil {
		return User{}, err
	}
	rol, err := ParseRole(nu.Rol)
	if err != nil {
		return User{}, core.NewFieldError("rol", registrableRoleText)
	}
	if svc.conf.Registration.RestrictPrivileged && rol.Privileged() {
		if len(registrar) == 0 || !registrar[0].IsAdmin() {
			return User{}, ErrPrivilegedRole
		}
	}

	now := nowFunc().UTC()
	usr := User{
		Email:              nu.Email,
		Nombre:             nu.Nombre,
		ApellidoPaterno:    nu.ApellidoPaterno,
		ApellidoMaterno:    nu.ApellidoMaterno,
		Rol:                rol,
		Telefono:           nullString(nu.Telefono),
		Especialidad:       nullString(nu.Especialidad),
		EscuelaProcedencia: nullString(nu.EscuelaProcedencia),
		IsActive:           true,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}

	usr, err = svc.repo.CreateUser(ctx, usr)
	if err != nil {
		if errors.Cause(err) == ErrEmailExists {
			return User{}, ErrEmailExists
		}
		return User{}, errors.Wrap(err, "creating user")
	}

	svc.sendMail(usr, "Bienvenido", "welcome", map[string]string{
		"Nombre": usr.Nombre,
		"Email":  usr.Email,
		"Rol":    usr.Rol.String(),
	})
	return usr, nil
}

func (svc *Service) GetByID(ctx context.Context, id int) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterUsers(ctx, filter, ordering...)
}

func (svc *Service) Update(ctx context.Context, id int, uu UpdateUser) (User, error) {
	uu.Clean()
	if err := svc.validate.Struct(uu); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	uu.apply(&usr)
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "hashing password")
		}
	}
	usr.UpdatedAt = nowFunc().UTC()
	return svc.repo.UpdateUser(ctx, usr)
}

// Promote turns an aspirante into an alumno assigned to grupoID.
// Tokens issued before the promotion keep the aspirante role until they expire.
func (svc *Service) Promote(ctx context.Context, id int, p Promotion) (User, error) {
	if err := svc.validate.Struct(p); err != nil {
		return User{}, err
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsAspirante() {
		return User{}, ErrNotAspirante
	}
	usr.Rol = RoleAlumno
	usr.GrupoID = null.IntFrom(p.GrupoID)
	usr.UpdatedAt = nowFunc().UTC()

	usr, err = svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, err
	}
	svc.sendMail(usr, "Inscripción confirmada", "promotion", map[string]string{
		"Nombre":  usr.Nombre,
		"GrupoID": strconv.Itoa(p.GrupoID),
	})
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) error {
	return svc.repo.SetLastLogin(ctx, usr.ID, nowFunc().UTC())
}

// RequestPasswordReset emails a password reset link; ErrNotFound for unknown or inactive users.
func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	token, err := MakeToken(usr, svc.conf.SecretKey)
	if err != nil {
		return errors.Wrap(err, "making reset token")
	}
	svc.sendMail(usr, "Restablecer contraseña", "password_reset", map[string]string{
		"Nombre": usr.Nombre,
		"UID":    EncodeUID(usr),
		"Token":  token,
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, data ResetUserPassword) error {
	if err := svc.validate.Struct(data); err != nil {
		return err
	}
	invalid := core.NewValidationError(errInvalidToken, core.FieldError{Field: "token", Error: errInvalidToken.Error()})

	id, err := decodeUID(data.UID)
	if err != nil {
		return invalid
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return invalid
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err := verifyToken(usr, data.Token, svc.conf.SecretKey, svc.conf.PasswordResetTimeoutDelta); err != nil {
		return core.NewValidationError(err, core.FieldError{Field: "token", Error: err.Error()})
	}
	if err := usr.SetPassword(data.Password); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	usr.UpdatedAt = nowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating password")
}

func (svc *Service) sendMail(usr User, subject, tmpl string, data interface{}) {
	if svc.mailSvc == nil {
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.FullName(), Address: usr.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}
