package echoapi

import (
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/user"
	metricsvc "github.com/trezcool/escuela/services/metrics"
)

const loginPath = "/api/login"

var passwordResetRequestedMsg = "If the email address supplied is associated with an active account on this system, " +
	"an email will arrive in your inbox shortly with instructions to reset your password."

func (s *Server) registerUserAPI(g *echo.Group) {
	// un-authed endpoints
	g.POST("/login", s.login, s.rateLimit())
	g.POST("/register", s.register, s.rateLimit())
	g.POST("/password-reset", s.resetPassword, s.rateLimit())
	g.POST("/password-reset-confirm", s.confirmPasswordReset, s.rateLimit())

	// authed endpoints
	g.GET("/perfil", s.profile, s.gate())

	ug := g.Group("/usuarios", s.gate(user.RoleAdmin))
	ug.GET("", s.queryUsers)
	ug.GET("/:id", s.retrieveUser)
	ug.PUT("/:id", s.updateUser)
	ug.POST("/:id/promover", s.promoteUser)
}

// Handlers

func (s *Server) login(ctx echo.Context) error {
	var data LoginRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to LoginRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	sess, err := s.deps.Issuer.Issue(ctx.Request().Context(), data.Email, data.Password)
	if err != nil {
		if errors.Cause(err) == auth.ErrInvalidCredentials {
			s.loginAttempt(metricsvc.LoginInvalid)
			return auth.ErrInvalidCredentials
		}
		s.loginAttempt(metricsvc.LoginError)
		return errors.Wrap(err, "issuing token")
	}
	s.loginAttempt(metricsvc.LoginSuccess)

	return ctx.JSON(http.StatusOK, LoginResponse{Message: "login successful", Token: sess.Token, User: sess.User})
}

func (s *Server) register(ctx echo.Context) error {
	var data user.NewUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewUser")
	}

	var registrar []user.User
	if id, ok := s.optionalIdentity(ctx); ok {
		registrar = append(registrar, user.User{ID: id.ID, Email: id.Email, Rol: id.Rol})
	}
	usr, err := s.deps.UserSvc.Register(ctx.Request().Context(), data, registrar...)
	if err != nil {
		return errors.Wrap(err, "registering user")
	}
	return ctx.JSON(http.StatusCreated, usr)
}

func (s *Server) resetPassword(ctx echo.Context) error {
	var data PasswordResetRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to PasswordResetRequest")
	}
	if err := data.Validate(s.deps.Validate); err != nil {
		return err
	}

	if err := s.deps.UserSvc.RequestPasswordReset(ctx.Request().Context(), data.Email); !(err == nil || errors.Cause(err) == user.ErrNotFound) {
		// do not return errors to attackers
		s.deps.Logger.Error("requesting password reset", errors.Wrap(err, "requesting password reset"))
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: passwordResetRequestedMsg})
}

func (s *Server) confirmPasswordReset(ctx echo.Context) error {
	var data user.ResetUserPassword
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to ResetUserPassword")
	}
	if err := s.deps.UserSvc.ResetPassword(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "resetting password")
	}
	return ctx.JSON(http.StatusOK, MessageResponse{Message: "password has been reset"})
}

func (s *Server) profile(ctx echo.Context) error {
	id := mustIdentity(ctx)
	usr, err := s.deps.UserSvc.GetByID(ctx.Request().Context(), id.ID)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) queryUsers(ctx echo.Context) error {
	filter := new(user.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []user.User{})
	}
	ordering, err := bindOrdering(ctx, user.OrderingFields)
	if err != nil {
		return err
	}

	users, err := s.deps.UserSvc.Query(ctx.Request().Context(), *filter, ordering...)
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	if users == nil {
		users = []user.User{}
	}
	return ctx.JSON(http.StatusOK, users)
}

func (s *Server) retrieveUser(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	usr, err := s.deps.UserSvc.GetByID(ctx.Request().Context(), id)
	if err != nil {
		return errors.Wrap(err, "finding user by ID")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) updateUser(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data user.UpdateUser
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateUser")
	}

	// Say No to Suicide! admins cannot deactivate themselves
	if data.IsActive != nil && !*data.IsActive && id == mustIdentity(ctx).ID {
		return core.NewFieldError("is_active", "you cannot deactivate your own account")
	}

	usr, err := s.deps.UserSvc.Update(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "updating user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

func (s *Server) promoteUser(ctx echo.Context) error {
	id, err := pathID(ctx)
	if err != nil {
		return err
	}
	var data user.Promotion
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to Promotion")
	}
	usr, err := s.deps.UserSvc.Promote(ctx.Request().Context(), id, data)
	if err != nil {
		return errors.Wrap(err, "promoting user")
	}
	return ctx.JSON(http.StatusOK, usr)
}

// pathID parses the :id path param; non numeric ids are simply not found.
func pathID(ctx echo.Context) (int, error) {
	id, err := strconv.Atoi(ctx.Param("id"))
	if err != nil || id <= 0 {
		return 0, errHttpNotFound
	}
	return id, nil
}

type (
	LoginRequest struct {
		Email    string `json:"email" validate:"required"`
		Password string `json:"password" validate:"required"`
	}

	LoginResponse struct {
		Message string        `json:"message"`
		Token   string        `json:"token"`
		User    auth.Identity `json:"user"`
	}

	PasswordResetRequest struct {
		Email string `json:"email" validate:"required,email"`
	}

	MessageResponse struct {
		Message string `json:"message"`
	}
)

func (lr *LoginRequest) Validate(validate *validator.Validate) error {
	lr.Email = core.CleanString(lr.Email, true /* lower */)
	return validate.Struct(lr)
}

func (pr *PasswordResetRequest) Validate(validate *validator.Validate) error {
	pr.Email = core.CleanString(pr.Email, true /* lower */)
	return validate.Struct(pr)
}
