package echoapi

import (
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/trezcool/escuela/core/auth"
	"github.com/trezcool/escuela/core/user"
)

const (
	contextIdentityKey = "escuela.identity"
	bearerScheme       = "bearer"
)

// gate reasons, as reported to metrics
const (
	reasonMissingToken     = "missing_token"
	reasonInvalidToken     = "invalid_token"
	reasonInsufficientRole = "insufficient_role"
)

// bearerToken extracts the credential of the Authorization header.
// A missing header or an empty Bearer credential is auth.ErrMissingToken; any other scheme is auth.ErrInvalidOrExpiredToken.
func bearerToken(ctx echo.Context) (string, error) {
	header := strings.TrimSpace(ctx.Request().Header.Get(echo.HeaderAuthorization))
	if header == "" {
		return "", auth.ErrMissingToken
	}
	scheme, token, _ := strings.Cut(header, " ")
	if !strings.EqualFold(scheme, bearerScheme) {
		return "", auth.ErrInvalidOrExpiredToken
	}
	if token = strings.TrimSpace(token); token == "" {
		return "", auth.ErrMissingToken
	}
	return token, nil
}

// gate authenticates the bearer token and, when roles is not empty, requires the token role to be one of them.
// It never touches the database: the identity is trusted until the token expires.
func (s *Server) gate(roles ...user.Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			token, err := bearerToken(ctx)
			if err != nil {
				if err == auth.ErrMissingToken {
					s.rejected(reasonMissingToken)
				} else {
					s.rejected(reasonInvalidToken)
				}
				return err
			}

			claims, err := s.deps.Tokens.Verify(token)
			if err != nil {
				s.rejected(reasonInvalidToken)
				return auth.ErrInvalidOrExpiredToken
			}
			if !claims.HasAnyRole(roles...) {
				s.rejected(reasonInsufficientRole)
				return auth.ErrInsufficientRole
			}

			ctx.Set(contextIdentityKey, claims.Identity)
			return next(ctx)
		}
	}
}

func (s *Server) rejected(reason string) {
	if s.deps.Metrics != nil {
		s.deps.Metrics.GateRejection(reason)
	}
}

// optionalIdentity verifies the bearer token if one is presented, for public routes behaving differently for admins.
func (s *Server) optionalIdentity(ctx echo.Context) (auth.Identity, bool) {
	token, err := bearerToken(ctx)
	if err != nil {
		return auth.Identity{}, false
	}
	claims, err := s.deps.Tokens.Verify(token)
	if err != nil {
		return auth.Identity{}, false
	}
	return claims.Identity, true
}

func contextIdentity(ctx echo.Context) (auth.Identity, bool) {
	id, ok := ctx.Get(contextIdentityKey).(auth.Identity)
	return id, ok
}

// mustIdentity is only called behind the gate.
func mustIdentity(ctx echo.Context) auth.Identity {
	id, _ := contextIdentity(ctx)
	return id
}
