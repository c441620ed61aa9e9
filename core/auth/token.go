// Package auth issues and verifies the identity tokens carried as bearer credentials.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
)

var (
	ErrInvalidCredentials    = errors.New("invalid credentials")
	ErrMissingToken          = errors.New("token required")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInsufficientRole      = errors.New("insufficient role")

	nowFunc = time.Now // mockable
)

// Identity is the user payload carried by a token and returned at login.
type Identity struct {
	ID     int       `json:"id"`
	Email  string    `json:"email"`
	Nombre string    `json:"nombre"`
	Rol    user.Role `json:"rol"`
}

func IdentityOf(usr user.User) Identity {
	return Identity{ID: usr.ID, Email: usr.Email, Nombre: usr.FullName(), Rol: usr.Rol}
}

// HasAnyRole reports whether the identity holds one of roles; an empty set allows every role.
func (id Identity) HasAnyRole(roles ...user.Role) bool {
	if len(roles) == 0 {
		return true
	}
	for _, r := range roles {
		if id.Rol == r {
			return true
		}
	}
	return false
}

// Claims represents the authorization claims transmitted via a JWT.
type Claims struct {
	Identity
	jwt.RegisteredClaims
}

// TokenManager signs and verifies HS256 identity tokens.
type TokenManager struct {
	key      []byte
	issuer   string
	lifetime time.Duration
}

func NewTokenManager(conf *core.Config) *TokenManager {
	return &TokenManager{
		key:      []byte(conf.SecretKey),
		issuer:   conf.AppName,
		lifetime: conf.JWTExpirationDelta,
	}
}

func (tm *TokenManager) Lifetime() time.Duration { return tm.lifetime }

// Generate signs a token for id, expiring exactly one lifetime after issuance.
func (tm *TokenManager) Generate(id Identity) (string, error) {
	now := nowFunc().UTC().Truncate(time.Second)
	claims := Claims{
		Identity: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tm.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(tm.lifetime)),
		},
	}
	ss, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(tm.key)
	if err != nil {
		return "", errors.Wrap(err, "signing token")
	}
	return ss, nil
}

// Verify checks the signature, algorithm and expiry of token and returns its claims.
// An empty token is ErrMissingToken; any other failure is ErrInvalidOrExpiredToken.
func (tm *TokenManager) Verify(token string) (Claims, error) {
	if token == "" {
		return Claims{}, ErrMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(
		token, &claims,
		func(*jwt.Token) (interface{}, error) { return tm.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithIssuer(tm.issuer),
		jwt.WithTimeFunc(nowFunc),
	)
	if err != nil {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	if !claims.Rol.Valid() || claims.Identity.ID <= 0 {
		return Claims{}, ErrInvalidOrExpiredToken
	}
	return claims, nil
}
