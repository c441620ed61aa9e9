package auth

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/escuela/core"
	"github.com/trezcool/escuela/core/user"
)

// compared against when the email is unknown, so both failures cost one bcrypt comparison
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("escuela-dummy-password"), bcrypt.DefaultCost)

type (
	// UserStore is the part of the user service the Issuer depends on.
	UserStore interface {
		GetByEmail(ctx context.Context, email string) (user.User, error)
		SetLastLogin(ctx context.Context, usr user.User) error
	}

	// Session is what a successful login hands to the client.
	Session struct {
		Token string   `json:"token"`
		User  Identity `json:"user"`
	}

	Issuer struct {
		users  UserStore
		tokens *TokenManager
		logger core.Logger
	}
)

func NewIssuer(users UserStore, tokens *TokenManager, logger core.Logger) *Issuer {
	return &Issuer{users: users, tokens: tokens, logger: logger}
}

// Issue verifies the credentials and mints a token.
// Unknown emails, wrong passwords and inactive accounts all fail with ErrInvalidCredentials.
func (iss *Issuer) Issue(ctx context.Context, email, password string) (Session, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" || password == "" {
		return Session{}, ErrInvalidCredentials
	}

	usr, err := iss.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == user.ErrNotFound {
			_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
			return Session{}, ErrInvalidCredentials
		}
		return Session{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(password); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return Session{}, ErrInvalidCredentials
	}

	id := IdentityOf(usr)
	token, err := iss.tokens.Generate(id)
	if err != nil {
		return Session{}, errors.Wrap(err, "generating token")
	}

	if err = iss.users.SetLastLogin(ctx, usr); err != nil && iss.logger != nil {
		iss.logger.Warn("setting last login", errors.Wrap(err, "setting last login"), id)
	}
	return Session{Token: token, User: id}, nil
}
