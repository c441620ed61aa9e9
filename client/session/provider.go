// Package session holds the client side of authentication: the persisted token/user pair,
// the requests that carry it and the role based screen routing built on top of it.
package session

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"

	"github.com/trezcool/escuela/core/auth"
)

const loginPath = "/api/login"

// Provider is the single session owner of a client process.
type Provider struct {
	client *resty.Client
	store  Store

	mu    sync.RWMutex
	token string
	user  *auth.Identity
	gen   uint64 // bumped by every login and logout

	loading   atomic.Bool
	busy      atomic.Bool
	ready     chan struct{}
	readyOnce sync.Once
}

// New wires the provider onto client; it reports IsLoading until Restore returns.
func New(client *resty.Client, store Store) *Provider {
	p := &Provider{
		client: client,
		store:  store,
		ready:  make(chan struct{}),
	}
	p.loading.Store(true)
	client.OnAfterResponse(p.expireOnUnauthorized)
	return p
}

func (p *Provider) CurrentUser() (auth.Identity, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return auth.Identity{}, false
	}
	return *p.user, true
}

func (p *Provider) IsLoading() bool {
	return p.loading.Load()
}

// Ready is closed once the first Restore has finished.
func (p *Provider) Ready() <-chan struct{} {
	return p.ready
}

// Restore loads the persisted pair into memory.
func (p *Provider) Restore(ctx context.Context) error {
	defer p.readyOnce.Do(func() {
		p.loading.Store(false)
		close(p.ready)
	})

	p.mu.RLock()
	gen := p.gen
	p.mu.RUnlock()

	token, usr, ok, err := p.store.Load(ctx)
	if err != nil {
		return errors.Wrap(err, "restoring session")
	}
	if !ok {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	// a login or logout finished while loading: its state is newer than the stored pair we read
	if p.gen == gen {
		p.token, p.user = token, &usr
	}
	return nil
}

type (
	loginRequest struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}

	loginResponse struct {
		Message string        `json:"message"`
		Token   string        `json:"token"`
		User    auth.Identity `json:"user"`
	}
)

// Login exchanges credentials for a token. On failure the current session is left untouched.
func (p *Provider) Login(ctx context.Context, email, password string) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer p.busy.Store(false)

	var (
		result  loginResponse
		errBody errorBody
	)
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(loginRequest{Email: email, Password: password}).
		SetResult(&result).
		SetError(&errBody).
		Post(loginPath)
	if err != nil {
		return errors.Wrap(err, "sending login request")
	}
	if resp.IsError() {
		return &Error{Status: resp.StatusCode(), Message: errBody.Message, Fields: errBody.Errors}
	}
	if result.Token == "" {
		return errors.New("login response carries no token")
	}

	if err := p.store.Save(ctx, result.Token, result.User); err != nil {
		return err
	}
	p.set(result.Token, &result.User)
	return nil
}

// Logout forgets the session, both stored and in memory. It is safe without a session.
func (p *Provider) Logout(ctx context.Context) error {
	if !p.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer p.busy.Store(false)
	return p.clear(ctx)
}

// AuthorizedRequest returns a request that carries the bearer token when a session exists.
func (p *Provider) AuthorizedRequest(ctx context.Context) *resty.Request {
	req := p.client.R().SetContext(ctx)

	p.mu.RLock()
	token := p.token
	p.mu.RUnlock()

	if token != "" {
		req.SetAuthToken(token)
	}
	return req
}

// expireOnUnauthorized drops the session when the server rejects the token it was sent with.
func (p *Provider) expireOnUnauthorized(_ *resty.Client, resp *resty.Response) error {
	if resp.StatusCode() != http.StatusUnauthorized || resp.Request == nil || resp.Request.Token == "" {
		return nil
	}

	p.mu.RLock()
	current := p.token
	p.mu.RUnlock()

	if current == resp.Request.Token {
		if err := p.clear(resp.Request.Context()); err != nil {
			return err
		}
	}
	return ErrSessionExpired
}

func (p *Provider) set(token string, usr *auth.Identity) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.token = token
	p.user = usr
	p.gen++
}

func (p *Provider) clear(ctx context.Context) error {
	if err := p.store.Clear(ctx); err != nil {
		return err
	}
	p.set("", nil)
	return nil
}
