package sessions

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/transport"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

var (
	_ oauth2.TokenSource  = (*Authenticator)(nil)
	_ refresh.SessionSink = (*Authenticator)(nil)
	_ refresh.Func        = (*Authenticator)(nil).Refresh
)

// Authenticator owns the operator's OAuth2 tokens. It performs login, the
// refresh operation handed to the coordinator, and logout.
type Authenticator struct {
	oauth      *oauth2.Config
	store      *Store
	verifier   *oidc.IDTokenVerifier
	httpClient *http.Client
	api        *transport.Client
	revokeURL  string

	lock  sync.RWMutex
	token *oauth2.Token
}

// AuthenticatorOption is a functional option for configuring an Authenticator.
type AuthenticatorOption func(*Authenticator)

// WithIDTokenVerifier verifies ID tokens returned by the token endpoint.
func WithIDTokenVerifier(v *oidc.IDTokenVerifier) AuthenticatorOption {
	return func(a *Authenticator) {
		a.verifier = v
	}
}

// WithHTTPClient sets the client used to reach the token endpoint.
func WithHTTPClient(hc *http.Client) AuthenticatorOption {
	return func(a *Authenticator) {
		a.httpClient = hc
	}
}

// WithRevocation revokes the refresh token on Logout (RFC 7009).
func WithRevocation(api *transport.Client, revokeURL string) AuthenticatorOption {
	return func(a *Authenticator) {
		a.api = api
		a.revokeURL = revokeURL
	}
}

func NewAuthenticator(cfg *oauth2.Config, store *Store, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		oauth: cfg,
		store: store,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Store returns the session store the authenticator reports to.
func (a *Authenticator) Store() *Store {
	return a.store
}

// Login exchanges the operator's credentials for tokens (password grant).
func (a *Authenticator) Login(ctx context.Context, username, password string) (*UserInfo, error) {
	a.store.BeginLogin()

	tok, err := a.oauth.PasswordCredentialsToken(a.oauthContext(ctx), username, password)
	if err != nil {
		err = loginError(err)
		log.Err(err).Str("username", username).Msg("Login failed")
		a.store.LoginFailed(err)
		return nil, err
	}

	user, err := a.identify(ctx, tok, username)
	if err != nil {
		log.Err(err).Msg("Login: failed to identify user")
		a.store.LoginFailed(err)
		return nil, err
	}

	a.setToken(tok)
	a.store.LoginSucceeded(user)
	log.Info().Str("sub", user.Subject).Msg("logged in")
	return user, nil
}

// Refresh exchanges the refresh token for a new access token. The outcome is
// reported as a status: 200 on success, the token endpoint's status when it
// rejects the grant, 401 when there is nothing to refresh. Only transport
// failures come back as errors.
func (a *Authenticator) Refresh(ctx context.Context) (*transport.Response, error) {
	current := a.current()
	if current == nil || current.RefreshToken == "" {
		return &transport.Response{Status: http.StatusUnauthorized, Body: []byte(apperrors.ErrNoRefreshToken.Error())}, nil
	}

	ts := a.oauth.TokenSource(a.oauthContext(ctx), &oauth2.Token{RefreshToken: current.RefreshToken})
	tok, err := ts.Token()
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.Response != nil {
			return &transport.Response{Status: re.Response.StatusCode, Header: re.Response.Header, Body: re.Body}, nil
		}
		return nil, fmt.Errorf("[sessions Refresh] %w", err)
	}

	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" {
		if user, err := a.identify(ctx, tok, ""); err != nil {
			log.Err(err).Msg("Refresh: ignoring unverifiable ID token")
		} else {
			a.store.SetUser(user)
		}
	}

	a.setToken(tok)
	return &transport.Response{Status: http.StatusOK}, nil
}

// Token returns the current token without refreshing it.
func (a *Authenticator) Token() (*oauth2.Token, error) {
	tok := a.current()
	if tok == nil || tok.AccessToken == "" {
		return nil, apperrors.ErrNotAuthenticated
	}
	return tok, nil
}

// SignOut drops the tokens and forces the session to signed-out.
func (a *Authenticator) SignOut() {
	a.setToken(nil)
	a.store.SignOut()
}

// Logout revokes the refresh token (best effort) and clears the session.
func (a *Authenticator) Logout(ctx context.Context) error {
	tok := a.current()
	if tok != nil && a.api != nil && a.revokeURL != "" {
		a.revoke(ctx, tok.RefreshToken, "refresh_token")
		a.revoke(ctx, tok.AccessToken, "access_token")
	}
	a.setToken(nil)
	a.store.Logout()
	return nil
}

func (a *Authenticator) revoke(ctx context.Context, token, tokenTypeHint string) {
	if token == "" {
		return
	}
	form := url.Values{
		"token":           {token},
		"token_type_hint": {tokenTypeHint},
		"client_id":       {a.oauth.ClientID},
	}
	if a.oauth.ClientSecret != "" {
		form.Set("client_secret", a.oauth.ClientSecret)
	}
	_, err := a.api.Do(ctx, transport.Request{
		Method:      http.MethodPost,
		Path:        a.revokeURL,
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
	})
	if err != nil {
		log.Err(err).Str("token_type", tokenTypeHint).Msg("Failed to revoke token")
	}
}

func (a *Authenticator) current() *oauth2.Token {
	a.lock.RLock()
	defer a.lock.RUnlock()
	return a.token
}

func (a *Authenticator) setToken(tok *oauth2.Token) {
	a.lock.Lock()
	defer a.lock.Unlock()
	a.token = tok
}

func (a *Authenticator) oauthContext(ctx context.Context) context.Context {
	if a.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, a.httpClient)
}

func loginError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.Response != nil {
		switch re.Response.StatusCode {
		case http.StatusBadRequest, http.StatusUnauthorized:
			return fmt.Errorf("[sessions Login] %w: %s", apperrors.ErrInvalidCredentials, retrieveMessage(re))
		}
	}
	return fmt.Errorf("[sessions Login] %w", err)
}

func retrieveMessage(re *oauth2.RetrieveError) string {
	if re.ErrorDescription != "" {
		return re.ErrorDescription
	}
	if re.ErrorCode != "" {
		return re.ErrorCode
	}
	return http.StatusText(re.Response.StatusCode)
}
