package sessions

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
	"golang.org/x/oauth2"
)

// identityClaims are the user claims read from an ID token or a JWT access token.
type identityClaims struct {
	jwt.RegisteredClaims
	Email             string   `json:"email"`
	Name              string   `json:"name"`
	PreferredUsername string   `json:"preferred_username"`
	Roles             []string `json:"roles"`
}

func (c identityClaims) userInfo() *UserInfo {
	return &UserInfo{
		Subject:  c.Subject,
		Email:    c.Email,
		Name:     c.Name,
		Username: c.PreferredUsername,
		Roles:    c.Roles,
	}
}

// identify resolves the operator behind tok. A verified ID token wins; without
// a verifier the access token's claims are read unverified (the API is the
// authority on every call anyway); an opaque access token yields just the
// login name.
func (a *Authenticator) identify(ctx context.Context, tok *oauth2.Token, username string) (*UserInfo, error) {
	if rawIDToken, ok := tok.Extra("id_token").(string); ok && rawIDToken != "" && a.verifier != nil {
		idToken, err := a.verifier.Verify(ctx, rawIDToken)
		if err != nil {
			return nil, fmt.Errorf("[sessions identify] ID token verification failed: %w: %w", apperrors.ErrInvalidCredentials, err)
		}
		var claims identityClaims
		if err := idToken.Claims(&claims); err != nil {
			return nil, fmt.Errorf("[sessions identify] failed to extract claims: %w", err)
		}
		return claims.userInfo(), nil
	}

	var claims identityClaims
	if _, _, err := jwt.NewParser().ParseUnverified(tok.AccessToken, &claims); err == nil && claims.Subject != "" {
		return claims.userInfo(), nil
	}
	return &UserInfo{Subject: username, Username: username}, nil
}
