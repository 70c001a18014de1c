package config

import "time"

type AuthConfig interface {
	GetClientID() string
	GetClientSecret() string
	GetIssuerURL() string
	GetTokenURL() string
	GetRevokeURL() string
	GetScopes() []string
	GetRefreshTimeout() time.Duration
	GetUsername() string
	GetPassword() string
}

type Auth struct{}

var _ AuthConfig = Auth{}

func (Auth) GetClientID() string {
	return GetEnv("CMS_CLIENT_ID", "cms-admin")
}

func (Auth) GetClientSecret() string {
	return GetEnv("CMS_CLIENT_SECRET", "")
}

// GetIssuerURL enables OIDC discovery and ID token verification when set
func (Auth) GetIssuerURL() string {
	return GetEnv("CMS_ISSUER_URL", "")
}

// GetTokenURL is used when no issuer is configured
func (Auth) GetTokenURL() string {
	return GetEnv("CMS_TOKEN_URL", API{}.GetBaseURL()+"/auth/token")
}

func (Auth) GetRevokeURL() string {
	return GetEnv("CMS_REVOKE_URL", "")
}

func (Auth) GetScopes() []string {
	return GetEnvList("CMS_SCOPES", []string{"openid", "profile", "email", "offline_access"})
}

// GetRefreshTimeout bounds a single token refresh. Zero means no timeout.
func (Auth) GetRefreshTimeout() time.Duration {
	return GetEnvDuration("CMS_REFRESH_TIMEOUT", 0)
}

func (Auth) GetUsername() string {
	return GetEnv("CMS_USERNAME", "")
}

func (Auth) GetPassword() string {
	return GetEnv("CMS_PASSWORD", "")
}
