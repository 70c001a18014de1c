// Package issuerfake is an in-process OpenID Connect provider for tests. It
// serves discovery, a JWKS, a token endpoint (password and refresh_token
// grants) and RFC 7009 revocation.
package issuerfake

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenLifetime = time.Hour

type User struct {
	Subject  string
	Username string
	Password string
	Email    string
	Name     string
	Roles    []string
}

type Issuer struct {
	*httptest.Server
	ClientID string
	Keys     *KeyPair

	lock          sync.Mutex
	users         map[string]User
	refreshTokens map[string]string // refresh token -> username
	generation    int
	refreshStatus int
	refreshes     int
	revocations   int
}

// New starts an issuer for clientID that accepts the given users' passwords.
func New(t testing.TB, clientID string, users ...User) *Issuer {
	t.Helper()
	keys, err := GenerateKeyPair("test-key-1")
	if err != nil {
		t.Fatalf("issuerfake: %v", err)
	}
	iss := &Issuer{
		ClientID:      clientID,
		Keys:          keys,
		users:         make(map[string]User, len(users)),
		refreshTokens: make(map[string]string),
		refreshStatus: http.StatusOK,
	}
	for _, u := range users {
		iss.users[u.Username] = u
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /.well-known/openid-configuration", iss.discovery)
	mux.HandleFunc("GET /keys", iss.jwks)
	mux.HandleFunc("POST /token", iss.token)
	mux.HandleFunc("POST /revoke", iss.revoke)
	iss.Server = httptest.NewServer(mux)
	t.Cleanup(iss.Close)
	return iss
}

// TokenURL is the token endpoint, for configs that skip discovery.
func (iss *Issuer) TokenURL() string {
	return iss.URL + "/token"
}

// ExpireAccessTokens invalidates every access token issued so far.
func (iss *Issuer) ExpireAccessTokens() {
	iss.lock.Lock()
	defer iss.lock.Unlock()
	iss.generation++
}

// RejectRefresh makes the refresh_token grant answer with status.
// http.StatusOK restores normal behaviour.
func (iss *Issuer) RejectRefresh(status int) {
	iss.lock.Lock()
	defer iss.lock.Unlock()
	iss.refreshStatus = status
}

func (iss *Issuer) Refreshes() int {
	iss.lock.Lock()
	defer iss.lock.Unlock()
	return iss.refreshes
}

func (iss *Issuer) Revocations() int {
	iss.lock.Lock()
	defer iss.lock.Unlock()
	return iss.revocations
}

// Authorize checks the request's bearer token the way a resource server
// would: signature, expiry and that it was issued after the last
// ExpireAccessTokens.
func (iss *Issuer) Authorize(r *http.Request) (jwt.MapClaims, bool) {
	raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	if !ok {
		return nil, false
	}
	claims, err := iss.Keys.Parse(raw)
	if err != nil {
		return nil, false
	}
	gen, _ := claims["gen"].(float64)
	iss.lock.Lock()
	defer iss.lock.Unlock()
	return claims, int(gen) == iss.generation
}

func (iss *Issuer) discovery(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"issuer":                                iss.URL,
		"authorization_endpoint":                iss.URL + "/authorize",
		"token_endpoint":                        iss.TokenURL(),
		"jwks_uri":                              iss.URL + "/keys",
		"revocation_endpoint":                   iss.URL + "/revoke",
		"id_token_signing_alg_values_supported": []string{jwt.SigningMethodRS256.Alg()},
		"grant_types_supported":                 []string{"password", "refresh_token"},
	})
}

func (iss *Issuer) jwks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, JWKS{Keys: []JWK{iss.Keys.JWK()}})
}

func (iss *Issuer) token(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		oauthError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	iss.lock.Lock()
	defer iss.lock.Unlock()

	switch r.PostForm.Get("grant_type") {
	case "password":
		user, ok := iss.users[r.PostForm.Get("username")]
		if !ok || user.Password != r.PostForm.Get("password") {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "bad username or password")
			return
		}
		refreshToken := uuid.NewString()
		iss.refreshTokens[refreshToken] = user.Username
		iss.issue(w, user, refreshToken, r.PostForm.Get("scope"))
	case "refresh_token":
		iss.refreshes++
		if iss.refreshStatus != http.StatusOK {
			oauthError(w, iss.refreshStatus, "invalid_grant", "refresh rejected")
			return
		}
		username, ok := iss.refreshTokens[r.PostForm.Get("refresh_token")]
		if !ok {
			oauthError(w, http.StatusBadRequest, "invalid_grant", "unknown refresh token")
			return
		}
		iss.issue(w, iss.users[username], "", r.PostForm.Get("scope"))
	default:
		oauthError(w, http.StatusBadRequest, "unsupported_grant_type", "")
	}
}

// issue writes a token response. An empty refreshToken keeps the caller's
// current one. The caller holds iss.lock.
func (iss *Issuer) issue(w http.ResponseWriter, user User, refreshToken, scope string) {
	now := time.Now()
	idToken, err := iss.Keys.Sign(jwt.MapClaims{
		"iss":                iss.URL,
		"sub":                user.Subject,
		"aud":                iss.ClientID,
		"email":              user.Email,
		"name":               user.Name,
		"preferred_username": user.Username,
		"iat":                now.Unix(),
		"exp":                now.Add(tokenLifetime).Unix(),
		"jti":                uuid.NewString(),
	})
	if err != nil {
		oauthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	accessToken, err := iss.Keys.Sign(jwt.MapClaims{
		"iss":       iss.URL,
		"aud":       "cms-api",
		"client_id": iss.ClientID,
		"scope":     scope,
		"sub":       user.Subject,
		"roles":     user.Roles,
		"iat":       now.Unix(),
		"exp":       now.Add(tokenLifetime).Unix(),
		"jti":       uuid.NewString(),
		"gen":       iss.generation,
	})
	if err != nil {
		oauthError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := map[string]any{
		"access_token": accessToken,
		"id_token":     idToken,
		"token_type":   "Bearer",
		"expires_in":   int(tokenLifetime.Seconds()),
	}
	if refreshToken != "" {
		resp["refresh_token"] = refreshToken
	}
	writeJSON(w, http.StatusOK, resp)
}

func (iss *Issuer) revoke(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	iss.lock.Lock()
	defer iss.lock.Unlock()
	iss.revocations++
	delete(iss.refreshTokens, r.PostForm.Get("token"))
	w.WriteHeader(http.StatusOK)
}

func oauthError(w http.ResponseWriter, status int, code, description string) {
	writeJSON(w, status, map[string]string{"error": code, "error_description": description})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
