package cms_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-cms-admin/cms"
	"github.com/jrsteele09/go-cms-admin/sessions"
	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/transport"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// testFixture wires a fake token endpoint and a fake CMS API to a real client
// stack: transport, authenticator, coordinator and cms.Client.
type testFixture struct {
	mux    *http.ServeMux
	client *cms.Client
	auth   *sessions.Authenticator
	store  *sessions.Store

	lock          sync.Mutex
	validToken    string
	refreshStatus int
	refreshCalls  atomic.Int32
	apiCalls      atomic.Int32
}

func setupTestFixture(t *testing.T) *testFixture {
	t.Helper()
	f := &testFixture{
		mux:           http.NewServeMux(),
		validToken:    "at-1",
		refreshStatus: http.StatusOK,
	}

	tokenSrv := httptest.NewServer(http.HandlerFunc(f.tokenEndpoint))
	t.Cleanup(tokenSrv.Close)
	apiSrv := httptest.NewServer(http.HandlerFunc(f.apiEndpoint))
	t.Cleanup(apiSrv.Close)

	f.store = sessions.NewStore()
	f.auth = sessions.NewAuthenticator(&oauth2.Config{
		ClientID: "cms-admin",
		Endpoint: oauth2.Endpoint{TokenURL: tokenSrv.URL + "/token", AuthStyle: oauth2.AuthStyleInParams},
	}, f.store)

	api := transport.NewClient(apiSrv.URL+"/api", transport.WithTokenSource(f.auth))
	coord := refresh.NewCoordinator(f.auth.Refresh, f.auth)
	client, err := cms.New(api, coord)
	require.NoError(t, err)
	f.client = client

	_, err = f.auth.Login(context.Background(), "editor", "password123")
	require.NoError(t, err)
	return f
}

// expireToken makes the API reject the current access token; the next
// successful refresh issues the accepted one.
func (f *testFixture) expireToken(next string) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.validToken = next
}

func (f *testFixture) setRefreshStatus(status int) {
	f.lock.Lock()
	defer f.lock.Unlock()
	f.refreshStatus = status
}

func (f *testFixture) tokenEndpoint(w http.ResponseWriter, r *http.Request) {
	_ = r.ParseForm()
	f.lock.Lock()
	valid, status := f.validToken, f.refreshStatus
	f.lock.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch r.PostForm.Get("grant_type") {
	case "password":
		writeJSON(w, http.StatusOK, map[string]any{"access_token": "at-1", "token_type": "Bearer", "refresh_token": "rt-1", "expires_in": 3600})
	case "refresh_token":
		f.refreshCalls.Add(1)
		if status != http.StatusOK {
			writeJSON(w, status, map[string]any{"error": "invalid_grant"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"access_token": valid, "token_type": "Bearer", "expires_in": 3600})
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func (f *testFixture) apiEndpoint(w http.ResponseWriter, r *http.Request) {
	f.apiCalls.Add(1)
	f.lock.Lock()
	valid := f.validToken
	f.lock.Unlock()

	if r.Header.Get("Authorization") != "Bearer "+valid {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid_token"})
		return
	}
	http.StripPrefix("/api", f.mux).ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	return json.NewDecoder(r.Body).Decode(v)
}
