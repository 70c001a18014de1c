package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/jrsteele09/go-cms-admin/cms"
	"github.com/jrsteele09/go-cms-admin/internal/config"
	"github.com/jrsteele09/go-cms-admin/sessions/issuerfake"
	"github.com/stretchr/testify/require"
)

type testConfig struct {
	config.Config
	baseURL   string
	tokenURL  string
	issuerURL string
}

func (c testConfig) GetBaseURL() string  { return c.baseURL }
func (c testConfig) GetTokenURL() string { return c.tokenURL }
func (c testConfig) GetRevokeURL() string {
	if c.issuerURL != "" {
		return ""
	}
	return c.tokenURL[:strings.LastIndex(c.tokenURL, "/")] + "/revoke"
}
func (testConfig) GetUsername() string  { return "editor" }
func (testConfig) GetPassword() string  { return "password123" }
func (c testConfig) GetIssuerURL() string { return c.issuerURL }

type cmsServer struct {
	*httptest.Server
	refreshes atomic.Int32
	revokes   atomic.Int32
	expired   atomic.Bool
	created   atomic.Value
}

// newCMSServer serves the token endpoint and a small slice of the API. While
// expired is set, at-1 is rejected so the CLI has to refresh.
func newCMSServer(t *testing.T) *cmsServer {
	t.Helper()
	s := &cmsServer{}
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/token", func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		w.Header().Set("Content-Type", "application/json")
		switch r.PostForm.Get("grant_type") {
		case "password":
			_, _ = w.Write([]byte(`{"access_token":"at-1","refresh_token":"rt-1","token_type":"Bearer","expires_in":3600}`))
		case "refresh_token":
			s.refreshes.Add(1)
			_, _ = w.Write([]byte(`{"access_token":"at-2","token_type":"Bearer","expires_in":3600}`))
		}
	})
	mux.HandleFunc("POST /auth/revoke", func(w http.ResponseWriter, _ *http.Request) {
		s.revokes.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	api := http.NewServeMux()
	api.HandleFunc("GET /content-types", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(cms.Page[cms.ContentType]{Items: []cms.ContentType{{ID: "ct-1", Name: "Blog post", Handle: "blog-post"}}, Total: 1})
	})
	api.HandleFunc("POST /content-types", func(w http.ResponseWriter, r *http.Request) {
		var in cms.ContentTypeInput
		_ = json.NewDecoder(r.Body).Decode(&in)
		s.created.Store(in)
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(cms.ContentType{ID: "ct-2", Name: in.Name, Handle: in.Handle, Description: in.Description})
	})
	api.HandleFunc("GET /blueprints/{id}", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(cms.Blueprint{ID: r.PathValue("id"), Fields: []cms.Field{
			{Name: "title", Type: cms.FieldText},
			{Name: "seo", Type: cms.FieldGroup, Fields: []cms.Field{{Name: "description", Type: cms.FieldTextarea}}},
		}})
	})
	mux.Handle("/api/", http.StripPrefix("/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		if (auth != "Bearer at-1" && auth != "Bearer at-2") || (auth == "Bearer at-1" && s.expired.Load()) {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		api.ServeHTTP(w, r)
	})))
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func execute(t *testing.T, srv *cmsServer, args ...string) (string, string, error) {
	t.Helper()
	return executeWith(t, testConfig{Config: config.New(), baseURL: srv.URL + "/api", tokenURL: srv.URL + "/auth/token"}, args...)
}

func executeWith(t *testing.T, cfg testConfig, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	a := newApp(cfg, &out, &errOut)
	root := newRootCommand(a)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	a.close(t.Context())
	return out.String(), errOut.String(), err
}

func TestCLI_ListContentTypesAsYAML(t *testing.T) {
	srv := newCMSServer(t)

	out, _, err := execute(t, srv, "content-types", "list", "-o", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "handle: blog-post")
	require.Contains(t, out, "total: 1")
	require.Equal(t, int32(2), srv.revokes.Load())
}

func TestCLI_RefreshesExpiredToken(t *testing.T) {
	srv := newCMSServer(t)
	srv.expired.Store(true)

	out, _, err := execute(t, srv, "ct", "list")
	require.NoError(t, err)
	require.Equal(t, int32(1), srv.refreshes.Load())

	var page cms.Page[cms.ContentType]
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Equal(t, "ct-1", page.Items[0].ID)
}

func TestCLI_CreateFromYAMLFile(t *testing.T) {
	srv := newCMSServer(t)
	path := filepath.Join(t.TempDir(), "page.yaml")
	require.NoError(t, os.WriteFile(path, []byte("name: Page\nhandle: page\ndescription: Static pages\n"), 0o600))

	out, _, err := execute(t, srv, "content-types", "create", "-f", path)
	require.NoError(t, err)
	require.Contains(t, out, `"id": "ct-2"`)

	created, ok := srv.created.Load().(cms.ContentTypeInput)
	require.True(t, ok)
	require.Equal(t, "Static pages", created.Description)
}

func TestCLI_BlueprintFields(t *testing.T) {
	srv := newCMSServer(t)

	out, _, err := execute(t, srv, "blueprints", "fields", "bp-1")
	require.NoError(t, err)
	require.Equal(t, "title\ttext\nseo\tgroup\nseo.description\ttextarea\n", out)
}

func TestCLI_Errors(t *testing.T) {
	srv := newCMSServer(t)

	_, _, err := execute(t, srv, "ct", "list", "-o", "xml")
	require.ErrorContains(t, err, `unknown output format "xml"`)

	_, _, err = execute(t, srv, "ct", "list", "--limit", "5000")
	require.ErrorIs(t, err, cms.ErrInvalidRequest)

	_, _, err = execute(t, srv, "ct", "get")
	require.Error(t, err)
}

func TestDecodeInput(t *testing.T) {
	var bp cms.BlueprintInput
	err := decodeInput([]byte(`
name: Article
handle: article
fields:
  - name: title
    type: text
    required: true
  - name: seo
    type: group
    fields:
      - name: robots
        type: select
        options: [index, noindex]
`), &bp)
	require.NoError(t, err)
	require.Len(t, bp.Fields, 2)
	require.True(t, bp.Fields[0].Required)
	require.Equal(t, []string{"index", "noindex"}, bp.Fields[1].Fields[0].Options)

	var ct cms.ContentTypeInput
	require.NoError(t, decodeInput([]byte(`{"name": "Page", "handle": "page"}`), &ct))
	require.Equal(t, "page", ct.Handle)

	require.Error(t, decodeInput([]byte("name: Page\nhandel: page\n"), &ct))
}

func TestCLI_OIDCIssuer(t *testing.T) {
	iss := issuerfake.New(t, "cms-admin", issuerfake.User{
		Subject: "user-42", Username: "editor", Password: "password123", Email: "editor@example.com", Roles: []string{"editor"},
	})
	var expireNext atomic.Bool
	api := httptest.NewServer(http.StripPrefix("/api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if expireNext.CompareAndSwap(true, false) {
			iss.ExpireAccessTokens()
		}
		claims, ok := iss.Authorize(r)
		if !ok {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"sub": claims["sub"], "roles": claims["roles"]})
	})))
	t.Cleanup(api.Close)
	cfg := testConfig{Config: config.New(), baseURL: api.URL + "/api", issuerURL: iss.URL}

	out, _, err := executeWith(t, cfg, "whoami", "-o", "yaml")
	require.NoError(t, err)
	require.Contains(t, out, "sub: user-42")
	require.Contains(t, out, "- editor")
	require.Zero(t, iss.Refreshes())
	// Logout revokes both tokens at the discovered revocation endpoint.
	require.Equal(t, 2, iss.Revocations())

	expireNext.Store(true)
	out, _, err = executeWith(t, cfg, "whoami")
	require.NoError(t, err)
	require.Contains(t, out, `"sub": "user-42"`)
	require.Equal(t, 1, iss.Refreshes())

	expireNext.Store(true)
	iss.RejectRefresh(http.StatusBadRequest)
	_, errOut, err := executeWith(t, cfg, "whoami")
	require.ErrorIs(t, err, cms.ErrAuthorizationRequired)
	require.Contains(t, errOut, "Sign in again to continue")
}
