package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/jrsteele09/go-cms-admin/cms"
	"github.com/jrsteele09/go-cms-admin/internal/config"
	"github.com/jrsteele09/go-cms-admin/sessions"
	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/transport"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	"gopkg.in/yaml.v3"
)

const (
	outputJSON = "json"
	outputYAML = "yaml"
)

// app carries what every command needs. The CMS client is built lazily so
// commands that never touch the API (version, help) need no credentials.
type app struct {
	cfg    config.Config
	out    io.Writer
	errOut io.Writer

	output   string
	logLevel string

	registry *prometheus.Registry
	auth     *sessions.Authenticator
	client   *cms.Client
}

func newApp(cfg config.Config, out, errOut io.Writer) *app {
	return &app{
		cfg:      cfg,
		out:      out,
		errOut:   errOut,
		output:   outputJSON,
		logLevel: cfg.GetLogLevel(),
		registry: prometheus.NewRegistry(),
	}
}

func (a *app) setupLogging() error {
	level, err := zerolog.ParseLevel(a.logLevel)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", a.logLevel, err)
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: a.errOut})
	return nil
}

// connect wires config, authenticator, transport and coordinator, then signs in.
func (a *app) connect(ctx context.Context) (*cms.Client, error) {
	if a.client != nil {
		return a.client, nil
	}
	cfg := a.cfg

	username, password := cfg.GetUsername(), cfg.GetPassword()
	if username == "" || password == "" {
		return nil, fmt.Errorf("set CMS_USERNAME and CMS_PASSWORD to sign in")
	}

	oauthCfg := &oauth2.Config{
		ClientID:     cfg.GetClientID(),
		ClientSecret: cfg.GetClientSecret(),
		Scopes:       cfg.GetScopes(),
		Endpoint:     oauth2.Endpoint{TokenURL: cfg.GetTokenURL()},
	}

	var opts []sessions.AuthenticatorOption
	revokeURL := cfg.GetRevokeURL()
	if issuer := cfg.GetIssuerURL(); issuer != "" {
		provider, err := oidc.NewProvider(ctx, issuer)
		if err != nil {
			return nil, fmt.Errorf("OIDC discovery for %s: %w", issuer, err)
		}
		oauthCfg.Endpoint = provider.Endpoint()
		opts = append(opts, sessions.WithIDTokenVerifier(provider.Verifier(&oidc.Config{ClientID: cfg.GetClientID()})))

		var discovered struct {
			RevocationEndpoint string `json:"revocation_endpoint"`
		}
		if err := provider.Claims(&discovered); err == nil && revokeURL == "" {
			revokeURL = discovered.RevocationEndpoint
		}
	}
	if revokeURL != "" {
		// Revocation goes through its own client: it must not carry the
		// bearer token it is revoking.
		revoker := transport.NewClient(cfg.GetBaseURL(), transport.WithTimeout(cfg.GetRequestTimeout()), transport.WithUserAgent(cfg.GetUserAgent()))
		opts = append(opts, sessions.WithRevocation(revoker, revokeURL))
	}

	store := sessions.NewStore()
	store.OnChange(func(s sessions.Session, reason sessions.ChangeReason) {
		if reason == sessions.ReasonSignedOut {
			fmt.Fprintf(a.errOut, "Signed out: %s. Sign in again to continue.\n", s.LastError)
		}
	})
	auth := sessions.NewAuthenticator(oauthCfg, store, opts...)

	api := transport.NewClient(cfg.GetBaseURL(),
		transport.WithTimeout(cfg.GetRequestTimeout()),
		transport.WithUserAgent(cfg.GetUserAgent()),
		transport.WithTokenSource(auth),
	)
	coord := refresh.NewCoordinator(auth.Refresh, auth,
		refresh.WithRefreshTimeout(cfg.GetRefreshTimeout()),
		refresh.WithMetrics(refresh.NewMetrics(a.registry)),
	)
	client, err := cms.New(api, coord)
	if err != nil {
		return nil, err
	}

	if _, err := auth.Login(ctx, username, password); err != nil {
		return nil, err
	}
	a.auth = auth
	a.client = client
	return client, nil
}

// close logs out and reports the coordinator's counters at debug level.
func (a *app) close(ctx context.Context) {
	if a.auth != nil {
		if err := a.auth.Logout(ctx); err != nil {
			log.Warn().Err(err).Msg("Logout failed")
		}
	}
	a.logMetrics()
}

func (a *app) logMetrics() {
	families, err := a.registry.Gather()
	if err != nil {
		log.Debug().Err(err).Msg("Failed to gather metrics")
		return
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			log.Debug().
				Str("metric", mf.GetName()).
				Str("labels", strings.Join(labels, ",")).
				Float64("value", m.GetCounter().GetValue()).
				Msg("refresh metrics")
		}
	}
}

// print renders v in the selected output format.
func (a *app) print(v any) error {
	switch a.output {
	case outputYAML:
		enc := yaml.NewEncoder(a.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case outputJSON:
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q (want %s or %s)", a.output, outputJSON, outputYAML)
}

// readInput loads a YAML or JSON document into v. YAML is decoded generically
// and re-encoded as JSON so the API types' json tags apply to both.
func readInput(path string, v any) error {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return decodeInput(data, v)
}

func decodeInput(data []byte, v any) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("parse input: %w", err)
	}
	return nil
}
