package cms

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
	"github.com/jrsteele09/go-cms-admin/sessions"
	"github.com/jrsteele09/go-cms-admin/token/refresh"
	"github.com/jrsteele09/go-cms-admin/transport"
)

// Errors callers outside this module can match with errors.Is
var (
	ErrInvalidRequest        = apperrors.ErrInvalidRequest
	ErrNotFound              = apperrors.ErrNotFound
	ErrConflict              = apperrors.ErrConflict
	ErrAuthorizationRequired = apperrors.ErrAuthorizationRequired
)

// Client is the typed CMS admin API. Every call goes through the refresh
// coordinator, so an expired access token is refreshed once and the call
// retried transparently.
type Client struct {
	api      *transport.Client
	coord    *refresh.Coordinator
	validate *validator.Validate

	ContentTypes *ContentTypesService
	Taxonomies   *TaxonomiesService
	Blueprints   *BlueprintsService
	Routes       *RoutesService
	Media        *MediaService
	Entries      *EntriesService
}

func New(api *transport.Client, coord *refresh.Coordinator) (*Client, error) {
	v, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("[cms New] %w", err)
	}
	c := &Client{
		api:      api,
		coord:    coord,
		validate: v,
	}
	c.ContentTypes = &ContentTypesService{c}
	c.Taxonomies = &TaxonomiesService{c}
	c.Blueprints = &BlueprintsService{c}
	c.Routes = &RoutesService{c}
	c.Media = &MediaService{c}
	c.Entries = &EntriesService{c}
	return c, nil
}

// ListOptions pages and filters list calls.
type ListOptions struct {
	Offset int    `validate:"gte=0"`
	Limit  int    `validate:"gte=0,lte=500"`
	Search string `validate:"max=256"`
}

func (o ListOptions) values() url.Values {
	q := url.Values{}
	if o.Offset > 0 {
		q.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Limit > 0 {
		q.Set("limit", strconv.Itoa(o.Limit))
	}
	if o.Search != "" {
		q.Set("q", o.Search)
	}
	return q
}

// Page is one page of a list result.
type Page[T any] struct {
	Items []T `json:"items" yaml:"items"`
	Total int `json:"total" yaml:"total"`
}

// Me returns the API's view of the signed-in operator.
func (c *Client) Me(ctx context.Context) (*sessions.UserInfo, error) {
	return call[sessions.UserInfo](ctx, c, transport.Request{Method: http.MethodGet, Path: "/me"})
}

// do sends req through the coordinator. The request is rebuilt from the same
// bytes for the retry.
func (c *Client) do(ctx context.Context, req transport.Request) (*transport.Response, error) {
	return c.coord.Do(ctx, func(ctx context.Context) (*transport.Response, error) {
		return c.api.Do(ctx, req)
	})
}

// call sends req and decodes the JSON response into a T.
func call[T any](ctx context.Context, c *Client, req transport.Request) (*T, error) {
	resp, err := c.do(ctx, req)
	if err != nil {
		return nil, apperrors.Wrapf(err, "[cms] %s %s", req.Method, req.Path)
	}
	out := new(T)
	if err := resp.Decode(out); err != nil {
		return nil, err
	}
	return out, nil
}

// send validates in, marshals it and decodes the response into a T.
func send[T any](ctx context.Context, c *Client, method, path string, in any) (*T, error) {
	if in != nil {
		if err := c.check(in); err != nil {
			return nil, err
		}
	}
	req, err := transport.JSONRequest(method, path, in)
	if err != nil {
		return nil, err
	}
	return call[T](ctx, c, req)
}

func list[T any](ctx context.Context, c *Client, path string, opts ListOptions, extra url.Values) (*Page[T], error) {
	if err := c.check(opts); err != nil {
		return nil, err
	}
	q := opts.values()
	for k, vs := range extra {
		for _, v := range vs {
			if v != "" {
				q.Add(k, v)
			}
		}
	}
	return call[Page[T]](ctx, c, transport.Request{Method: http.MethodGet, Path: path, Query: q})
}

func (c *Client) remove(ctx context.Context, path string) error {
	if _, err := c.do(ctx, transport.Request{Method: http.MethodDelete, Path: path}); err != nil {
		return apperrors.Wrapf(err, "[cms] DELETE %s", path)
	}
	return nil
}

func resourcePath(parts ...string) string {
	p := ""
	for i, part := range parts {
		if i%2 == 1 {
			part = url.PathEscape(part)
		}
		p += "/" + part
	}
	return p
}
