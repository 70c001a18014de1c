package cms

import (
	"context"
	"net/http"
)

// Route maps a URL pattern such as "/blog/{slug}" to a content type.
type Route struct {
	ID            string `json:"id" yaml:"id"`
	Pattern       string `json:"pattern" yaml:"pattern"`
	ContentTypeID string `json:"content_type_id" yaml:"content_type_id"`
	Template      string `json:"template,omitempty" yaml:"template,omitempty"`
	Priority      int    `json:"priority" yaml:"priority"`
}

type RouteInput struct {
	Pattern       string `json:"pattern" validate:"required,max=512,route_pattern"`
	ContentTypeID string `json:"content_type_id" validate:"required"`
	Template      string `json:"template,omitempty" validate:"max=256"`
	Priority      int    `json:"priority" validate:"gte=0,lte=1000"`
}

type RoutesService struct {
	c *Client
}

func (s *RoutesService) List(ctx context.Context, opts ListOptions) (*Page[Route], error) {
	return list[Route](ctx, s.c, "/routes", opts, nil)
}

func (s *RoutesService) Get(ctx context.Context, id string) (*Route, error) {
	if err := requireID("route", id); err != nil {
		return nil, err
	}
	return send[Route](ctx, s.c, http.MethodGet, resourcePath("routes", id), nil)
}

func (s *RoutesService) Create(ctx context.Context, in RouteInput) (*Route, error) {
	return send[Route](ctx, s.c, http.MethodPost, "/routes", in)
}

func (s *RoutesService) Update(ctx context.Context, id string, in RouteInput) (*Route, error) {
	if err := requireID("route", id); err != nil {
		return nil, err
	}
	return send[Route](ctx, s.c, http.MethodPut, resourcePath("routes", id), in)
}

func (s *RoutesService) Delete(ctx context.Context, id string) error {
	if err := requireID("route", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("routes", id))
}
