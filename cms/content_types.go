package cms

import (
	"context"
	"net/http"
	"time"
)

// ContentType groups entries that share a blueprint, e.g. "Blog post".
type ContentType struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Handle      string    `json:"handle" yaml:"handle"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	BlueprintID string    `json:"blueprint_id,omitempty" yaml:"blueprint_id,omitempty"`
	CreatedAt   time.Time `json:"created_at,omitempty" yaml:"created_at,omitempty"`
	UpdatedAt   time.Time `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type ContentTypeInput struct {
	Name        string `json:"name" validate:"required,max=128"`
	Handle      string `json:"handle" validate:"required,max=64,handle"`
	Description string `json:"description,omitempty" validate:"max=1024"`
	BlueprintID string `json:"blueprint_id,omitempty"`
}

type ContentTypesService struct {
	c *Client
}

func (s *ContentTypesService) List(ctx context.Context, opts ListOptions) (*Page[ContentType], error) {
	return list[ContentType](ctx, s.c, "/content-types", opts, nil)
}

func (s *ContentTypesService) Get(ctx context.Context, id string) (*ContentType, error) {
	if err := requireID("content type", id); err != nil {
		return nil, err
	}
	return send[ContentType](ctx, s.c, http.MethodGet, resourcePath("content-types", id), nil)
}

func (s *ContentTypesService) Create(ctx context.Context, in ContentTypeInput) (*ContentType, error) {
	return send[ContentType](ctx, s.c, http.MethodPost, "/content-types", in)
}

func (s *ContentTypesService) Update(ctx context.Context, id string, in ContentTypeInput) (*ContentType, error) {
	if err := requireID("content type", id); err != nil {
		return nil, err
	}
	return send[ContentType](ctx, s.c, http.MethodPut, resourcePath("content-types", id), in)
}

func (s *ContentTypesService) Delete(ctx context.Context, id string) error {
	if err := requireID("content type", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("content-types", id))
}
