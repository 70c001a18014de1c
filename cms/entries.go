package cms

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

type EntryStatus string

const (
	StatusDraft     EntryStatus = "draft"
	StatusPublished EntryStatus = "published"
	StatusArchived  EntryStatus = "archived"
)

// Entry is one piece of content. Fields follow the content type's blueprint.
type Entry struct {
	ID            string         `json:"id" yaml:"id"`
	ContentTypeID string         `json:"content_type_id" yaml:"content_type_id"`
	Title         string         `json:"title" yaml:"title"`
	Slug          string         `json:"slug" yaml:"slug"`
	Status        EntryStatus    `json:"status" yaml:"status"`
	Fields        map[string]any `json:"fields,omitempty" yaml:"fields,omitempty"`
	Terms         []string       `json:"terms,omitempty" yaml:"terms,omitempty"`
	PublishedAt   *time.Time     `json:"published_at,omitempty" yaml:"published_at,omitempty"`
	UpdatedAt     time.Time      `json:"updated_at,omitempty" yaml:"updated_at,omitempty"`
}

type EntryInput struct {
	ContentTypeID string         `json:"content_type_id" validate:"required"`
	Title         string         `json:"title" validate:"required,max=256"`
	Slug          string         `json:"slug" validate:"required,max=256,handle"`
	Status        EntryStatus    `json:"status,omitempty" validate:"omitempty,oneof=draft published archived"`
	Fields        map[string]any `json:"fields,omitempty"`
	Terms         []string       `json:"terms,omitempty" validate:"dive,required"`
}

// EntryListOptions filters entries on top of the common list options.
type EntryListOptions struct {
	ListOptions
	ContentTypeID string
	Status        EntryStatus `validate:"omitempty,oneof=draft published archived"`
}

type EntriesService struct {
	c *Client
}

func (s *EntriesService) List(ctx context.Context, opts EntryListOptions) (*Page[Entry], error) {
	if err := s.c.check(opts); err != nil {
		return nil, err
	}
	filters := url.Values{
		"content_type_id": {opts.ContentTypeID},
		"status":          {string(opts.Status)},
	}
	return list[Entry](ctx, s.c, "/entries", opts.ListOptions, filters)
}

func (s *EntriesService) Get(ctx context.Context, id string) (*Entry, error) {
	if err := requireID("entry", id); err != nil {
		return nil, err
	}
	return send[Entry](ctx, s.c, http.MethodGet, resourcePath("entries", id), nil)
}

// Create stores a new entry. Entries start as drafts unless a status is given.
func (s *EntriesService) Create(ctx context.Context, in EntryInput) (*Entry, error) {
	if in.Status == "" {
		in.Status = StatusDraft
	}
	return send[Entry](ctx, s.c, http.MethodPost, "/entries", in)
}

func (s *EntriesService) Update(ctx context.Context, id string, in EntryInput) (*Entry, error) {
	if err := requireID("entry", id); err != nil {
		return nil, err
	}
	return send[Entry](ctx, s.c, http.MethodPut, resourcePath("entries", id), in)
}

func (s *EntriesService) Delete(ctx context.Context, id string) error {
	if err := requireID("entry", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("entries", id))
}

func (s *EntriesService) Publish(ctx context.Context, id string) (*Entry, error) {
	if err := requireID("entry", id); err != nil {
		return nil, err
	}
	return send[Entry](ctx, s.c, http.MethodPost, resourcePath("entries", id, "publish"), nil)
}
