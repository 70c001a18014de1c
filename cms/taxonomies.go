package cms

import (
	"context"
	"net/http"
)

// Taxonomy is a vocabulary of terms (tags, categories) entries can be filed under.
type Taxonomy struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Handle       string `json:"handle" yaml:"handle"`
	Hierarchical bool   `json:"hierarchical" yaml:"hierarchical"`
}

type TaxonomyInput struct {
	Name         string `json:"name" validate:"required,max=128"`
	Handle       string `json:"handle" validate:"required,max=64,handle"`
	Hierarchical bool   `json:"hierarchical"`
}

type Term struct {
	ID         string `json:"id" yaml:"id"`
	TaxonomyID string `json:"taxonomy_id" yaml:"taxonomy_id"`
	Name       string `json:"name" yaml:"name"`
	Slug       string `json:"slug" yaml:"slug"`
	ParentID   string `json:"parent_id,omitempty" yaml:"parent_id,omitempty"`
}

type TermInput struct {
	Name     string `json:"name" validate:"required,max=128"`
	Slug     string `json:"slug" validate:"required,max=128,handle"`
	ParentID string `json:"parent_id,omitempty"`
}

type TaxonomiesService struct {
	c *Client
}

func (s *TaxonomiesService) List(ctx context.Context, opts ListOptions) (*Page[Taxonomy], error) {
	return list[Taxonomy](ctx, s.c, "/taxonomies", opts, nil)
}

func (s *TaxonomiesService) Get(ctx context.Context, id string) (*Taxonomy, error) {
	if err := requireID("taxonomy", id); err != nil {
		return nil, err
	}
	return send[Taxonomy](ctx, s.c, http.MethodGet, resourcePath("taxonomies", id), nil)
}

func (s *TaxonomiesService) Create(ctx context.Context, in TaxonomyInput) (*Taxonomy, error) {
	return send[Taxonomy](ctx, s.c, http.MethodPost, "/taxonomies", in)
}

func (s *TaxonomiesService) Update(ctx context.Context, id string, in TaxonomyInput) (*Taxonomy, error) {
	if err := requireID("taxonomy", id); err != nil {
		return nil, err
	}
	return send[Taxonomy](ctx, s.c, http.MethodPut, resourcePath("taxonomies", id), in)
}

func (s *TaxonomiesService) Delete(ctx context.Context, id string) error {
	if err := requireID("taxonomy", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("taxonomies", id))
}

func (s *TaxonomiesService) ListTerms(ctx context.Context, taxonomyID string, opts ListOptions) (*Page[Term], error) {
	if err := requireID("taxonomy", taxonomyID); err != nil {
		return nil, err
	}
	return list[Term](ctx, s.c, resourcePath("taxonomies", taxonomyID, "terms"), opts, nil)
}

// CreateTerm adds a term. ParentID is only meaningful for hierarchical taxonomies;
// the API rejects it otherwise.
func (s *TaxonomiesService) CreateTerm(ctx context.Context, taxonomyID string, in TermInput) (*Term, error) {
	if err := requireID("taxonomy", taxonomyID); err != nil {
		return nil, err
	}
	return send[Term](ctx, s.c, http.MethodPost, resourcePath("taxonomies", taxonomyID, "terms"), in)
}
