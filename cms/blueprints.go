package cms

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

// FieldType names the editor widget and storage shape of a field.
type FieldType string

const (
	FieldText     FieldType = "text"
	FieldTextarea FieldType = "textarea"
	FieldRichText FieldType = "richtext"
	FieldNumber   FieldType = "number"
	FieldBoolean  FieldType = "boolean"
	FieldDate     FieldType = "date"
	FieldSelect   FieldType = "select"
	FieldMedia    FieldType = "media"
	FieldRelation FieldType = "relation"
	FieldGroup    FieldType = "group" // nested fields
	FieldList     FieldType = "list"  // repeated nested fields
)

func (t FieldType) nested() bool {
	return t == FieldGroup || t == FieldList
}

// Field is one node of a blueprint's field tree. Readonly fields may come from
// an embedded blueprint; the server propagates that flag.
type Field struct {
	Name     string    `json:"name" yaml:"name" validate:"required,max=64,handle"`
	Label    string    `json:"label,omitempty" yaml:"label,omitempty" validate:"max=128"`
	Type     FieldType `json:"type" yaml:"type" validate:"required,oneof=text textarea richtext number boolean date select media relation group list"`
	Required bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Readonly bool      `json:"readonly,omitempty" yaml:"readonly,omitempty"`
	Options  []string  `json:"options,omitempty" yaml:"options,omitempty"`
	Fields   []Field   `json:"fields,omitempty" yaml:"fields,omitempty" validate:"dive"`
}

// Blueprint is a schema definition: a named tree of fields.
type Blueprint struct {
	ID     string  `json:"id" yaml:"id"`
	Name   string  `json:"name" yaml:"name"`
	Handle string  `json:"handle" yaml:"handle"`
	Fields []Field `json:"fields" yaml:"fields"`
}

// ErrStopWalk ends a Walk early without reporting an error.
var ErrStopWalk = errors.New("stop walk")

// Walk visits every field depth-first, parents before children, with its
// dotted path (e.g. "seo.title").
func (b *Blueprint) Walk(fn func(path string, f Field) error) error {
	err := walkFields("", b.Fields, fn)
	if errors.Is(err, ErrStopWalk) {
		return nil
	}
	return err
}

func walkFields(prefix string, fields []Field, fn func(string, Field) error) error {
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if err := fn(path, f); err != nil {
			return err
		}
		if err := walkFields(path, f.Fields, fn); err != nil {
			return err
		}
	}
	return nil
}

type BlueprintInput struct {
	Name   string  `json:"name" validate:"required,max=128"`
	Handle string  `json:"handle" validate:"required,max=64,handle"`
	Fields []Field `json:"fields" validate:"dive"`
}

// validateTree checks the shape rules tags cannot express: unique sibling
// names, and children only under group and list fields.
func (in BlueprintInput) validateTree() error {
	return validateFieldTree("", in.Fields)
}

func validateFieldTree(prefix string, fields []Field) error {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		path := f.Name
		if prefix != "" {
			path = prefix + "." + f.Name
		}
		if _, dup := seen[f.Name]; dup {
			return fmt.Errorf("duplicate field %q", path)
		}
		seen[f.Name] = struct{}{}

		switch {
		case f.Type.nested() && len(f.Fields) == 0:
			return fmt.Errorf("field %q of type %s needs at least one child field", path, f.Type)
		case !f.Type.nested() && len(f.Fields) > 0:
			return fmt.Errorf("field %q of type %s cannot have child fields", path, f.Type)
		case f.Type == FieldSelect && len(f.Options) == 0:
			return fmt.Errorf("select field %q needs options", path)
		}
		if err := validateFieldTree(path, f.Fields); err != nil {
			return err
		}
	}
	return nil
}

// Embed places another blueprint's fields at Path inside a blueprint.
type Embed struct {
	ID                  string `json:"id" yaml:"id"`
	BlueprintID         string `json:"blueprint_id" yaml:"blueprint_id"`
	EmbeddedBlueprintID string `json:"embedded_blueprint_id" yaml:"embedded_blueprint_id"`
	Path                string `json:"path" yaml:"path"`
	Readonly            bool   `json:"readonly" yaml:"readonly"`
}

type EmbedInput struct {
	EmbeddedBlueprintID string `json:"embedded_blueprint_id" validate:"required"`
	Path                string `json:"path" validate:"required,max=256,field_path"`
	Readonly            bool   `json:"readonly"`
}

type BlueprintsService struct {
	c *Client
}

func (s *BlueprintsService) List(ctx context.Context, opts ListOptions) (*Page[Blueprint], error) {
	return list[Blueprint](ctx, s.c, "/blueprints", opts, nil)
}

func (s *BlueprintsService) Get(ctx context.Context, id string) (*Blueprint, error) {
	if err := requireID("blueprint", id); err != nil {
		return nil, err
	}
	return send[Blueprint](ctx, s.c, http.MethodGet, resourcePath("blueprints", id), nil)
}

func (s *BlueprintsService) Create(ctx context.Context, in BlueprintInput) (*Blueprint, error) {
	return send[Blueprint](ctx, s.c, http.MethodPost, "/blueprints", in)
}

func (s *BlueprintsService) Update(ctx context.Context, id string, in BlueprintInput) (*Blueprint, error) {
	if err := requireID("blueprint", id); err != nil {
		return nil, err
	}
	return send[Blueprint](ctx, s.c, http.MethodPut, resourcePath("blueprints", id), in)
}

func (s *BlueprintsService) Delete(ctx context.Context, id string) error {
	if err := requireID("blueprint", id); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("blueprints", id))
}

// ListEmbeds returns the blueprints embedded into blueprintID.
func (s *BlueprintsService) ListEmbeds(ctx context.Context, blueprintID string) ([]Embed, error) {
	if err := requireID("blueprint", blueprintID); err != nil {
		return nil, err
	}
	embeds, err := send[[]Embed](ctx, s.c, http.MethodGet, resourcePath("blueprints", blueprintID, "embeds"), nil)
	if err != nil {
		return nil, err
	}
	return *embeds, nil
}

// CreateEmbed embeds another blueprint. The server rejects embeds that would
// form a cycle (409).
func (s *BlueprintsService) CreateEmbed(ctx context.Context, blueprintID string, in EmbedInput) (*Embed, error) {
	if err := requireID("blueprint", blueprintID); err != nil {
		return nil, err
	}
	if in.EmbeddedBlueprintID == blueprintID {
		return nil, fmt.Errorf("%w: a blueprint cannot embed itself", ErrInvalidRequest)
	}
	return send[Embed](ctx, s.c, http.MethodPost, resourcePath("blueprints", blueprintID, "embeds"), in)
}

func (s *BlueprintsService) DeleteEmbed(ctx context.Context, blueprintID, embedID string) error {
	if err := requireID("blueprint", blueprintID); err != nil {
		return err
	}
	if err := requireID("embed", embedID); err != nil {
		return err
	}
	return s.c.remove(ctx, resourcePath("blueprints", blueprintID, "embeds", embedID))
}

// GetEmbeddableBlueprints lists the blueprints that can be embedded into
// blueprintID without creating a cycle.
func (s *BlueprintsService) GetEmbeddableBlueprints(ctx context.Context, blueprintID string) ([]Blueprint, error) {
	if err := requireID("blueprint", blueprintID); err != nil {
		return nil, err
	}
	bps, err := send[[]Blueprint](ctx, s.c, http.MethodGet, resourcePath("blueprints", blueprintID, "embeddable"), nil)
	if err != nil {
		return nil, err
	}
	return *bps, nil
}
