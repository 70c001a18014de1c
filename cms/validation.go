package cms

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
)

var (
	handlePattern       = regexp.MustCompile(`^[a-z][a-z0-9_-]*$`)
	routeSegmentPattern = regexp.MustCompile(`^(\{[a-zA-Z_][a-zA-Z0-9_]*\}|[a-zA-Z0-9._~-]+)$`)
	fieldPathPattern    = regexp.MustCompile(`^[a-z][a-z0-9_-]*(\.[a-z][a-z0-9_-]*)*$`)
)

func newValidator() (*validator.Validate, error) {
	v := validator.New(validator.WithRequiredStructEnabled())
	rules := map[string]validator.Func{
		"handle":        validateHandle,
		"route_pattern": validateRoutePattern,
		"field_path":    validateFieldPath,
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return nil, fmt.Errorf("failed to register %s validator: %w", tag, err)
		}
	}
	return v, nil
}

// validateHandle: lowercase machine name, e.g. "blog-post" or "hero_image".
func validateHandle(fl validator.FieldLevel) bool {
	return handlePattern.MatchString(fl.Field().String())
}

// validateRoutePattern accepts "/" or slash-separated literal and {param} segments.
func validateRoutePattern(fl validator.FieldLevel) bool {
	pattern := fl.Field().String()
	if pattern == "/" {
		return true
	}
	if !strings.HasPrefix(pattern, "/") {
		return false
	}
	seen := map[string]bool{}
	for _, segment := range strings.Split(strings.TrimSuffix(pattern[1:], "/"), "/") {
		if !routeSegmentPattern.MatchString(segment) {
			return false
		}
		if strings.HasPrefix(segment, "{") {
			if seen[segment] {
				return false
			}
			seen[segment] = true
		}
	}
	return true
}

// validateFieldPath: dotted path into a blueprint field tree, e.g. "seo.meta".
func validateFieldPath(fl validator.FieldLevel) bool {
	return fieldPathPattern.MatchString(fl.Field().String())
}

// check runs struct validation and any cross-field rules of v.
func (c *Client) check(v any) error {
	if err := c.validate.Struct(v); err != nil {
		return formatValidationErrors(err)
	}
	if cv, ok := v.(interface{ validateTree() error }); ok {
		if err := cv.validateTree(); err != nil {
			return fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
		}
	}
	return nil
}

func formatValidationErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %w", apperrors.ErrInvalidRequest, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fieldMessage(fe))
	}
	return fmt.Errorf("%w: %s", apperrors.ErrInvalidRequest, strings.Join(msgs, "; "))
}

func fieldMessage(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "handle":
		return field + " must be lowercase letters, digits, '-' or '_' and start with a letter"
	case "route_pattern":
		return field + " must start with '/' and contain only literal or {param} segments"
	case "field_path":
		return field + " must be a dotted field path"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s]", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "gte", "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	}
	return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
}

func requireID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("%w: %s id is required", apperrors.ErrInvalidRequest, kind)
	}
	return nil
}
