package transport

import (
	"encoding/json"
	"fmt"
	"net/http"

	apperrors "github.com/jrsteele09/go-cms-admin/internal/errors"
)

// StatusError is returned for any response with status >= 400. It carries the
// full response so callers (and the refresh coordinator) can inspect it.
type StatusError struct {
	Response *Response
	// Message is the API's error description when the body had one
	Message string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error %d: %s", e.Response.Status, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.Response.Status, http.StatusText(e.Response.Status))
}

// Is maps well-known statuses onto the shared sentinel errors.
func (e *StatusError) Is(target error) bool {
	switch e.Response.Status {
	case http.StatusUnauthorized:
		return target == apperrors.ErrUnauthorized
	case http.StatusForbidden:
		return target == apperrors.ErrForbidden
	case http.StatusNotFound:
		return target == apperrors.ErrNotFound
	case http.StatusConflict:
		return target == apperrors.ErrConflict
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return target == apperrors.ErrInvalidRequest
	}
	return false
}

// ResponseOf returns the response embedded in err's chain, if any.
func ResponseOf(err error) (*Response, bool) {
	var se *StatusError
	if apperrors.As(err, &se) && se.Response != nil {
		return se.Response, true
	}
	return nil, false
}

// StatusOf returns the HTTP status carried by a response or an error wrapping
// one. Zero means no HTTP outcome is available.
func StatusOf(resp *Response, err error) int {
	if err != nil {
		if r, ok := ResponseOf(err); ok {
			return r.Status
		}
		return 0
	}
	if resp == nil {
		return 0
	}
	return resp.Status
}

func newStatusError(resp *Response) *StatusError {
	se := &StatusError{Response: resp}
	var body struct {
		Error       string `json:"error"`
		Message     string `json:"message"`
		Description string `json:"error_description"`
	}
	if json.Unmarshal(resp.Body, &body) == nil {
		switch {
		case body.Message != "":
			se.Message = body.Message
		case body.Description != "":
			se.Message = body.Description
		default:
			se.Message = body.Error
		}
	}
	return se
}
