package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// Request describes one API call. Body is held as bytes so a retried call
// sends exactly the same payload.
type Request struct {
	Method      string
	Path        string // relative to the client's base URL
	Query       url.Values
	Header      http.Header
	Body        []byte
	ContentType string
}

// JSONRequest marshals v as the request body.
func JSONRequest(method, path string, v any) (Request, error) {
	req := Request{Method: method, Path: path}
	if v == nil {
		return req, nil
	}
	body, err := json.Marshal(v)
	if err != nil {
		return Request{}, fmt.Errorf("[transport JSONRequest] marshal body: %w", err)
	}
	req.Body = body
	req.ContentType = contentTypeJSON
	return req, nil
}

// Response is the uniform outcome of a call, successful or not.
type Response struct {
	Status    int
	Header    http.Header
	Body      []byte
	RequestID string
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r != nil && r.Status >= 200 && r.Status < 300
}

// Decode unmarshals the JSON body into v. An empty body leaves v untouched.
func (r *Response) Decode(v any) error {
	if r == nil || len(r.Body) == 0 || v == nil {
		return nil
	}
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("[transport Decode] status %d: %w", r.Status, err)
	}
	return nil
}
