package http

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request represents an HTTP request
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// NewRequest creates a new HTTP request
func NewRequest(method, path string) *Request {
	return &Request{
		Method:  method,
		Path:    path,
		Headers: make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// URL resolves the request path against base. Absolute paths are used
// unchanged.
func (r *Request) URL(base *url.URL) (*url.URL, error) {
	ref, err := url.Parse(r.Path)
	if err != nil {
		return nil, err
	}
	if base == nil || ref.IsAbs() {
		return ref, nil
	}

	u := *base
	// Join the base URL path with the request path
	if u.Path == "" {
		u.Path = "/" + strings.TrimLeft(ref.Path, "/")
	} else {
		u.Path = strings.TrimRight(u.Path, "/") + "/" + strings.TrimLeft(ref.Path, "/")
	}
	u.RawQuery = ref.RawQuery
	return &u, nil
}

// Build constructs an http.Request from the Request
func (r *Request) Build(ctx context.Context, base *url.URL) (*http.Request, error) {
	reqURL, err := r.URL(base)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if len(r.Body) > 0 {
		bodyReader = bytes.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(r.Method), reqURL.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}
	if len(r.Body) > 0 && req.Header.Get("Content-Type") == "" && isJSON(r.Body) {
		req.Header.Set("Content-Type", "application/json")
	}

	return req, nil
}

func isJSON(body []byte) bool {
	trimmed := bytes.TrimSpace(body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}
