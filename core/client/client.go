/*Package client provides easy and fast in-process access to a REST api.

Instead of marshalling HTTP, the client talks directly to the mux router.
It is perfectly suited for unit tests and for handlers that need to call
other handlers to fulfill their task.
*/
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
)

// Client provides easy access to the REST API.
type Client struct {
	router *mux.Router
	ctx    context.Context

	defaultHeaders map[string]string
}

// NewWithRouter creates a client to make pseudo-REST requests to the
// backend, through the mux router.
func NewWithRouter(router *mux.Router) Client {
	return Client{
		router:         router,
		defaultHeaders: map[string]string{},
	}
}

// WithHeader returns a new client with a default header added.
func (c Client) WithHeader(key string, value string) Client {
	headers := map[string]string{key: value}
	for k, v := range c.defaultHeaders {
		headers[k] = v
	}
	c.defaultHeaders = headers
	return c
}

// WithToken returns a new client carrying the opaque token in the given
// header.
func (c Client) WithToken(header, code string) Client {
	return c.WithHeader(header, code)
}

// WithContext returns a new client with a specific request context.
func (c Client) WithContext(ctx context.Context) Client {
	c.ctx = ctx
	return c
}

func (c Client) context() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// RawDo makes a request with a raw body and returns status and response
// body.
func (c Client) RawDo(method, path string, body []byte) (int, []byte, http.Header, error) {
	r := httptest.NewRequest(method, path, bytes.NewReader(body)).WithContext(c.context())
	for key, value := range c.defaultHeaders {
		r.Header.Set(key, value)
	}
	rec := httptest.NewRecorder()
	c.router.ServeHTTP(rec, r)
	res := rec.Result()
	defer res.Body.Close()
	resBody, _ := io.ReadAll(res.Body)
	return res.StatusCode, resBody, res.Header, nil
}

func (c Client) do(method, path string, body, result any) (int, error) {
	var data []byte
	if body != nil {
		var err error
		data, err = json.Marshal(body)
		if err != nil {
			return 0, err
		}
	}
	status, resBody, _, err := c.RawDo(method, path, data)
	if err != nil {
		return status, err
	}
	if result != nil && len(resBody) > 0 {
		if err := json.Unmarshal(resBody, result); err != nil {
			return status, fmt.Errorf("cannot unmarshal response of %s %s: %w", method, path, err)
		}
	}
	return status, nil
}

// Get makes a GET request and unmarshals the response into result.
func (c Client) Get(path string, result any) (int, error) {
	return c.do(http.MethodGet, path, nil, result)
}

// Post makes a POST request with a JSON body.
func (c Client) Post(path string, body, result any) (int, error) {
	return c.do(http.MethodPost, path, body, result)
}

// Patch makes a PATCH request with a JSON body.
func (c Client) Patch(path string, body, result any) (int, error) {
	return c.do(http.MethodPatch, path, body, result)
}

// Delete makes a DELETE request.
func (c Client) Delete(path string, result any) (int, error) {
	return c.do(http.MethodDelete, path, nil, result)
}
