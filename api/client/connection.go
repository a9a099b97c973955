// Package client is a Go client for the translation service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/brimdata/semq/api"
)

const DefaultURL = "http://localhost:9867"

type Connection struct {
	client        *http.Client
	defaultHeader http.Header
	url           string
}

func NewConnection() *Connection {
	return NewConnectionTo(DefaultURL)
}

func NewConnectionTo(url string) *Connection {
	return &Connection{
		client:        &http.Client{},
		defaultHeader: http.Header{},
		url:           strings.TrimRight(url, "/"),
	}
}

// SetAuthToken sends token as a bearer token on every request.
func (c *Connection) SetAuthToken(token string) {
	c.defaultHeader.Set("Authorization", "Bearer "+token)
}

func (c *Connection) Version(ctx context.Context) (string, error) {
	var v api.VersionResponse
	err := c.do(ctx, http.MethodGet, "/version", nil, api.MediaTypeJSON, &v)
	return v.Version, err
}

func (c *Connection) Translate(ctx context.Context, req api.TranslateRequest) (*api.TranslateResponse, error) {
	var resp api.TranslateResponse
	if err := c.do(ctx, http.MethodPost, "/translate", req, api.MediaTypeJSON, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TranslateText returns the formatted model and diagnostics.
func (c *Connection) TranslateText(ctx context.Context, req api.TranslateRequest) (string, error) {
	var sb strings.Builder
	err := c.do(ctx, http.MethodPost, "/translate", req, api.MediaTypeText, &sb)
	return sb.String(), err
}

func (c *Connection) do(ctx context.Context, method, path string, body any, accept string, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.url+path, r)
	if err != nil {
		return err
	}
	for k, v := range c.defaultHeader {
		req.Header[k] = v
	}
	req.Header.Set("Accept", accept)
	if body != nil {
		req.Header.Set("Content-Type", api.MediaTypeJSON)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr api.Error
		if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil || apiErr.Message == "" {
			return fmt.Errorf("status code %d: %s", resp.StatusCode, http.StatusText(resp.StatusCode))
		}
		return &apiErr
	}
	if w, ok := out.(io.Writer); ok {
		_, err = io.Copy(w, resp.Body)
		return err
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
