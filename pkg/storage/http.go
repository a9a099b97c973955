package storage

import (
	"context"
	"fmt"
	"io/fs"
	"net/http"
)

type HTTP struct {
	client *http.Client
}

var _ Engine = (*HTTP)(nil)

func NewHTTP(client *http.Client) *HTTP {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTP{client: client}
}

func (h *HTTP) Get(ctx context.Context, u *URI) (Reader, error) {
	resp, err := h.do(ctx, http.MethodGet, u)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (h *HTTP) Exists(ctx context.Context, u *URI) (bool, error) {
	resp, err := h.do(ctx, http.MethodHead, u)
	if err != nil {
		if err == fs.ErrNotExist {
			return false, nil
		}
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

func (h *HTTP) do(ctx context.Context, method string, u *URI) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fs.ErrNotExist
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		resp.Body.Close()
		return nil, fmt.Errorf("%s %s: %s", method, u, resp.Status)
	}
	return resp, nil
}
