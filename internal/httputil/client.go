// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides the HTTP client shared by components that call
// upstream providers.
package httputil

import (
	"net/http"

	"github.com/pdiddy/atlas/pkg/types"
)

// NewClient returns an http.Client honoring cfg.Timeout that sets the
// User-Agent and any extra headers on every request. Headers already present
// on a request are left untouched.
func NewClient(cfg types.HTTPConfig, headers map[string]string) *http.Client {
	h := make(http.Header, len(headers)+1)
	if cfg.UserAgent != "" {
		h.Set("User-Agent", cfg.UserAgent)
	}
	for k, v := range headers {
		if v != "" {
			h.Set(k, v)
		}
	}
	return &http.Client{
		Timeout:   cfg.Timeout,
		Transport: &HeaderTransport{Base: http.DefaultTransport, Header: h},
	}
}

// HeaderTransport is an http.RoundTripper that adds static headers.
type HeaderTransport struct {
	Base   http.RoundTripper
	Header http.Header
}

// RoundTrip clones req, adds the missing headers, and delegates to Base.
func (t *HeaderTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}
	if len(t.Header) == 0 {
		return base.RoundTrip(req)
	}

	out := req.Clone(req.Context())
	for k, vs := range t.Header {
		if out.Header.Get(k) != "" && k != "User-Agent" {
			continue
		}
		out.Header[k] = append([]string(nil), vs...)
	}
	return base.RoundTrip(out)
}
