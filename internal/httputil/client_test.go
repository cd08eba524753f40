// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pdiddy/atlas/pkg/types"
)

func TestNewClient_SetsHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	client := NewClient(types.HTTPConfig{UserAgent: "atlas/test"}, map[string]string{
		"X-Title": "Atlas.phil Research Suite",
		"X-Empty": "",
	})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "atlas/test", got.Get("User-Agent"))
	assert.Equal(t, "Atlas.phil Research Suite", got.Get("X-Title"))
	assert.Empty(t, got.Get("X-Empty"))
}

func TestHeaderTransport_KeepsRequestHeaders(t *testing.T) {
	var got http.Header
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
	}))
	defer ts.Close()

	client := NewClient(types.HTTPConfig{}, map[string]string{"X-Title": "default"})

	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	require.NoError(t, err)
	req.Header.Set("X-Title", "explicit")

	resp, err := client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "explicit", got.Get("X-Title"))
	assert.Empty(t, req.Header.Get("User-Agent"), "original request must not be mutated")
}

func TestNewClient_Timeout(t *testing.T) {
	client := NewClient(types.HTTPConfig{Timeout: 3 * time.Second}, nil)
	assert.Equal(t, 3*time.Second, client.Timeout)
}
