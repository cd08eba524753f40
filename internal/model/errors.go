// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package model

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/pdiddy/atlas/pkg/types"
)

// ErrMissingCredential is returned when no provider credential is configured.
var ErrMissingCredential = errors.New("no model provider credential configured")

// ErrEmptyResponse is wrapped in an UpstreamError when a successful response
// carries no choices.
var ErrEmptyResponse = errors.New("provider returned no choices")

// NetworkError is a transport-level failure reaching the provider, including
// a per-stage deadline expiring while the call is in flight.
type NetworkError struct {
	Provider types.Provider
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: network error: %v", e.Provider, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Timeout reports whether the failure was a deadline.
func (e *NetworkError) Timeout() bool {
	if errors.Is(e.Err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(e.Err, &ne) && ne.Timeout()
}

// UpstreamError is a non-success response from the provider. Message is the
// provider's message verbatim.
type UpstreamError struct {
	Provider   types.Provider
	StatusCode int
	Message    string
	Err        error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: upstream error %d: %s", e.Provider, e.StatusCode, e.Message)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// IsCredential reports whether the provider rejected the credential.
func (e *UpstreamError) IsCredential() bool {
	return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
}

// Retryable reports whether a caller could reasonably retry later. The
// client itself never retries.
func (e *UpstreamError) Retryable() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 500:
		return true
	}
	return false
}

// IsCredentialProblem reports whether err is a missing or rejected credential.
func IsCredentialProblem(err error) bool {
	if errors.Is(err, ErrMissingCredential) {
		return true
	}
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.IsCredential()
}

// IsTransient reports whether err is a network failure or a retryable
// upstream status.
func IsTransient(err error) bool {
	var ne *NetworkError
	if errors.As(err, &ne) {
		return true
	}
	var ue *UpstreamError
	return errors.As(err, &ue) && ue.Retryable()
}
