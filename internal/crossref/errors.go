package crossref

import (
	"errors"
	"fmt"
)

// Common errors returned by the CrossRef client.
var (
	// ErrNotFound indicates the DOI is not registered with CrossRef.
	ErrNotFound = errors.New("not found in CrossRef")

	// ErrRateLimited indicates the rate limit has been exceeded.
	ErrRateLimited = errors.New("CrossRef rate limit exceeded")

	// ErrNetworkError indicates a network connectivity issue.
	ErrNetworkError = errors.New("network error communicating with CrossRef")

	// ErrInvalidResponse indicates an unexpected API response.
	ErrInvalidResponse = errors.New("invalid response from CrossRef")
)

// APIError represents an error status from the CrossRef REST API.
type APIError struct {
	StatusCode int
	Message    string
	DOI        string // For context in work lookups
}

func (e *APIError) Error() string {
	if e.DOI != "" {
		return fmt.Sprintf("CrossRef API error (status %d): %s (doi: %s)", e.StatusCode, e.Message, e.DOI)
	}
	return fmt.Sprintf("CrossRef API error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound returns true if the error indicates a resource was not found.
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 404
	}
	return false
}

// IsRateLimited returns true if the error indicates rate limiting.
func IsRateLimited(err error) bool {
	if errors.Is(err, ErrRateLimited) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429
	}
	return false
}
