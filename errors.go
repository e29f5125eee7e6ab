package mt

import (
	"errors"
	"fmt"
	"strings"
)

// ConfigError reports required settings that were missing from the
// environment. All missing names are collected so a misconfigured
// deployment can be fixed in one pass.
type ConfigError struct {
	Missing []string
}

func (e *ConfigError) Error() string {
	return "mt: missing configuration: " + strings.Join(e.Missing, ", ")
}

// AuthError is returned when the authentication handshake fails.
// The raw response body is kept for diagnostics; credentials are never
// included.
type AuthError struct {
	Status int
	Body   string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("mt: authentication failed: status %d: %s", e.Status, e.Body)
}

// TokenError is returned when a session exists but minting an access
// token from it fails.
type TokenError struct {
	Status int
	Body   string
}

func (e *TokenError) Error() string {
	return fmt.Sprintf("mt: token exchange failed: status %d: %s", e.Status, e.Body)
}

// APIError is returned for any non-2xx response on a data call.
type APIError struct {
	Status     int
	StatusText string
	Body       string
	URL        string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("mt: API returned %d %s for %s: %s", e.Status, e.StatusText, e.URL, e.Body)
}

// NotFoundError is returned when a single-entry fetch reports 404,
// distinct from a generic APIError.
type NotFoundError struct {
	ContentTypeID string
	EntryID       string
	Err           *APIError
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("mt: entry %s not found in content type %s", e.EntryID, e.ContentTypeID)
}

func (e *NotFoundError) Unwrap() error {
	return e.Err
}

// UnknownContentTypeError is returned when a logical content type name
// is absent from the registry and not resolvable from the live CMS.
type UnknownContentTypeError struct {
	Name string
}

func (e *UnknownContentTypeError) Error() string {
	return fmt.Sprintf("mt: unknown content type %q", e.Name)
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}
