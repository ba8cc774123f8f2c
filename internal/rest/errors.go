package rest

import (
	"errors"
	"fmt"
)

// APIError is a non-2xx response from the backend.
type APIError struct {
	Status int
	Method string
	Path   string
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.Status)
}

// IsAuthError reports whether err is a 401 or 403 response, meaning the
// stored token is no longer accepted.
func IsAuthError(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && (apiErr.Status == 401 || apiErr.Status == 403)
}
