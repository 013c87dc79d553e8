package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthRequired     = fmt.Errorf("authorization required")
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTokenExpired     = fmt.Errorf("access token expired")

	// Cache and storage errors
	ErrNotFound = fmt.Errorf("not found")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")

	// Input validation errors
	ErrMalformedInput  = fmt.Errorf("malformed input")
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
)

// AuthRedirectError signals that the caller must send the user through an
// authorization flow before the operation can be retried. URL is the
// provider's authorize endpoint with all parameters attached.
type AuthRedirectError struct {
	URL string
}

func (e *AuthRedirectError) Error() string {
	return fmt.Sprintf("%v: redirect to %s", ErrAuthRequired, e.URL)
}

// Unwrap makes errors.Is(err, ErrAuthRequired) hold for redirect errors.
func (e *AuthRedirectError) Unwrap() error {
	return ErrAuthRequired
}
