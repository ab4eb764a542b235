package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrRateLimited        = fmt.Errorf("rate limited")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")

	// Source errors
	ErrSourceUnavailable = fmt.Errorf("source catalog unavailable")
	ErrSnapshotNotFound  = fmt.Errorf("snapshot not found")

	// Persistence errors
	ErrNotFound   = fmt.Errorf("record not found")
	ErrLockHeld   = fmt.Errorf("another catalogx process holds the lock")
	ErrValidation = fmt.Errorf("validation failed")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
