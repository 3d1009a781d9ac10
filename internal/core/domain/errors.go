package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration marks invalid input detected before any network activity.
	ErrConfiguration = errors.New("configuration error")

	// ErrInvalidPayload is returned when a gateway answers with a body that is not JSON.
	ErrInvalidPayload = errors.New("invalid JSON payload")
)

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}

// ConfigErrorf builds an error wrapping ErrConfiguration.
func ConfigErrorf(format string, args ...any) error {
	return configErrorf(format, args...)
}

// FetchError describes a failure to fetch or persist one height.
type FetchError struct {
	Height  int64
	Gateway string
	Proxy   string
	Err     error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("height %d via gateway %s (proxy %s): %v", e.Height, e.Gateway, e.Proxy, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}
