package idgen

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrServerIDRequired = errors.New("server_id must be set")
	// ErrTimestampOverflow means the clock is past the last millisecond the
	// layout's timestamp field can hold.
	ErrTimestampOverflow = errors.New("timestamp exceeds layout range")
)

// ConfigError is returned by New when the generator cannot be built.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("idgen config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// ClockRewindError is returned by NextID when the clock reads earlier than
// the last minted timestamp. Skew is how far behind it was.
type ClockRewindError struct {
	Skew time.Duration
}

func (e *ClockRewindError) Error() string {
	return fmt.Sprintf("clock moved backwards by %s, refusing to generate id", e.Skew)
}

// IsClockRewind reports whether err carries a ClockRewindError.
func IsClockRewind(err error) bool {
	var rewind *ClockRewindError
	return errors.As(err, &rewind)
}
