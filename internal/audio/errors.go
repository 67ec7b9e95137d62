package audio

import (
	"errors"
	"fmt"
	"time"
)

// ErrEmptyInput is returned for a zero-length upload, before any decode attempt.
var ErrEmptyInput = errors.New("audio: empty input")

// ErrUnsupportedFormat indicates a transcoder has no decoder for the format hint.
var ErrUnsupportedFormat = errors.New("audio: unsupported format")

// errUnsupportedEncoding marks WAV containers the direct decoder cannot read.
var errUnsupportedEncoding = errors.New("audio: unsupported wav encoding")

// DecodeError reports data that could not be turned into PCM.
type DecodeError struct {
	Format string
	Err    error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("audio: decode %s: %v", e.Format, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// TooShortError is returned by the Gate for clips under the minimum duration.
type TooShortError struct {
	Duration time.Duration
	Minimum  time.Duration
}

func (e *TooShortError) Error() string {
	return fmt.Sprintf("Audio too short: %.2f seconds (minimum %.1f seconds)", e.Duration.Seconds(), e.Minimum.Seconds())
}

// IsDecodeError checks whether err is a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}
