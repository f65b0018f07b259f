package extract

import "errors"

var (
	// ErrUnavailable indicates the extractor service is unreachable.
	ErrUnavailable = errors.New("extractor service unavailable")

	// ErrTimeout indicates the extraction request exceeded the configured timeout.
	ErrTimeout = errors.New("extraction request timed out")

	// ErrInvalidOutput indicates the extractor response could not be parsed
	// into the expected structured format.
	ErrInvalidOutput = errors.New("invalid extractor output format")

	// ErrRetryExhausted indicates all retry attempts have been exhausted.
	ErrRetryExhausted = errors.New("extractor retry attempts exhausted")
)
