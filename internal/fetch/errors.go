package fetch

import (
	"context"
	"errors"
	"fmt"

	"github.com/FranksOps/reelcheck/internal/storage"
)

var (
	// ErrRelayTimeout marks one attempt that exceeded its per-attempt timeout.
	ErrRelayTimeout = errors.New("relay timed out")
	// ErrRelayHTTP marks a relay that answered with a non-2xx status.
	ErrRelayHTTP = errors.New("relay returned non-success status")
	// ErrRelayNetwork marks transport failures: DNS, refused connections,
	// TLS errors, truncated bodies.
	ErrRelayNetwork = errors.New("relay unreachable")
	// ErrAllRelaysExhausted is matched by every ExhaustedError.
	ErrAllRelaysExhausted = errors.New("all relays failed")
	// ErrNoRelays is returned when the relay list is empty.
	ErrNoRelays = errors.New("no relays configured")
)

// HTTPStatusError is a relay reply outside the 2xx range.
type HTTPStatusError struct {
	Relay      string
	StatusCode int
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("relay %s: HTTP error: %d", e.Relay, e.StatusCode)
}

func (e *HTTPStatusError) Is(target error) bool {
	return target == ErrRelayHTTP
}

// ExhaustedError is returned after every relay has been tried once without
// success. Last is the error of the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all relays failed after %d attempts: %v", e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() []error {
	return []error{ErrAllRelaysExhausted, e.Last}
}

// Categorize maps a fetch error onto the recorded error kind. Only the last
// attempt counts: a run where the first relay timed out and the second
// answered 503 is not a timeout.
func Categorize(err error) storage.ErrorKind {
	switch {
	case err == nil:
		return storage.ErrorNone
	case errors.Is(err, ErrRelayTimeout), errors.Is(err, context.DeadlineExceeded):
		return storage.ErrorTimeout
	case errors.Is(err, ErrRelayNetwork), errors.Is(err, ErrNoRelays):
		return storage.ErrorUnreachable
	default:
		return storage.ErrorOther
	}
}

// Message returns the human readable text stored on a failed record.
func Message(err error) string {
	switch Categorize(err) {
	case storage.ErrorNone:
		return ""
	case storage.ErrorTimeout:
		return "response took too long (timeout)"
	case storage.ErrorUnreachable:
		return "unreachable through relays"
	}

	var exhausted *ExhaustedError
	if errors.As(err, &exhausted) && exhausted.Last != nil {
		err = exhausted.Last
	}
	var status *HTTPStatusError
	if errors.As(err, &status) {
		return fmt.Sprintf("HTTP error: %d", status.StatusCode)
	}
	return err.Error()
}
