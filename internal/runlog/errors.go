package runlog

import (
	"errors"
	"fmt"
)

var (
	ErrStopped     = errors.New("run log stopped")
	ErrCircuitOpen = errors.New("run log paused after repeated store failures")
)

// NoRetry marks a store error as permanent so the writer gives up on the
// record immediately.
func NoRetry(err error) error {
	if err == nil {
		return nil
	}
	return noRetryError{err: err}
}

func IsNoRetry(err error) bool {
	var e noRetryError
	return errors.As(err, &e)
}

type noRetryError struct{ err error }

func (e noRetryError) Error() string { return fmt.Sprintf("no-retry: %v", e.err) }
func (e noRetryError) Unwrap() error { return e.err }
