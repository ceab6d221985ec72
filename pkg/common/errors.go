package common

import (
	"github.com/pkg/errors"
)

var (
	// ErrOperationAborted is returned when the operation was aborted e.g. by a shutdown signal.
	ErrOperationAborted = errors.New("operation was aborted")
	// ErrInvariantViolated is returned when stored state contradicts an invariant that was checked on write.
	ErrInvariantViolated = errors.New("invariant violated")
)

// SoftError is an error that is logged but does not abort the surrounding operation.
type SoftError struct {
	Err error
}

func (se SoftError) Error() string {
	return se.Err.Error()
}

func (se SoftError) Unwrap() error {
	return se.Err
}
