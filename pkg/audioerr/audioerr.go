// Package audioerr defines the error kinds shared by every stage of the
// fingerprinting and matching pipeline. Callers branch on kind with
// errors.Is against the sentinels below rather than matching error strings.
package audioerr

import "errors"

var (
	// ErrInput marks unplayable audio, unsupported parameters, or empty input.
	ErrInput = errors.New("input error")

	// ErrProcessing marks a numerical failure in a DSP stage (non-finite samples).
	ErrProcessing = errors.New("processing error")

	// ErrStorage marks a persistence failure, constraint violation, or corruption.
	ErrStorage = errors.New("storage error")

	// ErrCancelled marks cooperative cancellation of an ingest or identify operation.
	ErrCancelled = errors.New("cancelled")

	// ErrTimeout marks an identify operation that exceeded its wall-clock budget.
	ErrTimeout = errors.New("timeout")
)

// Input wraps err as an InputError, attaching context via msg.
func Input(msg string, err error) error {
	return &wrapped{kind: ErrInput, msg: msg, err: err}
}

// Processing wraps err as a ProcessingError.
func Processing(msg string, err error) error {
	return &wrapped{kind: ErrProcessing, msg: msg, err: err}
}

// Storage wraps err as a StorageError.
func Storage(msg string, err error) error {
	return &wrapped{kind: ErrStorage, msg: msg, err: err}
}

// Cancelled wraps err as a CancelledError.
func Cancelled(msg string, err error) error {
	return &wrapped{kind: ErrCancelled, msg: msg, err: err}
}

// Timeout wraps err as a TimeoutError.
func Timeout(msg string, err error) error {
	return &wrapped{kind: ErrTimeout, msg: msg, err: err}
}

type wrapped struct {
	kind error
	msg  string
	err  error
}

func (w *wrapped) Error() string {
	if w.err == nil {
		return w.msg + ": " + w.kind.Error()
	}
	return w.msg + ": " + w.err.Error()
}

func (w *wrapped) Unwrap() []error {
	return []error{w.kind, w.err}
}
