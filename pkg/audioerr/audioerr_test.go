package audioerr

import (
	"errors"
	"testing"
)

func TestInputWrapsErrInput(t *testing.T) {
	cause := errors.New("bad sample rate")
	err := Input("decode wav", cause)
	if !errors.Is(err, ErrInput) {
		t.Errorf("expected errors.Is(err, ErrInput) to hold")
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause to be unwrappable")
	}
}

func TestStorageWrapsErrStorage(t *testing.T) {
	cause := errors.New("disk full")
	err := Storage("insert fingerprints", cause)
	if !errors.Is(err, ErrStorage) {
		t.Errorf("expected errors.Is(err, ErrStorage) to hold")
	}
}

func TestProcessingWrapsErrProcessing(t *testing.T) {
	cause := errors.New("nan sample")
	err := Processing("compute fft", cause)
	if !errors.Is(err, ErrProcessing) {
		t.Errorf("expected errors.Is(err, ErrProcessing) to hold")
	}
}

func TestCancelledWrapsErrCancelled(t *testing.T) {
	cause := errors.New("context canceled")
	err := Cancelled("insert fingerprints", cause)
	if !errors.Is(err, ErrCancelled) {
		t.Errorf("expected errors.Is(err, ErrCancelled) to hold")
	}
}

func TestTimeoutWrapsErrTimeout(t *testing.T) {
	cause := errors.New("deadline exceeded")
	err := Timeout("identify timed out", cause)
	if !errors.Is(err, ErrTimeout) {
		t.Errorf("expected errors.Is(err, ErrTimeout) to hold")
	}
}

func TestInputWithNilCause(t *testing.T) {
	err := Input("empty input", nil)
	if err == nil {
		t.Fatalf("expected non-nil error")
	}
}
