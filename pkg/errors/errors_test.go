package errors

import (
	stderrors "errors"
	"testing"
)

func TestWrap_Nil(t *testing.T) {
	if Wrap(nil, "ctx") != nil {
		t.Error("expected nil for nil error")
	}
	if Wrapf(nil, "ctx %d", 1) != nil {
		t.Error("expected nil for nil error")
	}
}

func TestWrap_KeepsCause(t *testing.T) {
	cause := stderrors.New("boom")

	err := Wrapf(cause, "write %s", "hero-1.jpg")
	if err.Error() != "write hero-1.jpg: boom" {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if !stderrors.Is(err, cause) {
		t.Error("wrapped error should unwrap to cause")
	}
}
