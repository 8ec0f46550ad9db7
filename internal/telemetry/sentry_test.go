package telemetry

import (
	"errors"
	"testing"
)

func TestInit_EmptyDSNDisables(t *testing.T) {
	r, err := Init("", "test", "dev")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Enabled() {
		t.Error("reporter should be disabled without a DSN")
	}

	// Must be safe no-ops.
	r.CaptureError(errors.New("boom"), map[string]string{"tool": "fetch"})
	r.Flush()
}

func TestInit_InvalidDSN(t *testing.T) {
	if _, err := Init("not a dsn", "test", "dev"); err == nil {
		t.Error("expected error for malformed DSN")
	}
}

func TestReporter_NilIsDisabled(t *testing.T) {
	var r *Reporter
	if r.Enabled() {
		t.Error("nil reporter must be disabled")
	}
	r.CaptureError(errors.New("boom"), nil)
	r.Flush()
}
