package postgres

import (
	"errors"
	"testing"
)

func TestRollbackErrorKeepsBothCauses(t *testing.T) {
	t.Parallel()

	cause := errors.New("callback failed")
	rbErr := errors.New("connection gone")

	err := rollbackError(cause, rbErr)
	if !errors.Is(err, cause) {
		t.Errorf("errors.Is(err, cause) = false, want true: %v", err)
	}
	if !errors.Is(err, rbErr) {
		t.Errorf("errors.Is(err, rbErr) = false, want true: %v", err)
	}
}
