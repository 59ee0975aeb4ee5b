package assistant

import (
	"errors"
	"fmt"
)

var (
	// ErrUnreachable means the daemon never answered the connectivity probe.
	ErrUnreachable = errors.New("llm daemon is not reachable")
	// ErrNoModels means discovery worked but nothing is installed.
	ErrNoModels = errors.New("no models installed")
	// ErrNotReady is returned by AI operations before EnsureReady succeeds.
	ErrNotReady = errors.New("assistant is not ready")
	// ErrModelNotInstalled means a requested model is missing from the catalog.
	ErrModelNotInstalled = errors.New("model is not installed")
)

// VerificationError means the selected model failed every verification check.
// The caller may pick another model with UseModel.
type VerificationError struct {
	Model string
}

func (e *VerificationError) Error() string {
	return fmt.Sprintf("model %q failed verification", e.Model)
}

// IsVerificationFailure reports whether err is a *VerificationError.
func IsVerificationFailure(err error) bool {
	var ve *VerificationError
	return errors.As(err, &ve)
}
