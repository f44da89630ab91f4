package domain

import (
	"errors"
	"fmt"
)

// Error kinds surfaced by the core. Wrap causes with Wrap or fmt.Errorf("%w").
var (
	ErrNotFound            = errors.New("not_found")
	ErrNotAcquirable       = errors.New("not_acquirable")
	ErrProviderUnavailable = errors.New("provider_unavailable")
	ErrTransferFailed      = errors.New("transfer_failed")
	ErrIntegrityFailed     = errors.New("integrity_failed")
	ErrLocalIO             = errors.New("local_io_failed")
	ErrInvalidRequest      = errors.New("invalid_request")
)

var kinds = []error{
	ErrInvalidRequest,
	ErrNotAcquirable,
	ErrNotFound,
	ErrTransferFailed,
	ErrIntegrityFailed,
	ErrLocalIO,
	ErrProviderUnavailable,
}

// Wrap joins a kind sentinel and a cause; both stay reachable through errors.Is.
func Wrap(kind, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, kind) {
		return err
	}
	return fmt.Errorf("%w: %w", kind, err)
}

// KindOf returns the taxonomy name of err, or "internal" when it carries none.
func KindOf(err error) string {
	if err == nil {
		return ""
	}
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k.Error()
		}
	}
	return "internal"
}

// Retryable reports whether the caller may retry the operation.
func Retryable(err error) bool {
	return errors.Is(err, ErrProviderUnavailable) ||
		errors.Is(err, ErrTransferFailed) ||
		errors.Is(err, ErrIntegrityFailed)
}
