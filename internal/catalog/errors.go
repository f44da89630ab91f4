package catalog

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/cesargomez89/navistream/internal/domain"
	"github.com/cesargomez89/navistream/internal/httpclient"
)

// classify maps a transport or status failure onto the error taxonomy.
// Caller cancellation is passed through untouched.
func classify(provider string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, domain.ErrNotFound) || errors.Is(err, domain.ErrProviderUnavailable) ||
		errors.Is(err, domain.ErrNotAcquirable) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return err
	}

	var se *httpclient.StatusError
	if errors.As(err, &se) {
		switch {
		case se.StatusCode == http.StatusNotFound || se.StatusCode == http.StatusGone:
			return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, provider, se.Status)
		case se.Transient(), se.StatusCode == http.StatusUnauthorized, se.StatusCode == http.StatusForbidden:
			return fmt.Errorf("%w: %s: %s", domain.ErrProviderUnavailable, provider, se.Status)
		default:
			return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, provider, se.Status)
		}
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %s: timeout", domain.ErrProviderUnavailable, provider)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrProviderUnavailable, provider, err)
}

func notFound(provider, what string) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrNotFound, provider, what)
}
