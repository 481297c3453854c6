package resilience

import (
	"context"
	"errors"
	"net"
	"net/url"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

// Classify maps a fetch error and/or HTTP status code to an ErrorKind.
// statusCode is 0 when err prevented a response being received at all.
func Classify(err error, statusCode int) domain.ErrorKind {
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return domain.ErrNetworkTimeout
		}
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.ErrNetworkTimeout
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) {
			return domain.ErrNetworkConnection
		}
		var opErr *net.OpError
		if errors.As(err, &opErr) {
			return domain.ErrNetworkConnection
		}
		return domain.ErrProxy
	}

	switch {
	case statusCode == 404:
		return domain.ErrNotFound
	case statusCode == 429:
		return domain.ErrHTTPRateLimit
	case statusCode == 403 || statusCode == 451:
		return domain.ErrHTTPBlocked
	case statusCode == 503:
		return domain.ErrServiceUnavailable
	case statusCode >= 500:
		return domain.ErrHTTPServerError
	case statusCode >= 400:
		return domain.ErrHTTPClientError
	default:
		return domain.ErrUnknown
	}
}

// RecoveryFor maps an ErrorKind to the action the caller should take.
func RecoveryFor(kind domain.ErrorKind) domain.RecoveryAction {
	switch kind {
	case domain.ErrNetworkTimeout, domain.ErrNetworkConnection:
		return domain.RecoveryRetryWithBackoff
	case domain.ErrHTTPServerError, domain.ErrServiceUnavailable:
		return domain.RecoveryRetryWithBackoff
	case domain.ErrHTTPRateLimit:
		return domain.RecoveryCircuitBreak
	case domain.ErrHTTPBlocked, domain.ErrProxy:
		return domain.RecoveryRetryWithProxyRotate
	case domain.ErrNotFound:
		return domain.RecoverySkip
	case domain.ErrParse:
		return domain.RecoveryEscalateStrategy
	case domain.ErrHTTPClientError:
		return domain.RecoverySkip
	default:
		return domain.RecoveryRetryWithBackoff
	}
}
