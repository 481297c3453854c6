package resilience

import (
	"context"
	"errors"
	"net"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

type fakeTimeoutErr struct{}

func (fakeTimeoutErr) Error() string   { return "i/o timeout" }
func (fakeTimeoutErr) Timeout() bool   { return true }
func (fakeTimeoutErr) Temporary() bool { return false }

func TestClassify_NetworkTimeout(t *testing.T) {
	assert.Equal(t, domain.ErrNetworkTimeout, Classify(fakeTimeoutErr{}, 0))
	assert.Equal(t, domain.ErrNetworkTimeout, Classify(context.DeadlineExceeded, 0))
}

func TestClassify_NetworkConnectionErrors(t *testing.T) {
	urlErr := &url.Error{Op: "Get", URL: "http://x", Err: errors.New("refused")}
	assert.Equal(t, domain.ErrNetworkConnection, Classify(urlErr, 0))

	opErr := &net.OpError{Op: "dial", Err: errors.New("refused")}
	assert.Equal(t, domain.ErrNetworkConnection, Classify(opErr, 0))
}

func TestClassify_OtherErrIsProxyFault(t *testing.T) {
	assert.Equal(t, domain.ErrProxy, Classify(errors.New("proxy handshake failed"), 0))
}

func TestClassify_StatusCodeTable(t *testing.T) {
	cases := []struct {
		status int
		want   domain.ErrorKind
	}{
		{404, domain.ErrNotFound},
		{429, domain.ErrHTTPRateLimit},
		{403, domain.ErrHTTPBlocked},
		{451, domain.ErrHTTPBlocked},
		{503, domain.ErrServiceUnavailable},
		{500, domain.ErrHTTPServerError},
		{502, domain.ErrHTTPServerError},
		{418, domain.ErrHTTPClientError},
		{200, domain.ErrUnknown},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, Classify(nil, c.status), "status %d", c.status)
	}
}

func TestRecoveryFor_MapsEveryKindToAnAction(t *testing.T) {
	cases := map[domain.ErrorKind]domain.RecoveryAction{
		domain.ErrNetworkTimeout:    domain.RecoveryRetryWithBackoff,
		domain.ErrNetworkConnection: domain.RecoveryRetryWithBackoff,
		domain.ErrHTTPServerError:   domain.RecoveryRetryWithBackoff,
		domain.ErrServiceUnavailable: domain.RecoveryRetryWithBackoff,
		domain.ErrHTTPRateLimit:     domain.RecoveryCircuitBreak,
		domain.ErrHTTPBlocked:       domain.RecoveryRetryWithProxyRotate,
		domain.ErrProxy:             domain.RecoveryRetryWithProxyRotate,
		domain.ErrNotFound:          domain.RecoverySkip,
		domain.ErrParse:             domain.RecoveryEscalateStrategy,
		domain.ErrHTTPClientError:   domain.RecoverySkip,
	}
	for kind, want := range cases {
		assert.Equal(t, want, RecoveryFor(kind), "kind %s", kind)
	}
}
