package resilience

import (
	"bytes"
	"strings"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

// softBlockMarkers are substrings found in the interstitial pages common
// anti-bot vendors serve instead of a real response; a 200 carrying one of
// these is a soft block, not a successful fetch.
var softBlockMarkers = []struct {
	needle string
	kind   domain.BlockKind
}{
	{"checking your browser", domain.BlockCloudflare},
	{"cf-browser-verification", domain.BlockCloudflare},
	{"cloudflare", domain.BlockCloudflare},
	{"captcha", domain.BlockCaptcha},
	{"recaptcha", domain.BlockCaptcha},
	{"rate limit exceeded", domain.BlockRateLimit},
	{"too many requests", domain.BlockRateLimit},
	{"access denied", domain.BlockIPBan},
	{"your ip has been blocked", domain.BlockIPBan},
}

// DetectSoftBlock inspects a nominally-200 response body for anti-bot
// interstitials. It flags a block when the body carries a known
// captcha/challenge or block-page signature, OR when the body is under
// minBodyBytes (too small to be a real listing page) — these are
// independent conditions, not one gating the other.
func DetectSoftBlock(body []byte, minBodyBytes int) (domain.BlockKind, bool) {
	lower := bytes.ToLower(body)
	for _, marker := range softBlockMarkers {
		if strings.Contains(string(lower), marker.needle) {
			return marker.kind, true
		}
	}

	if len(body) < minBodyBytes {
		return domain.BlockUnknown, true
	}
	return domain.BlockUnknown, false
}
