package resilience

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/idkny/sale-sofia/internal/core/domain"
)

func TestDetectSoftBlock_MarkerMatch(t *testing.T) {
	kind, blocked := DetectSoftBlock([]byte("Please complete the CAPTCHA to continue"), 0)
	assert.True(t, blocked)
	assert.Equal(t, domain.BlockCaptcha, kind)

	kind, blocked = DetectSoftBlock([]byte("Checking your browser before accessing the site"), 0)
	assert.True(t, blocked)
	assert.Equal(t, domain.BlockCloudflare, kind)

	kind, blocked = DetectSoftBlock([]byte("429 Too Many Requests"), 0)
	assert.True(t, blocked)
	assert.Equal(t, domain.BlockRateLimit, kind)
}

func TestDetectSoftBlock_UndersizedBodyIndependentOfMarkers(t *testing.T) {
	kind, blocked := DetectSoftBlock([]byte("tiny"), 100)
	assert.True(t, blocked, "a body under minBodyBytes must be flagged even without a marker")
	assert.Equal(t, domain.BlockUnknown, kind)
}

func TestDetectSoftBlock_LargeCleanBodyNotBlocked(t *testing.T) {
	body := make([]byte, 200)
	for i := range body {
		body[i] = 'a'
	}
	kind, blocked := DetectSoftBlock(body, 100)
	assert.False(t, blocked)
	assert.Equal(t, domain.BlockUnknown, kind)
}

func TestDetectSoftBlock_MarkerMatchesEvenWithSufficientSize(t *testing.T) {
	body := make([]byte, 500)
	for i := range body {
		body[i] = 'x'
	}
	copy(body, []byte("recaptcha"))

	kind, blocked := DetectSoftBlock(body, 100)
	assert.True(t, blocked, "marker hit must flag a block regardless of the body being large enough")
	assert.Equal(t, domain.BlockCaptcha, kind)
}
