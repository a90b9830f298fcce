package errors

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromStatusCode(t *testing.T) {
	tests := []struct {
		code     int
		expected ErrorType
	}{
		{0, ErrorTypeNetwork},
		{400, ErrorTypeBadRequest},
		{401, ErrorTypeAuth},
		{403, ErrorTypeAccessDenied},
		{404, ErrorTypeNotFound},
		{429, ErrorTypeRateLimit},
		{500, ErrorTypeServerError},
		{503, ErrorTypeServerError},
		{418, ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.code), func(t *testing.T) {
			assert.Equal(t, tt.expected, FromStatusCode(tt.code))
		})
	}
}

func TestIsRetryableStatusCode(t *testing.T) {
	assert.True(t, IsRetryableStatusCode(0))
	assert.True(t, IsRetryableStatusCode(429))
	assert.True(t, IsRetryableStatusCode(502))
	assert.False(t, IsRetryableStatusCode(400))
	assert.False(t, IsRetryableStatusCode(403))
	assert.False(t, IsRetryableStatusCode(404))
}

func TestTypeHelpersUnwrap(t *testing.T) {
	base := New(ErrorTypeAccessDenied, 403, "reel %s is private", "123")
	wrapped := fmt.Errorf("fetch stories: %w", base)

	assert.Equal(t, ErrorTypeAccessDenied, TypeOf(wrapped))
	assert.True(t, IsType(wrapped, ErrorTypeAccessDenied))
	assert.True(t, IsAccessDenied(wrapped))
	assert.True(t, IsAccessDenied(New(ErrorTypeBadRequest, 400, "bad request")))
	assert.False(t, IsAccessDenied(New(ErrorTypeNotFound, 404, "missing")))
	assert.Equal(t, ErrorTypeUnknown, TypeOf(fmt.Errorf("plain")))
	assert.Equal(t, "access_denied error (code 403): reel 123 is private", base.Error())
}

func TestRetryAfterUnwraps(t *testing.T) {
	base := New(ErrorTypeRateLimit, 429, "slow down").WithRetryAfter(3 * time.Second)
	wrapped := fmt.Errorf("resolve profile: %w", base)

	assert.Equal(t, 3*time.Second, RetryAfterOf(wrapped))
	assert.Zero(t, RetryAfterOf(New(ErrorTypeServerError, 500, "boom")))
	assert.Zero(t, RetryAfterOf(fmt.Errorf("plain")))
}
