package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrUpstreamError, "upstream failed").
		WithCause(root).
		WithHTTPStatus(502).
		WithRetryable(true).
		WithProvider("huggingface")

	assert.Equal(t, ErrUpstreamError, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.True(t, errors.Is(err, root))
	assert.Equal(t, "[UPSTREAM_ERROR] upstream failed: root", err.Error())
}

func TestError_NoCause(t *testing.T) {
	err := NewError(ErrInvalidRequest, "prompt is required")
	assert.Equal(t, "[INVALID_REQUEST] prompt is required", err.Error())
	assert.Nil(t, err.Unwrap())
}

func TestAsError_ThroughWrapping(t *testing.T) {
	inner := NewRateLimitError("slow down")
	wrapped := fmt.Errorf("fetch: %w", inner)

	got, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrRateLimited, got.Code)
	assert.Equal(t, 429, got.HTTPStatus)
	assert.True(t, IsRetryable(wrapped))
}

func TestIsErrorCode_NestedChain(t *testing.T) {
	transport := NewTransportError(errors.New("connection reset"))
	exhausted := NewExhaustedRetriesError(3, transport)

	assert.True(t, IsErrorCode(exhausted, ErrRetriesExhausted))
	assert.True(t, IsErrorCode(exhausted, ErrTransport))
	assert.False(t, IsErrorCode(exhausted, ErrRateLimited))
	assert.Equal(t, ErrRetriesExhausted, GetErrorCode(exhausted))
	assert.False(t, IsRetryable(exhausted))
}

func TestConstructors(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		code      ErrorCode
		status    int
		retryable bool
	}{
		{"configuration", NewConfigurationError("missing token"), ErrConfiguration, 0, false},
		{"upstream", NewUpstreamError(400, "bad input"), ErrUpstreamError, 400, false},
		{"rate limit", NewRateLimitError(""), ErrRateLimited, 429, true},
		{"transport", NewTransportError(errors.New("eof")), ErrTransport, 0, true},
		{"upload", NewUploadError("upload failed", nil), ErrUploadFailed, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.status, tt.err.HTTPStatus)
			assert.Equal(t, tt.retryable, tt.err.Retryable)
		})
	}

	assert.Contains(t, NewUpstreamError(503, "loading").Error(), "API error: 503 - loading")
}

func TestGetErrorCode_PlainError(t *testing.T) {
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsErrorCode(nil, ErrTransport))
}
