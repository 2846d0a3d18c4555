package resilience

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"syscall"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deadlineErr struct{}

func (deadlineErr) Error() string   { return "deadline" }
func (deadlineErr) Timeout() bool   { return true }
func (deadlineErr) Temporary() bool { return true }

var _ net.Error = deadlineErr{}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"validation failure", errors.New("phone number has too few digits"), false},
		{"marked", NewTransientError(errors.New("503"), 503), true},
		{"marked and wrapped", eris.Wrap(NewTransientError(errors.New("429"), 429), "verify: email"), true},
		{"econnreset", fmt.Errorf("read: %w", syscall.ECONNRESET), true},
		{"econnrefused", fmt.Errorf("dial: %w", syscall.ECONNREFUSED), true},
		{"net timeout", fmt.Errorf("post: %w", deadlineErr{}), true},
		{"message only", errors.New("write tcp 10.0.0.1:443: broken pipe"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), code)
	}
	for _, code := range []int{200, 204, 400, 401, 404, 422, 501} {
		assert.False(t, IsTransientHTTPStatus(code), code)
	}
}

func TestFromResponse(t *testing.T) {
	base := errors.New("verifier returned status")

	resp := &http.Response{StatusCode: 429, Header: http.Header{"Retry-After": []string{"7"}}}
	err := FromResponse(resp, base)
	require.True(t, IsTransient(err))
	assert.ErrorIs(t, err, base)
	assert.Equal(t, 7*time.Second, RetryAfter(err))

	resp = &http.Response{StatusCode: 503, Header: http.Header{}}
	err = FromResponse(resp, base)
	assert.True(t, IsTransient(err))
	assert.Zero(t, RetryAfter(err))

	resp = &http.Response{StatusCode: 400, Header: http.Header{"Retry-After": []string{"7"}}}
	err = FromResponse(resp, base)
	assert.False(t, IsTransient(err))
	assert.Zero(t, RetryAfter(err))
}

func TestParseRetryAfter(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, 2*time.Second, parseRetryAfter("2", now))
	assert.Equal(t, 30*time.Second, parseRetryAfter(now.Add(30*time.Second).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter(now.Add(-time.Minute).Format(http.TimeFormat), now))
	assert.Zero(t, parseRetryAfter("", now))
	assert.Zero(t, parseRetryAfter("soon", now))
	assert.Zero(t, parseRetryAfter("-4", now))
}

func TestTransientError_Unwrap(t *testing.T) {
	inner := errors.New("inner")
	te := NewTransientError(inner, 502)
	assert.ErrorIs(t, te, inner)
	assert.Equal(t, "inner", te.Error())
	assert.Equal(t, 502, te.StatusCode)
}
