package verify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/config"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/resilience"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestBase58CheckValid(t *testing.T) {
	assert.True(t, Base58CheckValid("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa"))
	assert.True(t, Base58CheckValid("1BoatSLRHtKNngkdXEeobR76b53LETtpyT"))
	assert.False(t, Base58CheckValid("1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb"))
	assert.False(t, Base58CheckValid("0OIl"))
	assert.False(t, Base58CheckValid("1"))
}

func TestFormatVerifier(t *testing.T) {
	v := FormatVerifier{}
	ctx := context.Background()

	res, err := v.Verify(ctx, model.KindEmail, "User@Example.com")
	require.NoError(t, err)
	assert.True(t, res.Plausible)
	assert.Nil(t, res.ChecksumValid)
	assert.Nil(t, res.ExistsOnNetwork)

	res, err = v.Verify(ctx, model.KindEmail, "not-an-email")
	require.NoError(t, err)
	assert.False(t, res.Plausible)

	res, err = v.Verify(ctx, model.KindCryptoAddress, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNa")
	require.NoError(t, err)
	assert.True(t, res.Plausible)
	require.NotNil(t, res.ChecksumValid)
	assert.True(t, *res.ChecksumValid)

	res, err = v.Verify(ctx, model.KindCryptoAddress, "1A1zP1eP5QGefi2DMPTfTL5SLmv7DivfNb")
	require.NoError(t, err)
	assert.False(t, res.Plausible)
	require.NotNil(t, res.ChecksumValid)
	assert.False(t, *res.ChecksumValid)

	// Ethereum addresses carry no base58 checksum.
	res, err = v.Verify(ctx, model.KindCryptoAddress, "0x52908400098527886E0F7030069857D2E4169EE7")
	require.NoError(t, err)
	assert.True(t, res.Plausible)
	assert.Nil(t, res.ChecksumValid)
}

func TestNew(t *testing.T) {
	v, err := New(config.VerifyConfig{})
	require.NoError(t, err)
	assert.Nil(t, v)

	v, err = New(config.VerifyConfig{Enabled: true})
	require.NoError(t, err)
	assert.IsType(t, FormatVerifier{}, v)

	v, err = New(config.VerifyConfig{Enabled: true, URL: "http://verifier.local/check"})
	require.NoError(t, err)
	assert.IsType(t, &HTTPVerifier{}, v)

	_, err = NewHTTPVerifier(config.VerifyConfig{})
	assert.Error(t, err)
}

func newTestHTTPVerifier(t *testing.T, url string) *HTTPVerifier {
	t.Helper()
	v, err := NewHTTPVerifier(config.VerifyConfig{
		URL:              url,
		RatePerSec:       1000,
		MaxAttempts:      3,
		BreakerThreshold: 2,
		BreakerResetSecs: 60,
	})
	require.NoError(t, err)
	v.retry.BaseDelay = time.Millisecond
	v.retry.MaxDelay = time.Millisecond
	return v
}

func TestHTTPVerifier_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var req verifyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, model.KindPhone, req.Kind)
		assert.Equal(t, "+14155552671", req.Value)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"plausible": true, "exists_on_network": true}`))
	}))
	defer srv.Close()

	res, err := newTestHTTPVerifier(t, srv.URL).Verify(context.Background(), model.KindPhone, "+14155552671")
	require.NoError(t, err)
	assert.True(t, res.Plausible)
	require.NotNil(t, res.ExistsOnNetwork)
	assert.True(t, *res.ExistsOnNetwork)
	assert.Nil(t, res.ChecksumValid)
}

func TestHTTPVerifier_RetriesTransient(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"plausible": false, "detail": "unallocated range"}`))
	}))
	defer srv.Close()

	res, err := newTestHTTPVerifier(t, srv.URL).Verify(context.Background(), model.KindPhone, "+10000000000")
	require.NoError(t, err)
	assert.False(t, res.Plausible)
	assert.Equal(t, "unallocated range", res.Detail)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPVerifier_PermanentErrorNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad kind", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newTestHTTPVerifier(t, srv.URL).Verify(context.Background(), model.KindOther, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad kind")
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPVerifier_BreakerOpens(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	v := newTestHTTPVerifier(t, srv.URL)
	for i := 0; i < 2; i++ {
		_, err := v.Verify(context.Background(), model.KindEmail, "a@x.com")
		require.Error(t, err)
	}
	assert.Equal(t, int32(6), calls.Load())
	assert.Equal(t, resilience.StateOpen, v.breaker.State())

	_, err := v.Verify(context.Background(), model.KindEmail, "a@x.com")
	assert.ErrorIs(t, err, resilience.ErrBreakerOpen)
	assert.Equal(t, int32(6), calls.Load(), "open breaker short-circuits")
}

func TestHTTPVerifier_RateLimitedBacksOff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"plausible": true}`))
	}))
	defer srv.Close()

	v := newTestHTTPVerifier(t, srv.URL)
	before := v.limiter.Limit()
	_, err := v.Verify(context.Background(), model.KindEmail, "a@x.com")
	require.NoError(t, err)
	assert.Less(t, float64(v.limiter.Limit()), float64(before))
}

func TestAdaptiveLimiter(t *testing.T) {
	l := NewAdaptiveLimiter(10, 10)
	for i := 0; i < 10; i++ {
		l.OnSuccess()
	}
	assert.InDelta(t, 20, float64(l.Limit()), 1e-9)
	for i := 0; i < 10; i++ {
		l.OnRateLimit()
	}
	assert.InDelta(t, 2.5, float64(l.Limit()), 1e-9)
	require.NoError(t, l.Wait(context.Background()))
}
