package verify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/config"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/errs"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/model"
	"github.com/Basset-Hound-OSINT/basset-hound-sub003/internal/resilience"
)

type verifyRequest struct {
	Kind  model.Kind `json:"kind"`
	Value string     `json:"value"`
}

// HTTPVerifier posts {kind, value} to an external verification service and
// decodes a Result from the response.
type HTTPVerifier struct {
	url     string
	client  *http.Client
	limiter *AdaptiveLimiter
	retry   resilience.RetryConfig
	breaker *resilience.Breaker
}

// NewHTTPVerifier creates an HTTPVerifier from the verify config section.
func NewHTTPVerifier(cfg config.VerifyConfig) (*HTTPVerifier, error) {
	if cfg.URL == "" {
		return nil, errs.Validation("verify.url", "required")
	}
	ratePerSec := cfg.RatePerSec
	if ratePerSec <= 0 {
		ratePerSec = 5
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	retry, breakerCfg := resilience.VerifierPolicy(cfg.MaxAttempts, cfg.BreakerThreshold, cfg.BreakerResetSecs)
	return &HTTPVerifier{
		url: cfg.URL,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: NewAdaptiveLimiter(rate.Limit(ratePerSec), max(1, int(ratePerSec))),
		retry:   retry,
		breaker: resilience.NewBreaker(breakerCfg),
	}, nil
}

func (v *HTTPVerifier) Verify(ctx context.Context, kind model.Kind, value string) (Result, error) {
	res, err := resilience.ExecuteVal(ctx, v.breaker, func(ctx context.Context) (Result, error) {
		return resilience.DoVal(ctx, v.retry, func(ctx context.Context) (Result, error) {
			return v.call(ctx, kind, value)
		})
	})
	if err != nil {
		return Result{}, eris.Wrapf(err, "verify: %s", kind)
	}
	return res, nil
}

func (v *HTTPVerifier) call(ctx context.Context, kind model.Kind, value string) (Result, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return Result{}, eris.Wrap(err, "rate limiter wait")
	}

	body, err := json.Marshal(verifyRequest{Kind: kind, Value: value})
	if err != nil {
		return Result{}, eris.Wrap(err, "marshal request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.url, bytes.NewReader(body))
	if err != nil {
		return Result{}, eris.Wrap(err, "create request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.client.Do(req)
	if err != nil {
		return Result{}, eris.Wrap(err, "verify request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode == http.StatusTooManyRequests {
		v.limiter.OnRateLimit()
	}
	if resilience.IsTransientHTTPStatus(resp.StatusCode) {
		return Result{}, resilience.FromResponse(resp, eris.Errorf("http %d from %s", resp.StatusCode, v.url))
	}
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Result{}, eris.Errorf("unexpected status %d from %s: %s", resp.StatusCode, v.url, bytes.TrimSpace(msg))
	}

	var out Result
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Result{}, eris.Wrap(err, "decode response")
	}
	v.limiter.OnSuccess()
	zap.L().Debug("verify: checked",
		zap.String("kind", string(kind)),
		zap.Bool("plausible", out.Plausible),
	)
	return out, nil
}
