package resilience

import "time"

// VerifierPolicy builds the retry and breaker settings for an external
// verification service. Non-positive values keep the defaults. Only
// transient failures trip the breaker: a verifier rejecting a value is
// healthy.
func VerifierPolicy(maxAttempts, threshold, cooldownSecs int) (RetryConfig, BreakerConfig) {
	retry := DefaultRetryConfig()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	retry.OnRetry = RetryLogger("verify", "http")

	breaker := DefaultBreakerConfig()
	breaker.Name = "verifier"
	if threshold > 0 {
		breaker.Threshold = threshold
	}
	if cooldownSecs > 0 {
		breaker.Cooldown = time.Duration(cooldownSecs) * time.Second
	}
	breaker.Trips = IsTransient
	return retry, breaker
}
