// Package retry provides exponential backoff retry logic for transient failures.
//
// # Overview
//
// Do runs a function until it succeeds, the attempt budget is spent, the context
// is cancelled, or the error is rejected as non-retryable. Delays grow by
// Multiplier from InitialDelay up to MaxDelay, with optional jitter.
//
// # Configuration Presets
//
//   - DefaultConfig(): 3 attempts, 100ms-5s delay
//
// errors.RetryConfig.ToRetryConfig builds a Config whose Retryable filter
// follows the error classes; errors.BusyRetryConfig waits out a saturated
// session limit.
//
// # Usage
//
//	cfg := retry.DefaultConfig()
//	cfg.Retryable = func(err error, _ int) bool {
//	    return errors.Is(err, rerrors.ErrResourceBusy)
//	}
//	sess, err := retry.DoWithResult(ctx, cfg, func() (*device.Session, error) {
//	    return ep.Open(device.WriteOnly)
//	})
//
// Wrap an error with NonRetryable to stop immediately regardless of Retryable.
package retry
