// Package errors provides standardized error handling patterns for ringdev components.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, the caller may retry), Invalid (bad input, do not retry) and Fatal
// (unrecoverable, stop processing). On top of the classes it defines the error
// surface of the endpoint as sentinel variables:
//
//   - ErrOversizedRequest: write payload larger than the write limit (invalid)
//   - ErrResourceBusy: session limit reached (transient)
//   - ErrPermissionDenied: bad open mode, or an operation the mode forbids (invalid)
//   - ErrInterrupted: a blocking wait was cancelled (transient)
//   - ErrInvalidArgument: unknown control command (invalid)
//   - ErrClosed: the session or endpoint has been closed (fatal)
//
// # Error Wrapping Pattern
//
// All error wrapping follows the format:
//
//	"component.method: action failed: %w"
//
// Three wrapper functions set the classification while keeping errors.Is on the
// sentinel working through the chain:
//
//	errors.WrapTransient(err, "Gate", "AcquireRead", "acquire read lock")
//	errors.WrapInvalid(errors.ErrOversizedRequest, "Endpoint", "Write", "check size")
//	errors.WrapFatal(err, "Ring", "New", "allocate storage")
//
// Interrupted builds the cancellation error from a context so that callers can
// test for either errors.ErrInterrupted or context.Canceled:
//
//	if err := ctx.Err(); err != nil {
//	    return errors.Interrupted(ctx, "Gate", "WaitUntilNotEmpty", "wait for data")
//	}
//
// # Retry Configuration
//
// RetryConfig decides whether an error is worth another attempt and converts into
// the pkg/retry configuration:
//
//	rc := errors.BusyRetryConfig()
//	s, err := retry.DoWithResult(ctx, rc.ToRetryConfig(), func() (*device.Session, error) {
//	    return ep.Open(device.WriteOnly)
//	})
//
// Endpoint code never retries internally. Interruption is always propagated to the
// caller.
package errors
