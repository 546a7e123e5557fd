// Package device exposes a bounded byte ring as a device-like endpoint.
//
// An Endpoint owns one ring, one access gate and one admission counter.
// Callers attach with Open, choosing exactly one of ReadOnly or WriteOnly,
// and get a Session:
//
//	ep, err := device.New(cfg.Device, device.WithLogger(logger), device.WithMetrics(registry))
//	if err != nil {
//		return err
//	}
//	defer ep.Close()
//
//	w, err := ep.Open(device.WriteOnly)
//	if err != nil {
//		return err // ErrResourceBusy when every slot is taken
//	}
//	defer w.Close()
//
//	if _, err := w.Write(ctx, []byte("hello")); err != nil {
//		return err
//	}
//
// # Blocking
//
// Write is all-or-nothing: it waits until the whole request fits. Read waits
// until at least one byte is buffered and may return less than requested.
// One reader and one writer run concurrently; readers serialize against
// readers and writers against writers. Every wait ends early when ctx is
// done (ErrInterrupted) or the endpoint is closed (ErrClosed).
//
// # Control
//
// Control codes report occupancy, capacity, free space and open sessions,
// log a dump of the buffered bytes, and arm or disarm a per-session
// diagnostic timer. Status codes take both locks, read then write, unless
// the endpoint was built with WithBestEffortStatus.
//
// # Errors
//
// Failures match the sentinels in the errors package: ErrOversizedRequest,
// ErrResourceBusy, ErrPermissionDenied, ErrInterrupted, ErrInvalidArgument
// and ErrClosed.
package device
