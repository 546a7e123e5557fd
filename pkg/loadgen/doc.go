// Package loadgen drives an endpoint with concurrent readers and writers.
//
// Each writer sends a fixed-size payload of its own letter ("aaa", "bbb", ...)
// and each reader consumes the same number of bytes per iteration. Workers
// pause for a random think time before every operation and retry Open with
// backoff while the endpoint reports ErrResourceBusy.
//
//	gen, err := loadgen.New(ep, loadgen.DefaultConfig(), logger)
//	if err != nil {
//		return err
//	}
//	report, err := gen.Run(ctx)
package loadgen
