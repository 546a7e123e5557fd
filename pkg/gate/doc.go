// Package gate provides the access control around the shared byte ring.
//
// A Gate holds two independent locks. Readers contend on the read lock and
// writers on the write lock, so at most one reader and one writer touch the ring
// at a time, and they may do so concurrently. Both locks are weighted semaphores
// of size one, which makes every acquisition abortable through a context.
//
// Blocking on an empty or full ring goes through WaitUntilNotEmpty and
// WaitUntilNotFull. A waiter gives up its lock while blocked, so a status
// snapshot or a waiter on the other side is never stuck behind it, and
// re-checks its predicate every time it is woken:
//
//	guard, err := g.AcquireWrite(ctx)
//	if err != nil {
//		return err // ErrInterrupted or ErrClosed
//	}
//	defer guard.Release()
//
//	if err := g.WaitUntilNotFull(ctx, guard, len(p)); err != nil {
//		return err
//	}
//	ring.Push(p)
//	g.NotifyReaders()
//
// Conditions are broadcast channels. The waiter takes the current channel
// before evaluating its predicate, so a notify that lands between the check and
// the block is not lost.
//
// Lock order: when both locks are needed, the read lock is taken first.
// AcquireBoth enforces this.
package gate
