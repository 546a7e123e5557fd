package device

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/c360/ringdev/errors"
)

// snapshot is the state reported by status commands.
type snapshot struct {
	occupied  int
	capacity  int
	available int
	sessions  int
}

// Control runs cmd without a session. Timer commands need a session to
// attach the timer to and fail here with ErrInvalidArgument.
func (e *Endpoint) Control(ctx context.Context, cmd Command) (int, error) {
	return e.dispatch(ctx, nil, cmd)
}

func (e *Endpoint) dispatch(ctx context.Context, s *Session, cmd Command) (int, error) {
	if e.closed.Load() {
		return 0, e.fail("control", errors.WrapFatal(errors.ErrClosed, "Endpoint", "Control", "check endpoint state"))
	}

	var (
		result int
		err    error
	)
	switch cmd {
	case CmdOccupied, CmdCapacity, CmdAvailable, CmdSessions:
		var snap snapshot
		snap, err = e.snapshot(ctx)
		if err != nil {
			break
		}
		switch cmd {
		case CmdOccupied:
			result = snap.occupied
		case CmdCapacity:
			result = snap.capacity
		case CmdAvailable:
			result = snap.available
		default:
			result = snap.sessions
		}
	case CmdDump:
		result, err = e.dump(ctx)
	case CmdTimerStart, CmdTimerStop:
		if s == nil {
			err = errors.WrapInvalid(
				fmt.Errorf("%w: %s requires a session", errors.ErrInvalidArgument, cmd),
				"Endpoint", "Control", "dispatch command")
			break
		}
		if cmd == CmdTimerStart {
			result = s.startTimer()
		} else {
			s.stopTimer()
		}
	default:
		err = errors.WrapInvalid(
			fmt.Errorf("%w: unknown control code %d", errors.ErrInvalidArgument, int(cmd)),
			"Endpoint", "Control", "dispatch command")
	}

	if err != nil {
		return 0, e.fail("control", err)
	}
	e.metrics.recordOp("control")
	e.logger.Debug("Control dispatched", "command", cmd.String(), "result", result)
	return result, nil
}

// snapshot reads the ring and session levels. In the default mode it holds
// the read lock and then the write lock so no transfer is in flight. In
// best-effort mode it reads the atomics directly and the values may be
// mutually inconsistent.
func (e *Endpoint) snapshot(ctx context.Context) (snapshot, error) {
	if e.bestEffort {
		return e.readLevels(), nil
	}

	guard, err := e.gate.AcquireBoth(ctx)
	if err != nil {
		return snapshot{}, err
	}
	defer guard.Release()
	return e.readLevels(), nil
}

func (e *Endpoint) readLevels() snapshot {
	return snapshot{
		occupied:  e.ring.Len(),
		capacity:  e.ring.Cap(),
		available: e.ring.Available(),
		sessions:  e.admission.Active(),
	}
}

// dump logs the buffer state with a hex preview of the oldest buffered bytes
// and returns the occupancy. It always holds both locks since it reads the
// contents.
func (e *Endpoint) dump(ctx context.Context) (int, error) {
	guard, err := e.gate.AcquireBoth(ctx)
	if err != nil {
		return 0, err
	}
	defer guard.Release()

	snap := e.readLevels()
	preview := make([]byte, min(snap.occupied, e.dumpPreview))
	n := e.ring.Peek(preview)

	e.logger.Info("Buffer dump",
		"capacity", snap.capacity,
		"occupied", snap.occupied,
		"available", snap.available,
		"sessions", snap.sessions,
		"preview", hex.EncodeToString(preview[:n]),
		"truncated", snap.occupied > n)
	return snap.occupied, nil
}
