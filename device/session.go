package device

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/c360/ringdev/errors"
)

// Session is one attachment to an Endpoint, opened for reading or for
// writing. A session may be used from several goroutines; reads through one
// reader session still serialize against every other reader.
type Session struct {
	id     string
	mode   Mode
	ep     *Endpoint
	opened time.Time
	closed atomic.Bool

	timerMu sync.Mutex
	timer   *diagnosticTimer
}

func newSession(ep *Endpoint, mode Mode) *Session {
	return &Session{
		id:     uuid.New().String(),
		mode:   mode,
		ep:     ep,
		opened: time.Now(),
	}
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Mode returns the mode the session was opened with.
func (s *Session) Mode() Mode {
	return s.mode
}

// Read removes up to len(p) bytes from the ring, blocking until at least one
// byte is available. It may return fewer bytes than requested.
func (s *Session) Read(ctx context.Context, p []byte) (int, error) {
	if err := s.check("Read", ReadOnly); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.ep.read(ctx, p, true)
}

// Peek is Read without consuming: the bytes stay buffered for the next reader.
func (s *Session) Peek(ctx context.Context, p []byte) (int, error) {
	if err := s.check("Peek", ReadOnly); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.ep.read(ctx, p, false)
}

// Write appends all of p to the ring, blocking until there is room for the
// whole request. Requests larger than the write limit fail immediately with
// ErrOversizedRequest and leave the ring untouched.
func (s *Session) Write(ctx context.Context, p []byte) (int, error) {
	if err := s.check("Write", WriteOnly); err != nil {
		return 0, err
	}
	if len(p) == 0 {
		return 0, nil
	}
	return s.ep.write(ctx, p)
}

// Control dispatches cmd on behalf of this session. Timer commands apply to
// this session.
func (s *Session) Control(ctx context.Context, cmd Command) (int, error) {
	if err := s.check("Control", 0); err != nil {
		return 0, err
	}
	return s.ep.dispatch(ctx, s, cmd)
}

// check verifies the session and endpoint are open and, when want is
// non-zero, that the session mode allows the operation.
func (s *Session) check(method string, want Mode) error {
	if s.closed.Load() {
		return s.ep.fail(method, errors.WrapFatal(errors.ErrClosed, "Session", method, "check session state"))
	}
	if s.ep.closed.Load() {
		return s.ep.fail(method, errors.WrapFatal(errors.ErrClosed, "Session", method, "check endpoint state"))
	}
	if want != 0 && s.mode != want {
		return s.ep.fail(method, errors.WrapInvalid(
			fmt.Errorf("%w: %s on %s session", errors.ErrPermissionDenied, method, s.mode),
			"Session", method, "check mode"))
	}
	return nil
}

// Close detaches the session and frees its slot. Closing twice returns
// ErrClosed.
func (s *Session) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return errors.WrapFatal(errors.ErrClosed, "Session", "Close", "close session")
	}
	s.stopTimer()
	return s.ep.detach(s)
}

// IO adapts the session to the io interfaces. Every call uses ctx.
//
// Read maps ErrClosed to io.EOF. Write splits p into chunks no larger than
// the endpoint's write limit, so io.Copy works with any buffer size.
func (s *Session) IO(ctx context.Context) io.ReadWriteCloser {
	if ctx == nil {
		ctx = context.Background()
	}
	return &sessionIO{ctx: ctx, s: s}
}

type sessionIO struct {
	ctx context.Context
	s   *Session
}

func (a *sessionIO) Read(p []byte) (int, error) {
	n, err := a.s.Read(a.ctx, p)
	if err != nil && stderrors.Is(err, errors.ErrClosed) {
		return n, io.EOF
	}
	return n, err
}

func (a *sessionIO) Write(p []byte) (int, error) {
	limit := a.s.ep.writeLimit
	written := 0
	for written < len(p) {
		end := min(written+limit, len(p))
		n, err := a.s.Write(a.ctx, p[written:end])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

func (a *sessionIO) Close() error {
	return a.s.Close()
}
