package device

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/c360/ringdev/config"
	"github.com/c360/ringdev/errors"
	"github.com/c360/ringdev/health"
	"github.com/c360/ringdev/metric"
)

const testTimeout = 2 * time.Second

// logBuffer is a goroutine-safe log sink.
type logBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *logBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *logBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger(buf io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func testConfig(capacity, sessions int) config.DeviceConfig {
	cfg := config.Defaults().Device
	cfg.Name = "test"
	cfg.BufferCapacity = capacity
	cfg.MaxSessions = sessions
	return cfg
}

func newTestEndpoint(t *testing.T, capacity, sessions int, opts ...Option) *Endpoint {
	t.Helper()
	opts = append([]Option{WithLogger(testLogger(io.Discard))}, opts...)
	ep, err := New(testConfig(capacity, sessions), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = ep.Close() })
	return ep
}

func open(t *testing.T, ep *Endpoint, mode Mode) *Session {
	t.Helper()
	s, err := ep.Open(mode)
	require.NoError(t, err)
	return s
}

type result struct {
	n   int
	err error
}

func waitFor(t *testing.T, ch <-chan result) result {
	t.Helper()
	select {
	case r := <-ch:
		return r
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for operation")
		return result{}
	}
}

func assertBlocked(t *testing.T, ch <-chan result) {
	t.Helper()
	select {
	case r := <-ch:
		t.Fatalf("expected operation to block, got n=%d err=%v", r.n, r.err)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestEndpoint_RoundTrip(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	w := open(t, ep, WriteOnly)
	r := open(t, ep, ReadOnly)
	ctx := context.Background()

	msg := []byte("hello world!!!!!")
	require.Len(t, msg, 16)

	n, err := w.Write(ctx, msg)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, 0, ep.Stats().Available)

	got := make([]byte, 16)
	n, err = r.Read(ctx, got)
	require.NoError(t, err)
	assert.Equal(t, 16, n)
	assert.Equal(t, msg, got)
	assert.Equal(t, 0, ep.Stats().Occupied)
}

func TestEndpoint_FIFO(t *testing.T) {
	ep := newTestEndpoint(t, 32, 2)
	w := open(t, ep, WriteOnly)
	r := open(t, ep, ReadOnly)
	ctx := context.Background()

	chunks := []string{"abc", "de", "fghij", "k"}
	for _, c := range chunks {
		_, err := w.Write(ctx, []byte(c))
		require.NoError(t, err)
	}

	var out []byte
	buf := make([]byte, 4)
	for len(out) < 11 {
		n, err := r.Read(ctx, buf)
		require.NoError(t, err)
		out = append(out, buf[:n]...)
	}
	assert.Equal(t, "abcdefghijk", string(out))
}

func TestEndpoint_CapacityRounded(t *testing.T) {
	ep := newTestEndpoint(t, 10, 1)
	assert.Equal(t, 16, ep.Capacity())
	assert.Equal(t, 16, ep.WriteLimit())
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := testConfig(0, 1)
	_, err := New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	cfg = testConfig(16, 0)
	_, err = New(cfg)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)

	_, err = New(testConfig(16, 1), WithWriteLimit(17))
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestEndpoint_OversizeRejected(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := w.Write(ctx, []byte("abc"))
	require.NoError(t, err)

	n, err := w.Write(ctx, make([]byte, 17))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errors.ErrOversizedRequest)
	assert.True(t, errors.IsInvalid(err))

	occupied, err := ep.Control(ctx, CmdOccupied)
	require.NoError(t, err)
	assert.Equal(t, 3, occupied, "a rejected write must not change occupancy")
	assert.Equal(t, int64(1), ep.Stats().Traffic.OversizedWrites)
}

func TestEndpoint_ConfiguredWriteLimit(t *testing.T) {
	cfg := testConfig(16, 1)
	cfg.MaxWriteSize = 4
	ep, err := New(cfg, WithLogger(testLogger(io.Discard)))
	require.NoError(t, err)
	defer ep.Close()

	w := open(t, ep, WriteOnly)
	_, err = w.Write(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	_, err = w.Write(context.Background(), []byte("abcde"))
	assert.ErrorIs(t, err, errors.ErrOversizedRequest)
}

func TestEndpoint_AdmissionBound(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)

	a := open(t, ep, ReadOnly)
	open(t, ep, WriteOnly)

	_, err := ep.Open(ReadOnly)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrResourceBusy)
	assert.True(t, errors.IsTransient(err))
	assert.Equal(t, int64(1), ep.Stats().Traffic.RejectedOpens)

	require.NoError(t, a.Close())
	again, err := ep.Open(ReadOnly)
	require.NoError(t, err)
	assert.NotEqual(t, a.ID(), again.ID())
	assert.Equal(t, 2, ep.Stats().ActiveSessions)
}

func TestEndpoint_InvalidMode(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)

	for _, mode := range []Mode{0, ReadOnly | WriteOnly, 7} {
		_, err := ep.Open(mode)
		require.Error(t, err, "mode %d", mode)
		assert.ErrorIs(t, err, errors.ErrPermissionDenied)
	}
	assert.Zero(t, ep.Stats().ActiveSessions, "refused opens must not hold a slot")
}

func TestSession_WrongMode(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := r.Write(ctx, []byte("x"))
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)

	_, err = w.Read(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)

	_, err = w.Peek(ctx, make([]byte, 1))
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)

	// mode is checked before the zero-length shortcut
	_, err = r.Write(ctx, nil)
	assert.ErrorIs(t, err, errors.ErrPermissionDenied)
}

func TestSession_ZeroLengthSkipsLocks(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)

	guard, err := ep.gate.AcquireBoth(context.Background())
	require.NoError(t, err)
	defer guard.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	n, err := w.Write(ctx, nil)
	assert.NoError(t, err)
	assert.Zero(t, n)

	n, err = r.Read(ctx, []byte{})
	assert.NoError(t, err)
	assert.Zero(t, n)
}

func TestSession_Peek(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := w.Write(ctx, []byte("abc"))
	require.NoError(t, err)

	buf := make([]byte, 2)
	n, err := r.Peek(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "ab", string(buf[:n]))
	assert.Equal(t, 3, ep.Stats().Occupied)

	buf = make([]byte, 8)
	n, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assert.Equal(t, "abc", string(buf[:n]))
	assert.Equal(t, int64(1), ep.Stats().Traffic.Peeks)
}

func TestEndpoint_ReadBlocksUntilWrite(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)

	buf := make([]byte, 8)
	done := make(chan result, 1)
	go func() {
		n, err := r.Read(context.Background(), buf)
		done <- result{n, err}
	}()

	assertBlocked(t, done)

	_, err := w.Write(context.Background(), []byte("abc"))
	require.NoError(t, err)

	res := waitFor(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, "abc", string(buf[:res.n]))
	assert.Equal(t, int64(1), ep.Stats().Traffic.BlockedReads)
}

func TestEndpoint_WriteBlocksUntilRoom(t *testing.T) {
	ep := newTestEndpoint(t, 4, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := w.Write(ctx, []byte("abcd"))
	require.NoError(t, err)

	done := make(chan result, 1)
	go func() {
		n, err := w.Write(ctx, []byte("ef"))
		done <- result{n, err}
	}()
	assertBlocked(t, done)

	// one byte of room is not enough for a two byte write
	buf := make([]byte, 1)
	_, err = r.Read(ctx, buf)
	require.NoError(t, err)
	assertBlocked(t, done)

	_, err = r.Read(ctx, buf)
	require.NoError(t, err)

	res := waitFor(t, done)
	require.NoError(t, res.err)
	assert.Equal(t, 2, res.n)

	out := make([]byte, 4)
	n, err := r.Read(ctx, out)
	require.NoError(t, err)
	assert.Equal(t, "cdef", string(out[:n]))
	assert.Equal(t, int64(1), ep.Stats().Traffic.BlockedWrites)
}

func TestEndpoint_Interrupted(t *testing.T) {
	ep := newTestEndpoint(t, 4, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	n, err := r.Read(ctx, make([]byte, 4))
	require.Error(t, err)
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errors.ErrInterrupted)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, errors.IsTransient(err))

	_, err = w.Write(context.Background(), []byte("abcd"))
	require.NoError(t, err)

	wctx, wcancel := context.WithCancel(context.Background())
	done := make(chan result, 1)
	go func() {
		n, err := w.Write(wctx, []byte("e"))
		done <- result{n, err}
	}()
	assertBlocked(t, done)
	wcancel()

	res := waitFor(t, done)
	assert.ErrorIs(t, res.err, errors.ErrInterrupted)
	assert.ErrorIs(t, res.err, context.Canceled)
	assert.Equal(t, 4, ep.Stats().Occupied, "an interrupted write transfers nothing")
	assert.Equal(t, int64(2), ep.Stats().Traffic.Interrupts)

	// neither lock leaked
	out := make([]byte, 4)
	n, err = r.Read(context.Background(), out)
	require.NoError(t, err)
	assert.Equal(t, "abcd", string(out[:n]))
	_, err = w.Write(context.Background(), []byte("f"))
	require.NoError(t, err)
}

func TestEndpoint_CloseWakesAndRefuses(t *testing.T) {
	ep := newTestEndpoint(t, 16, 3)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)

	done := make(chan result, 1)
	go func() {
		n, err := r.Read(context.Background(), make([]byte, 4))
		done <- result{n, err}
	}()
	assertBlocked(t, done)

	require.NoError(t, ep.Close())
	require.NoError(t, ep.Close())
	assert.True(t, ep.Closed())

	res := waitFor(t, done)
	assert.ErrorIs(t, res.err, errors.ErrClosed)
	assert.True(t, errors.IsFatal(res.err))

	_, err := ep.Open(ReadOnly)
	assert.ErrorIs(t, err, errors.ErrClosed)
	_, err = w.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, errors.ErrClosed)
	_, err = ep.Control(context.Background(), CmdOccupied)
	assert.ErrorIs(t, err, errors.ErrClosed)

	// sessions still release their slots
	require.NoError(t, r.Close())
	require.NoError(t, w.Close())
	assert.Zero(t, ep.Stats().ActiveSessions)
}

func TestSession_CloseTwice(t *testing.T) {
	ep := newTestEndpoint(t, 16, 1)
	s := open(t, ep, WriteOnly)

	require.NoError(t, s.Close())
	err := s.Close()
	assert.ErrorIs(t, err, errors.ErrClosed)
	assert.Zero(t, ep.Stats().ActiveSessions)

	_, err = s.Write(context.Background(), []byte("x"))
	assert.ErrorIs(t, err, errors.ErrClosed)
}

func TestEndpoint_Stats(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := w.Write(ctx, []byte("hello"))
	require.NoError(t, err)
	_, err = r.Read(ctx, make([]byte, 2))
	require.NoError(t, err)

	stats := ep.Stats()
	assert.Equal(t, "test", stats.Name)
	assert.Equal(t, 16, stats.Capacity)
	assert.Equal(t, 3, stats.Occupied)
	assert.Equal(t, 13, stats.Available)
	assert.Equal(t, 2, stats.ActiveSessions)
	assert.Equal(t, int64(5), stats.Traffic.BytesIn)
	assert.Equal(t, int64(2), stats.Traffic.BytesOut)
	assert.Equal(t, int64(5), stats.Traffic.MaxOccupancy)

	data, err := json.Marshal(stats)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"write_limit":16`)
}

func TestEndpoint_Health(t *testing.T) {
	ep := newTestEndpoint(t, 4, 2)
	w := open(t, ep, WriteOnly)

	status := ep.Health()
	assert.Equal(t, health.StateHealthy, status.Status)
	assert.Equal(t, "test", status.Component)
	require.NotNil(t, status.Metrics)
	assert.Equal(t, 4, status.Metrics.Capacity)

	_, err := w.Write(context.Background(), []byte("abcd"))
	require.NoError(t, err)
	status = ep.Health()
	assert.Equal(t, health.StateDegraded, status.Status)
	assert.Contains(t, status.Message, "buffer full")

	require.NoError(t, ep.Close())
	assert.Equal(t, health.StateUnhealthy, ep.Health().Status)
}

func TestEndpoint_IOAdapter(t *testing.T) {
	ep := newTestEndpoint(t, 16, 2)
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	defer cancel()

	payload := bytes.Repeat([]byte("0123456789"), 10)

	var g errgroup.Group
	g.Go(func() error {
		wio := w.IO(ctx)
		n, err := wio.Write(payload)
		if err != nil {
			return err
		}
		if n != len(payload) {
			return io.ErrShortWrite
		}
		return wio.Close()
	})

	got := make([]byte, len(payload))
	_, err := io.ReadFull(r.IO(ctx), got)
	require.NoError(t, err)
	require.NoError(t, g.Wait())
	assert.Equal(t, payload, got)

	require.NoError(t, ep.Close())
	_, err = r.IO(ctx).Read(make([]byte, 1))
	assert.ErrorIs(t, err, io.EOF)
}

func TestEndpoint_ConcurrentTraffic(t *testing.T) {
	const (
		writers   = 4
		readers   = 4
		perWriter = 300
	)
	ep := newTestEndpoint(t, 8, writers+readers)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	total := writers * perWriter * 3
	var (
		mu       sync.Mutex
		received int
		sum      int
	)

	var g errgroup.Group
	for i := 0; i < writers; i++ {
		w := open(t, ep, WriteOnly)
		value := byte(i + 1)
		g.Go(func() error {
			payload := []byte{value, value, value}
			for j := 0; j < perWriter; j++ {
				if _, err := w.Write(ctx, payload); err != nil {
					return err
				}
			}
			return nil
		})
	}

	for i := 0; i < readers; i++ {
		r := open(t, ep, ReadOnly)
		g.Go(func() error {
			buf := make([]byte, 5)
			for {
				mu.Lock()
				finished := received >= total
				mu.Unlock()
				if finished {
					return nil
				}

				rctx, rcancel := context.WithTimeout(ctx, 50*time.Millisecond)
				n, err := r.Read(rctx, buf)
				rcancel()
				if err != nil {
					if errors.IsTransient(err) && ctx.Err() == nil {
						continue
					}
					return err
				}

				mu.Lock()
				received += n
				for _, b := range buf[:n] {
					sum += int(b)
				}
				mu.Unlock()
			}
		})
	}

	require.NoError(t, g.Wait())

	expected := 0
	for i := 1; i <= writers; i++ {
		expected += i * perWriter * 3
	}
	assert.Equal(t, total, received)
	assert.Equal(t, expected, sum)
	assert.Zero(t, ep.Stats().Occupied)
	assert.LessOrEqual(t, ep.Stats().Traffic.MaxOccupancy, int64(8))
}

func TestEndpoint_Metrics(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	ep := newTestEndpoint(t, 16, 2, WithMetrics(registry))
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)
	ctx := context.Background()

	_, err := w.Write(ctx, []byte("hello"))
	require.NoError(t, err)
	_, err = r.Read(ctx, make([]byte, 3))
	require.NoError(t, err)
	_, err = w.Write(ctx, make([]byte, 17))
	require.Error(t, err)

	m := ep.metrics
	require.NotNil(t, m)
	assert.Equal(t, float64(5), testutil.ToFloat64(m.bytesWritten))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("write")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.operations.WithLabelValues("read")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.operations.WithLabelValues("open")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.rejections.WithLabelValues("oversized")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.occupancy))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.sessions))
	assert.Equal(t, float64(16), testutil.ToFloat64(m.capacity))
	assert.Equal(t, float64(1), testutil.ToFloat64(registry.CoreMetrics().ErrorsTotal.WithLabelValues("test", "invalid")))

	// Close unregisters so an endpoint with the same name can be built again
	require.NoError(t, ep.Close())
	again, err := New(testConfig(16, 1), WithMetrics(registry), WithLogger(testLogger(io.Discard)))
	require.NoError(t, err)
	require.NoError(t, again.Close())
}

func TestEndpoint_WaitHistogram(t *testing.T) {
	registry := metric.NewMetricsRegistry()
	ep := newTestEndpoint(t, 16, 2, WithMetrics(registry))
	r := open(t, ep, ReadOnly)
	w := open(t, ep, WriteOnly)

	done := make(chan result, 1)
	go func() {
		n, err := r.Read(context.Background(), make([]byte, 1))
		done <- result{n, err}
	}()
	assertBlocked(t, done)
	_, err := w.Write(context.Background(), []byte("x"))
	require.NoError(t, err)
	require.NoError(t, waitFor(t, done).err)

	assert.Equal(t, 1, testutil.CollectAndCount(ep.metrics.waits))
}
