package admission

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/ringdev/errors"
)

func TestNew_RejectsZero(t *testing.T) {
	_, err := New(0)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
	assert.True(t, errors.IsInvalid(err))
}

func TestAdmission_Bound(t *testing.T) {
	a, err := New(3)
	require.NoError(t, err)
	assert.Equal(t, 3, a.Max())

	for i := 0; i < 3; i++ {
		require.True(t, a.TryAcquire(), "acquire %d", i)
	}
	assert.False(t, a.TryAcquire(), "the fourth holder must be refused")
	assert.Equal(t, 3, a.Active())

	require.NoError(t, a.Release())
	assert.Equal(t, 2, a.Active())
	assert.True(t, a.TryAcquire(), "a released slot can be taken again")
}

func TestAdmission_ReleaseWithoutAcquire(t *testing.T) {
	a, err := New(2)
	require.NoError(t, err)

	err = a.Release()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidArgument)
	assert.Equal(t, 0, a.Active())

	// the bound is unchanged by the bad release
	assert.True(t, a.TryAcquire())
	assert.True(t, a.TryAcquire())
	assert.False(t, a.TryAcquire())
}

func TestAdmission_ConcurrentNeverExceeds(t *testing.T) {
	const limit = 4
	a, err := New(limit)
	require.NoError(t, err)

	var peak, current atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 500; j++ {
				if !a.TryAcquire() {
					continue
				}
				n := current.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				current.Add(-1)
				assert.NoError(t, a.Release())
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(limit))
	assert.Equal(t, 0, a.Active())
}
