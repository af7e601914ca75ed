package devices

import (
	"sync"
	"testing"
	"time"

	"github.com/bryan-essi/mobiq/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHandleTryAcquire_Exclusive(t *testing.T) {
	handle := NewHandle("d1", time.Now())

	assert.True(t, handle.TryAcquire("ed-1"))
	assert.False(t, handle.TryAcquire("ed-2"), "second holder must be rejected")
	assert.Equal(t, models.DeviceStatusBusy, handle.Snapshot().Status)

	require.NoError(t, handle.Release("ed-1"))
	assert.Equal(t, models.DeviceStatusConnected, handle.Snapshot().Status)
	assert.True(t, handle.TryAcquire("ed-2"))
}

func TestHandleTryAcquire_ReentrantForSameHolder(t *testing.T) {
	handle := NewHandle("d1", time.Now())

	assert.True(t, handle.TryAcquire("ed-1"))
	assert.True(t, handle.TryAcquire("ed-1"), "same holder may re-acquire its claim")
	assert.False(t, handle.TryAcquire("ed-2"))
}

func TestHandleTryAcquire_ConcurrentExactlyOneWins(t *testing.T) {
	handle := NewHandle("d1", time.Now())

	const attempts = 50

	var wg sync.WaitGroup

	results := make([]bool, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)

		go func(n int) {
			defer wg.Done()

			results[n] = handle.TryAcquire("ed-" + string(rune('a'+n%26)) + string(rune('0'+n/26)))
		}(i)
	}

	wg.Wait()

	wins := 0

	for _, won := range results {
		if won {
			wins++
		}
	}

	assert.Equal(t, 1, wins, "exactly one concurrent acquirer must win")
}

func TestHandleRelease_NotHolder(t *testing.T) {
	handle := NewHandle("d1", time.Now())

	err := handle.Release("ed-1")

	var notHolder *NotHolderError

	require.ErrorAs(t, err, &notHolder)
	assert.Equal(t, "d1", notHolder.DeviceID)
	assert.Equal(t, "ed-1", notHolder.CallerID)

	require.True(t, handle.TryAcquire("ed-1"))
	err = handle.Release("ed-2")
	require.ErrorAs(t, err, &notHolder)
	assert.Equal(t, "ed-1", notHolder.HolderID)
}

func TestHandleMarkDisconnected_ClearsHolder(t *testing.T) {
	handle := NewHandle("d1", time.Now())
	require.True(t, handle.TryAcquire("ed-1"))

	handle.MarkDisconnected()

	assert.Equal(t, models.DeviceStatusDisconnected, handle.Snapshot().Status)
	assert.False(t, handle.TryAcquire("ed-2"), "disconnected device is not claimable")

	// The stale holder releasing is a coordination defect, not a panic.
	err := handle.Release("ed-1")
	assert.Error(t, err)
}

func TestHandleRelease_WhileDisconnected_StaysDisconnected(t *testing.T) {
	handle := NewHandle("d1", time.Now())
	require.True(t, handle.TryAcquire("ed-1"))

	// Vanished mid-claim, then re-reported before release.
	handle.MarkDisconnected()
	handle.markSeen(time.Now())

	assert.Equal(t, models.DeviceStatusConnected, handle.Snapshot().Status)
}
