package buildstate

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/memolink/internal/apperr"
)

func TestGuard_RejectsSecondBegin(t *testing.T) {
	var g Guard
	require.NoError(t, g.Begin())
	assert.Equal(t, Building, g.Phase())
	assert.ErrorIs(t, g.Begin(), apperr.ErrRebuildInProgress)
	g.End()
	assert.Equal(t, Idle, g.Phase())
	require.NoError(t, g.Begin())
	g.End()
}

func TestGuard_RunsImmediatelyWhenIdle(t *testing.T) {
	var g Guard
	ran := false
	queued := g.Do(func() { ran = true })
	assert.False(t, queued)
	assert.True(t, ran)
}

func TestGuard_QueuesAndReplaysInOrder(t *testing.T) {
	var g Guard
	require.NoError(t, g.Begin())

	var got []int
	for i := 1; i <= 3; i++ {
		n := i
		assert.True(t, g.Do(func() { got = append(got, n) }))
	}
	assert.Empty(t, got)

	g.End()
	assert.Equal(t, []int{1, 2, 3}, got)
	assert.Equal(t, Idle, g.Phase())
}

func TestGuard_ConcurrentUpdatesDuringBuild(t *testing.T) {
	var g Guard
	require.NoError(t, g.Begin())

	var mu sync.Mutex
	count := 0
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			g.Do(func() {
				mu.Lock()
				count++
				mu.Unlock()
			})
		}()
	}
	wg.Wait()
	g.End()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 20, count)
}

func TestPhase_String(t *testing.T) {
	assert.Equal(t, "idle", Idle.String())
	assert.Equal(t, "building", Building.String())
}
