package command

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nrgchamp/homectl/internal/clock"
)

func TestGetAllCommandsForTargetReturnsInsertedExecution(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cmd := fanCommand()

	res, err := s.Execute(ctx, cmd, SystemSource("planning:fan:start"), "corr-1", neverReflected)
	require.NoError(t, err)
	require.Equal(t, Triggered, res)

	rows, err := s.GetAllCommandsForTarget(ctx, cmd.Target(), clock.Now().Add(clock.Hours(-1)))
	require.NoError(t, err)
	require.Len(t, rows, 1)

	assert.Equal(t, cmd, rows[0].Command)
	assert.Equal(t, Pending, rows[0].State)
	assert.Equal(t, SystemSource("planning:fan:start"), rows[0].Source)
}

func TestGetAllCommandsForTargetCoalescesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	cmd := fanCommand()

	_, err := s.Execute(ctx, cmd, SystemSource("planning:fan:start"), "corr-1", neverReflected)
	require.NoError(t, err)

	since := clock.Now().Add(clock.Hours(-1))
	const concurrency = 8

	var wg sync.WaitGroup
	results := make([][]Execution, concurrency)
	errs := make([]error, concurrency)
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.GetAllCommandsForTarget(ctx, cmd.Target(), since)
		}(i)
	}
	wg.Wait()

	for i := 0; i < concurrency; i++ {
		require.NoError(t, errs[i])
		require.Len(t, results[i], 1)
		assert.Equal(t, results[0][0].Command, results[i][0].Command)
	}
}
