package pool

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/taskbed/internal/instance"
)

func makeGroups(ids ...[]string) [][]instance.Instance {
	groups := make([][]instance.Instance, 0, len(ids))
	for _, group := range ids {
		instances := make([]instance.Instance, 0, len(group))
		for _, id := range group {
			instances = append(instances, instance.Instance{ID: id})
		}
		groups = append(groups, instances)
	}
	return groups
}

func TestRunVisitsEveryInstance(t *testing.T) {
	t.Parallel()

	// Arrange
	groups := makeGroups([]string{"a-1", "a-2"}, []string{"b-1"}, []string{"c-1", "c-2", "c-3"})
	var (
		mu   sync.Mutex
		seen []string
	)

	// Act
	err := Run(context.Background(), groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, inst.ID)
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"a-1", "a-2", "b-1", "c-1", "c-2", "c-3"}, seen)
}

func TestRunKeepsGroupOrder(t *testing.T) {
	t.Parallel()

	// Arrange
	groups := makeGroups([]string{"first", "second", "third"})
	var order []string

	// Act
	err := Run(context.Background(), groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		order = append(order, inst.ID)
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []string{"first", "second", "third"}, order)
}

func TestRunFailureCancelsOtherWorkers(t *testing.T) {
	t.Parallel()

	// Arrange
	groups := makeGroups([]string{"boom"}, []string{"slow-1", "slow-2"})
	failure := errors.New("testbed unavailable")
	var (
		mu   sync.Mutex
		seen []string
	)

	// Act
	err := Run(context.Background(), groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		mu.Lock()
		seen = append(seen, inst.ID)
		mu.Unlock()

		if inst.ID == "boom" {
			return failure
		}
		// Give the cancellation time to land before the next instance.
		time.Sleep(50 * time.Millisecond)
		return nil
	})

	// Assert
	require.ErrorIs(t, err, failure)
	mu.Lock()
	defer mu.Unlock()
	assert.NotContains(t, seen, "slow-2")
}

func TestRunHonorsParentCancellation(t *testing.T) {
	t.Parallel()

	// Arrange
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	groups := makeGroups([]string{"never"})
	calls := 0

	// Act
	err := Run(ctx, groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		calls++
		return nil
	})

	// Assert
	require.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, calls)
}

func TestRunSkipsEmptyGroups(t *testing.T) {
	t.Parallel()

	// Arrange
	groups := makeGroups([]string{}, []string{"only"})
	var workerIDs []int

	// Act
	err := Run(context.Background(), groups, func(ctx context.Context, workerID int, inst *instance.Instance) error {
		workerIDs = append(workerIDs, workerID)
		return nil
	})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []int{1}, workerIDs)
}
