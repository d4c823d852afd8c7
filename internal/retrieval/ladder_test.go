package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLadder_StopsAtFirstNonEmptyTier(t *testing.T) {
	var ran []string
	step := func(name string, out []int) func(context.Context) ([]int, error) {
		return func(context.Context) ([]int, error) {
			ran = append(ran, name)
			return out, nil
		}
	}

	res, err := NewLadder[int]().
		Then("empty", step("empty", nil)).
		Then("hit", step("hit", []int{1, 2})).
		Then("never", step("never", []int{3})).
		Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []int{1, 2}, res.Items)
	assert.Equal(t, "hit", res.Tier)
	assert.Equal(t, []string{"empty", "hit"}, ran)
}

func TestLadder_SkipsFailingTier(t *testing.T) {
	res, err := NewLadder(
		Step[string]{Name: "broken", Run: func(context.Context) ([]string, error) { return nil, errors.New("db down") }},
		Step[string]{Name: "backup", Run: func(context.Context) ([]string, error) { return []string{"ok"}, nil }},
	).Run(context.Background())

	require.NoError(t, err)
	assert.Equal(t, "backup", res.Tier)
	require.Len(t, res.Failures, 1)
	assert.Contains(t, res.Failures[0].Error(), "broken: db down")
}

func TestLadder_AllEmpty(t *testing.T) {
	res, err := NewLadder[int]().
		Then("a", func(context.Context) ([]int, error) { return nil, nil }).
		Then("b", func(context.Context) ([]int, error) { return []int{}, nil }).
		Run(context.Background())

	require.NoError(t, err)
	assert.Empty(t, res.Items)
	assert.Empty(t, res.Tier)
}

func TestLadder_AllFailed(t *testing.T) {
	_, err := NewLadder[int]().
		Then("a", func(context.Context) ([]int, error) { return nil, errors.New("first") }).
		Then("b", func(context.Context) ([]int, error) { return nil, nil }).
		Run(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "a: first")
}

func TestLadder_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	_, err := NewLadder[int]().
		Then("a", func(context.Context) ([]int, error) { called = true; return []int{1}, nil }).
		Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
