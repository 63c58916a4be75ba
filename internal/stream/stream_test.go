package stream

import (
	"context"
	"errors"
	"strconv"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMapFilterCountAreLazy(t *testing.T) {
	pulled := 0
	src := FromFunc(func() ([]int, error) { return []int{1, 2, 3, 4}, nil }, func(i int) (int, error) {
		pulled++
		return i, nil
	})
	even := Filter(src, func(i int) bool { return i%2 == 0 })
	labels := Map(even, func(i int) (string, error) { return strconv.Itoa(i), nil })
	require.Equal(t, 0, pulled, "building the chain must not pull")

	got, err := Collect(labels)
	require.NoError(t, err)
	require.Equal(t, []string{"2", "4"}, got)
	require.Equal(t, 4, pulled)
}

func TestFromFuncDoesNotListKeysUntilPulled(t *testing.T) {
	listed := false
	seq := FromFunc(func() ([]string, error) {
		listed = true
		return []string{"a"}, nil
	}, func(s string) (string, error) { return s, nil })
	_ = Map(seq, func(s string) (string, error) { return s + s, nil })
	require.False(t, listed)
}

func TestErrorStopsDownstream(t *testing.T) {
	boom := errors.New("boom")
	seen := 0
	seq := Map(FromSlice([]int{1, 2, 3}), func(i int) (int, error) {
		if i == 2 {
			return 0, boom
		}
		return i, nil
	})
	seq = Tap(seq, func(int) error {
		seen++
		return nil
	})
	n, err := Count(context.Background(), seq)
	require.ErrorIs(t, err, boom)
	require.Equal(t, 1, n)
	require.Equal(t, 1, seen)
}

func TestFailYieldsErrorOnFirstPull(t *testing.T) {
	boom := errors.New("unset")
	n, err := Count(context.Background(), Fail[int](boom))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, boom)
}

func TestIdentityKeepsOrder(t *testing.T) {
	in := []string{"c", "a", "b"}
	plain, err := Collect(FromSlice(in))
	require.NoError(t, err)
	hooked, err := Collect(Identity(FromSlice(in)))
	require.NoError(t, err)
	require.Equal(t, plain, hooked)
}

func TestFlatMapAndEarlyStop(t *testing.T) {
	seq := FlatMap(FromSlice([]int{1, 2}), func(i int) ([]int, error) { return []int{i, i * 10}, nil })
	var got []int
	for v, err := range seq {
		require.NoError(t, err)
		got = append(got, v)
		if len(got) == 3 {
			break
		}
	}
	require.Equal(t, []int{1, 10, 2}, got)
}

func TestCountHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n, err := Count(ctx, FromSlice([]int{1, 2, 3}))
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, 1, n)
}

func TestEmpty(t *testing.T) {
	n, err := Count(context.Background(), Empty[int]())
	require.NoError(t, err)
	require.Zero(t, n)
}
