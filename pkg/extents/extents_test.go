package extents_test

import (
	"testing"

	"github.com/ostafen/discproc/pkg/extents"
	"github.com/stretchr/testify/require"
)

func TestSet_AddMergesAdjacent(t *testing.T) {
	var s extents.Set
	s.AddRange(10, 5) // [10,15)
	s.AddRange(15, 5) // [15,20) -> merges into [10,20)

	require.Equal(t, []extents.Range{{Start: 10, End: 20}}, s.Ranges())
}

func TestSet_AddMergesOverlapping(t *testing.T) {
	var s extents.Set
	s.AddRange(0, 10)
	s.AddRange(5, 20)

	require.Equal(t, []extents.Range{{Start: 0, End: 25}}, s.Ranges())
}

func TestSet_ContainsAndRemove(t *testing.T) {
	var s extents.Set
	s.AddRange(100, 10)

	require.True(t, s.Contains(105))
	require.False(t, s.Contains(99))
	require.False(t, s.Contains(110))

	s.Remove(105)
	require.False(t, s.Contains(105))
	require.True(t, s.Contains(104))
	require.True(t, s.Contains(106))
}

func TestSet_RoundTrip(t *testing.T) {
	var s extents.Set
	s.Add(1)
	s.AddRange(5, 3)
	s.AddRange(20, 1)

	rebuilt := extents.FromRanges(s.Ranges())
	require.Equal(t, s.Ranges(), rebuilt.Ranges())
}

func TestSet_Disjoint(t *testing.T) {
	var good, bad extents.Set
	good.AddRange(0, 100)
	bad.AddRange(200, 10)

	require.True(t, good.Disjoint(&bad))

	bad.Add(50)
	require.False(t, good.Disjoint(&bad))
}
