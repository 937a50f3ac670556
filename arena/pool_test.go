package arena

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPoolPushAndGet(t *testing.T) {
	var p Pool[string]
	i0 := p.Push("a")
	i1 := p.Push("b")
	require.Equal(t, uint32(0), i0)
	require.Equal(t, uint32(1), i1)
	require.Equal(t, "a", p.Get(i0))
	require.Equal(t, "b", p.Get(i1))
	require.Equal(t, 2, p.Len())
}

func TestPoolPtrMutatesInPlace(t *testing.T) {
	var p Pool[int]
	idx := p.Push(1)
	*p.Ptr(idx) = 42
	require.Equal(t, 42, p.Get(idx))
}

func TestPoolRange(t *testing.T) {
	var p Pool[int]
	p.Push(0)
	start, count := p.Range([]int{10, 20, 30})
	require.Equal(t, uint32(1), start)
	require.Equal(t, uint32(3), count)
	require.Equal(t, []int{0, 10, 20, 30}, p.Slice())
}

func TestPoolReset(t *testing.T) {
	var p Pool[int]
	p.Push(1)
	p.Push(2)
	p.Reset()
	require.Equal(t, 0, p.Len())
	p.Push(3)
	require.Equal(t, 3, p.Get(0))
}
