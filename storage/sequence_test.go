package storage

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSequenceNextValStartsAtMin(t *testing.T) {
	s := NewSequence("s", 1, 100, 1)
	require.Equal(t, int64(1), s.NextVal())
	require.Equal(t, int64(2), s.NextVal())
	require.Equal(t, int64(3), s.NextVal())
}

func TestSequenceWrapsAtMax(t *testing.T) {
	s := NewSequence("s", 1, 3, 1)
	require.Equal(t, int64(1), s.NextVal())
	require.Equal(t, int64(2), s.NextVal())
	require.Equal(t, int64(3), s.NextVal())
	require.Equal(t, int64(1), s.NextVal()) // wraps back to min
}

func TestSequenceCurrValBeforeNextVal(t *testing.T) {
	s := NewSequence("s", 1, 100, 1)
	_, called := s.CurrVal()
	require.False(t, called)

	s.NextVal()
	v, called := s.CurrVal()
	require.True(t, called)
	require.Equal(t, int64(1), v)
}

func TestSequenceNameFor(t *testing.T) {
	require.Equal(t, "users_id_seq", SequenceNameFor("users", "id"))
}
