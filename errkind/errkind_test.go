package errkind

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSQLStateSyntax(t *testing.T) {
	err := Syntax.New("unexpected token")
	require.Equal(t, StateSyntax, SQLState(err))
}

func TestSQLStateExecutionFamily(t *testing.T) {
	require.Equal(t, StateExecution, SQLState(NotFoundTable.New("users")))
	require.Equal(t, StateExecution, SQLState(ConstraintViolation.New("k")))
	require.Equal(t, StateExecution, SQLState(Execution.New("bad thing")))
}

func TestSQLStateNilError(t *testing.T) {
	require.Equal(t, "", SQLState(nil))
}

func TestConstraintViolationIsMatching(t *testing.T) {
	err := ConstraintViolation.New("k")
	require.True(t, ConstraintViolation.Is(err))
	require.False(t, NotFoundTable.Is(err))
}
