package actors

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPairKeyOrderInsensitive(t *testing.T) {
	a := mustIDAddress(100)
	b := mustIDAddress(101)

	require.Equal(t, pairKey(a, b), pairKey(b, a))
	require.NotEqual(t, pairKey(a, b), pairKey(a, mustIDAddress(102)))
}
