package actors

import (
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/stretchr/testify/require"
)

func secpAddr(t *testing.T, seed byte) address.Address {
	t.Helper()
	pub := make([]byte, 65)
	pub[0] = seed + 1
	a, err := address.NewSecp256k1Address(pub)
	require.NoError(t, err)
	return a
}

// The gate is a pure predicate; exhaust the caller/acting combinations.
func TestPolicyAuthorize(t *testing.T) {
	a := secpAddr(t, 0)
	b := secpAddr(t, 1)

	require.True(t, PolicyOpen.authorize(a, a))
	require.True(t, PolicyOpen.authorize(b, a))

	require.True(t, PolicySelfOnly.authorize(a, a))
	require.False(t, PolicySelfOnly.authorize(b, a))
	require.False(t, PolicySelfOnly.authorize(a, b))
}

func TestDelegateVariantTags(t *testing.T) {
	open := DelegateOpenActor()
	selfOnly := DelegateSelfOnlyActor()

	require.Equal(t, PolicyOpen, open.policy)
	require.Equal(t, PolicySelfOnly, selfOnly.policy)
	require.Equal(t, DelegateOpenActorName, open.tag)
	require.Equal(t, DelegateSelfOnlyActorName, selfOnly.tag)
	require.NotEqual(t, open.tag, selfOnly.tag)
}

func TestDelegateExportsShareMethodNumbers(t *testing.T) {
	open := DelegateOpenActor().Exports()
	selfOnly := DelegateSelfOnlyActor().Exports()
	require.Equal(t, len(open), len(selfOnly))

	require.NotNil(t, open[DelegateMethods.Identifier])
	require.NotNil(t, open[DelegateMethods.Execute])
	require.NotNil(t, selfOnly[DelegateMethods.Identifier])
	require.NotNil(t, selfOnly[DelegateMethods.Execute])
}
