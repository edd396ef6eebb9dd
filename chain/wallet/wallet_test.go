package wallet

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("bind me")
	sig, err := k.Sign(msg)
	require.NoError(t, err)

	require.NoError(t, Verify(sig, k.Address, msg))
}

func TestVerifyRejectsWrongSigner(t *testing.T) {
	k1, err := GenerateKey()
	require.NoError(t, err)
	k2, err := GenerateKey()
	require.NoError(t, err)

	msg := []byte("bind me")
	sig, err := k1.Sign(msg)
	require.NoError(t, err)

	require.Error(t, Verify(sig, k2.Address, msg))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	sig, err := k.Sign([]byte("original"))
	require.NoError(t, err)

	require.Error(t, Verify(sig, k.Address, []byte("tampered")))
}

func TestKeyDerivesStableAddress(t *testing.T) {
	k, err := GenerateKey()
	require.NoError(t, err)

	again, err := NewKey(k.PrivateKey)
	require.NoError(t, err)
	require.Equal(t, k.Address, again.Address)
}
