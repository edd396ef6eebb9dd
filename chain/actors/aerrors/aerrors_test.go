package aerrors

import (
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"
)

func TestNewCarriesCode(t *testing.T) {
	err := Newf(exitcode.ErrForbidden, "caller %s rejected", "f0101")
	require.Equal(t, exitcode.ErrForbidden, err.RetCode())
	require.False(t, err.IsFatal())
	require.Contains(t, err.Error(), "f0101")
}

func TestNewWithZeroCodeEscalates(t *testing.T) {
	err := New(exitcode.Ok, "oops")
	require.True(t, err.IsFatal())
}

func TestWrapPreservesCodeAndFatality(t *testing.T) {
	inner := New(exitcode.ErrInsufficientFunds, "no funds")
	outer := Wrapf(inner, "call %d failed", 3)
	require.Equal(t, exitcode.ErrInsufficientFunds, outer.RetCode())
	require.False(t, outer.IsFatal())
	require.Contains(t, outer.Error(), "call 3 failed")
	require.Contains(t, outer.Error(), "no funds")

	require.Nil(t, Wrap(nil, "nothing"))
}

func TestAbsorb(t *testing.T) {
	plain := xerrors.New("disk exploded")
	err := Absorb(plain, exitcode.ErrIllegalState, "reading state")
	require.Equal(t, exitcode.ErrIllegalState, err.RetCode())
	require.False(t, err.IsFatal())

	require.Nil(t, Absorb(nil, exitcode.ErrIllegalState, "nothing"))

	fatal := Escalate(plain, "bad")
	require.True(t, Absorb(fatal, exitcode.ErrIllegalState, "rewrapping").IsFatal())
}

func TestEscalateIsFatal(t *testing.T) {
	err := Escalate(xerrors.New("boom"), "escalating")
	require.True(t, err.IsFatal())
	require.True(t, IsFatal(err))
	require.Nil(t, Escalate(nil, "nothing"))
}

func TestRetCode(t *testing.T) {
	require.Equal(t, exitcode.Ok, RetCode(nil))
	require.Equal(t, exitcode.ErrForbidden, RetCode(New(exitcode.ErrForbidden, "no")))
}
