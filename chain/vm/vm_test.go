package vm_test

import (
	"testing"

	"github.com/filecoin-project/go-state-types/exitcode"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/require"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/types"
	"github.com/davm-project/davm/chain/vm"
	"github.com/davm-project/davm/chain/wallet"
)

func TestBareValueSend(t *testing.T) {
	h := newHarness(t)

	h.mustOK(h.send(h.alice.Address, h.bob.Address, 0, types.NewInt(250), nil))

	require.True(t, h.nativeBalance(h.alice.Address).Equals(types.NewInt(initialNative-250)))
	require.True(t, h.nativeBalance(h.bob.Address).Equals(types.NewInt(initialNative+250)))
}

func TestValueSendCreatesReceiver(t *testing.T) {
	h := newHarness(t)

	fresh, err := wallet.GenerateKey()
	require.NoError(t, err)

	h.mustOK(h.send(h.alice.Address, fresh.Address, 0, types.NewInt(50), nil))
	require.True(t, h.nativeBalance(fresh.Address).Equals(types.NewInt(50)))
}

func TestSenderMustExist(t *testing.T) {
	h := newHarness(t)

	ghost, err := wallet.GenerateKey()
	require.NoError(t, err)

	ret := h.send(ghost.Address, h.bob.Address, 0, types.NewInt(1), nil)
	require.Equal(t, exitcode.SysErrSenderInvalid, ret.ExitCode)
}

func TestSenderMustBeAccount(t *testing.T) {
	h := newHarness(t)

	ret := h.send(h.tokenX, h.bob.Address, 0, types.NewInt(0), nil)
	require.Equal(t, exitcode.SysErrSenderInvalid, ret.ExitCode)
}

func TestNonceMustMatch(t *testing.T) {
	h := newHarness(t)

	ret, err := h.b.VM.ApplyMessage(h.ctx, &types.Message{
		From:   h.alice.Address,
		To:     h.bob.Address,
		Nonce:  h.nonces[h.alice.Address] + 7,
		Value:  types.NewInt(1),
		Method: 0,
	})
	require.NoError(t, err)
	require.Equal(t, exitcode.SysErrSenderStateInvalid, ret.ExitCode)
}

func TestValueCannotExceedBalance(t *testing.T) {
	h := newHarness(t)

	ret := h.send(h.alice.Address, h.bob.Address, 0, types.NewInt(initialNative+1), nil)
	require.Equal(t, exitcode.SysErrSenderStateInvalid, ret.ExitCode)

	require.True(t, h.nativeBalance(h.alice.Address).Equals(types.NewInt(initialNative)))
	require.True(t, h.nativeBalance(h.bob.Address).Equals(types.NewInt(initialNative)))
}

// An actor-level failure reverts everything the message did, including
// the value credited to the receiver before dispatch.
func TestActorErrorRevertsValueTransfer(t *testing.T) {
	h := newHarness(t)

	// bob holds no X, so the transfer fails after the value moved
	ret := h.send(h.bob.Address, h.tokenX, actors.TokenMethods.Transfer, types.NewInt(75),
		&actors.TokenTransferParams{To: h.alice.Address, Amount: types.NewInt(10)})
	require.True(t, ret.Failed())
	require.Equal(t, actors.ExitDispatchFailure, ret.ExitCode)
	require.Empty(t, ret.Events)

	require.True(t, h.nativeBalance(h.bob.Address).Equals(types.NewInt(initialNative)))
	require.True(t, h.nativeBalance(h.tokenX).Equals(types.NewInt(0)))
}

func TestEventsSurviveSuccessfulSend(t *testing.T) {
	h := newHarness(t)

	ret := h.mustOK(h.send(h.alice.Address, h.tokenX, actors.TokenMethods.Transfer, types.NewInt(0),
		&actors.TokenTransferParams{To: h.bob.Address, Amount: types.NewInt(1)}))

	require.Len(t, ret.Events, 1)
	require.Equal(t, h.tokenX, ret.Events[0].Emitter)
	typ, ok := ret.Events[0].Entry("$type")
	require.True(t, ok)
	require.NotEmpty(t, typ)
}

// Constructors run only with platform authority at genesis; an ordinary
// message must not be able to re-run one and seize the ledger.
func TestConstructorRequiresPlatformAuthority(t *testing.T) {
	h := newHarness(t)

	ret := h.send(h.bob.Address, h.tokenX, actors.TokenMethods.Constructor, types.NewInt(0),
		&actors.TokenConstructorParams{
			Name: "Token X", Symbol: "TKX", Owner: h.bob.Address, Supply: types.NewInt(999_999),
		})
	require.Equal(t, actors.ExitUnauthorized, ret.ExitCode)

	h.requireTokenBalance(h.tokenX, h.alice.Address, initialSupply)
	h.requireTokenBalance(h.tokenX, h.bob.Address, 0)

	ret = h.send(h.bob.Address, h.exchange, actors.ExchangeMethods.Constructor, types.NewInt(0), nil)
	require.Equal(t, actors.ExitUnauthorized, ret.ExitCode)

	// the pair table survives the attempt
	has := h.mustOK(h.send(h.bob.Address, h.exchange, actors.ExchangeMethods.HasPair, types.NewInt(0),
		&actors.ExchangePairParams{TokenA: h.tokenX, TokenB: h.tokenY}))
	var registered bool
	require.NoError(t, cbor.DecodeInto(has.Return, &registered))
	require.True(t, registered)
}

// A failing implicit message reverts like a regular one, so the value
// credited before dispatch never sticks.
func TestFailedImplicitMessageLeavesNoPartialEffects(t *testing.T) {
	h := newHarness(t)

	ret, err := h.b.VM.ApplyImplicitMessage(h.ctx, &types.Message{
		From:   h.alice.Address,
		To:     h.tokenX,
		Value:  types.NewInt(75),
		Method: actors.TokenMethods.Transfer,
		Params: serialize(t, &actors.TokenTransferParams{To: h.bob.Address, Amount: types.NewInt(initialSupply + 1)}),
	})
	require.NoError(t, err)
	require.True(t, ret.Failed())

	require.True(t, h.nativeBalance(h.alice.Address).Equals(types.NewInt(initialNative)))
	require.True(t, h.nativeBalance(h.tokenX).Equals(types.NewInt(0)))
	h.requireTokenBalance(h.tokenX, h.alice.Address, initialSupply)
}

func TestInvalidMethodNumber(t *testing.T) {
	h := newHarness(t)

	ret := h.send(h.alice.Address, h.tokenX, 99, types.NewInt(0), nil)
	require.Equal(t, exitcode.SysErrInvalidMethod, ret.ExitCode)
}

func TestFlushAndReload(t *testing.T) {
	h := newHarness(t)

	h.mustOK(h.send(h.alice.Address, h.bob.Address, 0, types.NewInt(123), nil))

	root, err := h.b.VM.Flush(h.ctx)
	require.NoError(t, err)

	reloaded, err := vm.NewVM(root, h.b.Blockstore)
	require.NoError(t, err)

	bal, aerr := reloaded.ActorBalance(h.bob.Address)
	require.Nil(t, aerr)
	require.True(t, bal.Equals(types.NewInt(initialNative+123)))
}
