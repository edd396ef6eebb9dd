package vm_test

import (
	"context"
	"testing"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
	"github.com/stretchr/testify/require"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/gen"
	"github.com/davm-project/davm/chain/types"
	"github.com/davm-project/davm/chain/vm"
	"github.com/davm-project/davm/chain/wallet"
)

const (
	initialNative  = 10_000
	initialSupply  = 1000
	poolLiquidity  = 1000
	swapTestAmount = 100
)

// harness builds the canonical test world: alice holds the supply of
// token X, bob holds token Y and has funded the exchange's Y liquidity,
// and the (X, Y) pair is registered.
type harness struct {
	t   *testing.T
	ctx context.Context
	b   *gen.Builder

	alice *wallet.Key
	bob   *wallet.Key

	tokenX   address.Address
	tokenY   address.Address
	exchange address.Address

	nonces map[address.Address]uint64
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	ctx := context.Background()

	b, err := gen.NewBuilder(ctx)
	require.NoError(t, err)

	h := &harness{
		t:      t,
		ctx:    ctx,
		b:      b,
		nonces: make(map[address.Address]uint64),
	}

	h.alice, err = wallet.GenerateKey()
	require.NoError(t, err)
	h.bob, err = wallet.GenerateKey()
	require.NoError(t, err)

	for _, k := range []*wallet.Key{h.alice, h.bob} {
		require.NoError(t, b.AddAccount(ctx, k.Address, types.NewInt(initialNative)))
	}

	h.tokenX = idAddr(t, 100)
	h.tokenY = idAddr(t, 101)
	h.exchange = idAddr(t, 102)

	require.NoError(t, b.CreateActor(ctx, h.tokenX, actors.TokenCodeCid, &actors.TokenConstructorParams{
		Name: "Token X", Symbol: "TKX", Owner: h.alice.Address, Supply: types.NewInt(initialSupply),
	}))
	require.NoError(t, b.CreateActor(ctx, h.tokenY, actors.TokenCodeCid, &actors.TokenConstructorParams{
		Name: "Token Y", Symbol: "TKY", Owner: h.bob.Address, Supply: types.NewInt(initialSupply),
	}))
	require.NoError(t, b.CreateActor(ctx, h.exchange, actors.ExchangeCodeCid, nil))

	h.mustOK(h.send(h.bob.Address, h.exchange, actors.ExchangeMethods.CreatePair, types.NewInt(0),
		&actors.ExchangePairParams{TokenA: h.tokenX, TokenB: h.tokenY}))
	h.mustOK(h.send(h.bob.Address, h.tokenY, actors.TokenMethods.Approve, types.NewInt(0),
		&actors.TokenApproveParams{Spender: h.exchange, Amount: types.NewInt(poolLiquidity)}))
	h.mustOK(h.send(h.bob.Address, h.exchange, actors.ExchangeMethods.DepositLiquidity, types.NewInt(0),
		&actors.ExchangeDepositParams{Token: h.tokenY, Amount: types.NewInt(poolLiquidity)}))

	return h
}

func idAddr(t *testing.T, i uint64) address.Address {
	t.Helper()
	a, err := address.NewIDAddress(i)
	require.NoError(t, err)
	return a
}

func serialize(t *testing.T, obj interface{}) []byte {
	t.Helper()
	if obj == nil {
		return nil
	}
	enc, aerr := actors.SerializeParams(obj)
	require.Nil(t, aerr)
	return enc
}

// send applies a message from an account, tracking nonces. It fails the
// test only on platform errors; actor-level failures come back in the
// receipt.
func (h *harness) send(from, to address.Address, method abi.MethodNum, value types.BigInt, params interface{}) *vm.ApplyRet {
	h.t.Helper()

	ret, err := h.b.VM.ApplyMessage(h.ctx, &types.Message{
		From:   from,
		To:     to,
		Nonce:  h.nonces[from],
		Value:  value,
		Method: method,
		Params: serialize(h.t, params),
	})
	require.NoError(h.t, err)
	h.nonces[from]++
	return ret
}

func (h *harness) mustOK(ret *vm.ApplyRet) *vm.ApplyRet {
	h.t.Helper()
	if ret.Failed() {
		h.t.Fatalf("message failed with exit code %d: %v", ret.ExitCode, ret.ActorErr)
	}
	return ret
}

// attach binds a delegate implementation to the key's identity with a
// valid proof.
func (h *harness) attach(key *wallet.Key, code cid.Cid) {
	h.t.Helper()
	proof, err := key.Sign(vm.BindingPayload(key.Address, code))
	require.NoError(h.t, err)
	require.NoError(h.t, h.b.VM.AttachDelegation(h.ctx, key.Address, code, proof))
}

func (h *harness) batch(calls ...types.Call) *actors.DelegateExecuteParams {
	return &actors.DelegateExecuteParams{Calls: calls}
}

func (h *harness) call(to address.Address, method abi.MethodNum, value types.BigInt, params interface{}) types.Call {
	return types.Call{
		To:     to,
		Value:  value,
		Method: method,
		Params: serialize(h.t, params),
	}
}

func (h *harness) tokenBalance(token, who address.Address) types.BigInt {
	h.t.Helper()

	ret, err := h.b.VM.ApplyImplicitMessage(h.ctx, &types.Message{
		From:   actors.SystemAddress,
		To:     token,
		Value:  types.NewInt(0),
		Method: actors.TokenMethods.BalanceOf,
		Params: serialize(h.t, &actors.TokenBalanceOfParams{Who: who}),
	})
	require.NoError(h.t, err)
	require.False(h.t, ret.Failed(), "balance query failed: %v", ret.ActorErr)

	var out types.BigInt
	require.NoError(h.t, cbor.DecodeInto(ret.Return, &out))
	return out
}

func (h *harness) nativeBalance(who address.Address) types.BigInt {
	h.t.Helper()
	bal, aerr := h.b.VM.ActorBalance(who)
	require.Nil(h.t, aerr)
	return bal
}

func (h *harness) requireTokenBalance(token, who address.Address, want uint64) {
	h.t.Helper()
	got := h.tokenBalance(token, who)
	require.True(h.t, got.Equals(types.NewInt(want)), "token %s balance of %s: got %s, want %d", token, who, got, want)
}
