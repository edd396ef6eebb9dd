package actors

import (
	"strings"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/types"
)

func init() {
	cbor.RegisterCborType(ExchangeState{})
	cbor.RegisterCborType(ExchangePairParams{})
	cbor.RegisterCborType(ExchangeDepositParams{})
	cbor.RegisterCborType(ExchangeSwapParams{})
}

// ExchangeActor is a fixed-rate (1:1) exchange. It owns no balances of
// its own bookkeeping; its liquidity is simply its balance on each token
// ledger, funded through DepositLiquidity.
type ExchangeActor struct{}

type ExchangeState struct {
	// Pairs is keyed by the order-insensitive pair key of two token
	// actor addresses.
	Pairs map[string]bool
}

type exchangeMethods struct {
	Constructor      abi.MethodNum
	CreatePair       abi.MethodNum
	HasPair          abi.MethodNum
	DepositLiquidity abi.MethodNum
	Swap             abi.MethodNum
}

var ExchangeMethods = exchangeMethods{1, 2, 3, 4, 5}

func (ea ExchangeActor) Exports() []interface{} {
	return []interface{}{
		1: ea.Constructor,
		2: ea.CreatePair,
		3: ea.HasPair,
		4: ea.DepositLiquidity,
		5: ea.Swap,
	}
}

type ExchangePairParams struct {
	TokenA address.Address
	TokenB address.Address
}

type ExchangeDepositParams struct {
	Token  address.Address
	Amount types.BigInt
}

type ExchangeSwapParams struct {
	TokenIn      address.Address
	TokenOut     address.Address
	AmountIn     types.BigInt
	MinAmountOut types.BigInt
}

func pairKey(a, b address.Address) string {
	ka, kb := string(a.Bytes()), string(b.Bytes())
	if strings.Compare(ka, kb) > 0 {
		ka, kb = kb, ka
	}
	return ka + "/" + kb
}

func (ExchangeActor) Constructor(act *types.Actor, vmctx types.VMContext, params *struct{}) ([]byte, aerrors.ActorError) {
	if vmctx.Message().From != SystemAddress {
		return nil, aerrors.Newf(ExitUnauthorized, "constructor may only run with platform authority, not %s", vmctx.Message().From)
	}
	st := ExchangeState{
		Pairs: make(map[string]bool),
	}
	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}
	return nil, nil
}

func (ExchangeActor) CreatePair(act *types.Actor, vmctx types.VMContext, params *ExchangePairParams) ([]byte, aerrors.ActorError) {
	if params.TokenA == params.TokenB {
		return nil, aerrors.New(ExitInvalidArgument, "cannot pair a token with itself")
	}

	var st ExchangeState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	key := pairKey(params.TokenA, params.TokenB)
	if st.Pairs[key] {
		return nil, aerrors.Newf(ExitInvalidArgument, "pair (%s, %s) already registered", params.TokenA, params.TokenB)
	}
	st.Pairs[key] = true

	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}

	return nil, emitEvent(vmctx,
		"$type", "PairCreated",
		"tokenA", params.TokenA,
		"tokenB", params.TokenB,
	)
}

func (ExchangeActor) HasPair(act *types.Actor, vmctx types.VMContext, params *ExchangePairParams) ([]byte, aerrors.ActorError) {
	var st ExchangeState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	return SerializeParams(st.Pairs[pairKey(params.TokenA, params.TokenB)])
}

func (ExchangeActor) DepositLiquidity(act *types.Actor, vmctx types.VMContext, params *ExchangeDepositParams) ([]byte, aerrors.ActorError) {
	if err := validAmount(params.Amount); err != nil {
		return nil, err
	}
	if params.Amount.Sign() == 0 {
		return nil, aerrors.New(ExitInvalidArgument, "cannot deposit zero liquidity")
	}

	depositor := vmctx.Message().From
	self := vmctx.Message().To

	// pull the funds; fails in the token actor without a prior approval
	if err := tokenPull(vmctx, params.Token, depositor, self, params.Amount); err != nil {
		return nil, err
	}

	return nil, emitEvent(vmctx,
		"$type", "LiquidityDeposited",
		"token", params.Token,
		"from", depositor,
		"amount", params.Amount,
	)
}

func (ExchangeActor) Swap(act *types.Actor, vmctx types.VMContext, params *ExchangeSwapParams) ([]byte, aerrors.ActorError) {
	if err := validAmount(params.AmountIn); err != nil {
		return nil, err
	}
	if params.AmountIn.Sign() == 0 {
		return nil, aerrors.New(ExitInvalidArgument, "cannot swap zero amount")
	}

	var st ExchangeState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	if !st.Pairs[pairKey(params.TokenIn, params.TokenOut)] {
		return nil, aerrors.Newf(ExitDispatchFailure, "no pair registered for (%s, %s)", params.TokenIn, params.TokenOut)
	}

	// fixed 1:1 rate
	amountOut := params.AmountIn
	if !params.MinAmountOut.Nil() && amountOut.LessThan(params.MinAmountOut) {
		return nil, aerrors.Newf(ExitDispatchFailure, "output %s below minimum %s", amountOut, params.MinAmountOut)
	}

	caller := vmctx.Message().From
	self := vmctx.Message().To

	liquidity, err := tokenBalance(vmctx, params.TokenOut, self)
	if err != nil {
		return nil, err
	}
	if liquidity.LessThan(amountOut) {
		return nil, aerrors.Newf(ExitDispatchFailure, "insufficient %s liquidity: have %s, need %s", params.TokenOut, liquidity, amountOut)
	}

	if err := tokenPull(vmctx, params.TokenIn, caller, self, params.AmountIn); err != nil {
		return nil, err
	}

	payout, err := SerializeParams(TokenTransferParams{To: caller, Amount: amountOut})
	if err != nil {
		return nil, err
	}
	if _, err := vmctx.Send(params.TokenOut, TokenMethods.Transfer, types.NewInt(0), payout); err != nil {
		return nil, aerrors.Wrap(err, "paying out swap")
	}

	return nil, emitEvent(vmctx,
		"$type", "Swapped",
		"who", caller,
		"tokenIn", params.TokenIn,
		"tokenOut", params.TokenOut,
		"amountIn", params.AmountIn,
		"amountOut", amountOut,
	)
}

// tokenPull moves amount of token from owner to dest using the allowance
// owner granted to the current acting identity.
func tokenPull(vmctx types.VMContext, token, owner, dest address.Address, amount types.BigInt) aerrors.ActorError {
	enc, err := SerializeParams(TokenTransferFromParams{Owner: owner, To: dest, Amount: amount})
	if err != nil {
		return err
	}
	if _, err := vmctx.Send(token, TokenMethods.TransferFrom, types.NewInt(0), enc); err != nil {
		return aerrors.Wrapf(err, "pulling %s of token %s from %s", amount, token, owner)
	}
	return nil
}

func tokenBalance(vmctx types.VMContext, token, who address.Address) (types.BigInt, aerrors.ActorError) {
	enc, err := SerializeParams(TokenBalanceOfParams{Who: who})
	if err != nil {
		return types.EmptyInt, err
	}
	ret, err := vmctx.Send(token, TokenMethods.BalanceOf, types.NewInt(0), enc)
	if err != nil {
		return types.EmptyInt, aerrors.Wrapf(err, "querying balance of %s on %s", who, token)
	}
	var out types.BigInt
	if err := cbor.DecodeInto(ret, &out); err != nil {
		return types.EmptyInt, aerrors.Absorb(err, exitcode.ErrSerialization, "decoding balance")
	}
	return out, nil
}
