package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/types"
)

func init() {
	cbor.RegisterCborType(TokenState{})
	cbor.RegisterCborType(TokenConstructorParams{})
	cbor.RegisterCborType(TokenTransferParams{})
	cbor.RegisterCborType(TokenApproveParams{})
	cbor.RegisterCborType(TokenTransferFromParams{})
	cbor.RegisterCborType(TokenBalanceOfParams{})
}

// TokenActor is a fungible-balance ledger: mint-at-construction,
// transfer, approve and transferFrom with allowance accounting.
type TokenActor struct{}

// Balances and Allowances are keyed by the raw address bytes.
type TokenState struct {
	Name        string
	Symbol      string
	TotalSupply types.BigInt

	Balances   map[string]types.BigInt
	Allowances map[string]map[string]types.BigInt
}

type tokenMethods struct {
	Constructor  abi.MethodNum
	Transfer     abi.MethodNum
	Approve      abi.MethodNum
	TransferFrom abi.MethodNum
	BalanceOf    abi.MethodNum
	TotalSupply  abi.MethodNum
}

var TokenMethods = tokenMethods{1, 2, 3, 4, 5, 6}

func (ta TokenActor) Exports() []interface{} {
	return []interface{}{
		1: ta.Constructor,
		2: ta.Transfer,
		3: ta.Approve,
		4: ta.TransferFrom,
		5: ta.BalanceOf,
		6: ta.TotalSupply,
	}
}

type TokenConstructorParams struct {
	Name   string
	Symbol string
	Owner  address.Address
	Supply types.BigInt
}

type TokenTransferParams struct {
	To     address.Address
	Amount types.BigInt
}

type TokenApproveParams struct {
	Spender address.Address
	Amount  types.BigInt
}

type TokenTransferFromParams struct {
	Owner  address.Address
	To     address.Address
	Amount types.BigInt
}

type TokenBalanceOfParams struct {
	Who address.Address
}

func (ts *TokenState) balance(addr address.Address) types.BigInt {
	b, ok := ts.Balances[string(addr.Bytes())]
	if !ok || b.Nil() {
		return types.NewInt(0)
	}
	return b
}

func (ts *TokenState) setBalance(addr address.Address, amt types.BigInt) {
	if amt.Sign() == 0 {
		delete(ts.Balances, string(addr.Bytes()))
		return
	}
	ts.Balances[string(addr.Bytes())] = amt
}

func (ts *TokenState) allowance(owner, spender address.Address) types.BigInt {
	m, ok := ts.Allowances[string(owner.Bytes())]
	if !ok {
		return types.NewInt(0)
	}
	a, ok := m[string(spender.Bytes())]
	if !ok || a.Nil() {
		return types.NewInt(0)
	}
	return a
}

func (ts *TokenState) setAllowance(owner, spender address.Address, amt types.BigInt) {
	m, ok := ts.Allowances[string(owner.Bytes())]
	if !ok {
		m = make(map[string]types.BigInt)
		ts.Allowances[string(owner.Bytes())] = m
	}
	m[string(spender.Bytes())] = amt
}

func validAmount(amt types.BigInt) aerrors.ActorError {
	if amt.Nil() {
		return aerrors.New(ExitInvalidArgument, "amount not set")
	}
	if amt.Sign() < 0 {
		return aerrors.Newf(ExitInvalidArgument, "negative amount: %s", amt)
	}
	return nil
}

func (TokenActor) Constructor(act *types.Actor, vmctx types.VMContext, params *TokenConstructorParams) ([]byte, aerrors.ActorError) {
	if vmctx.Message().From != SystemAddress {
		return nil, aerrors.Newf(ExitUnauthorized, "constructor may only run with platform authority, not %s", vmctx.Message().From)
	}
	if err := validAmount(params.Supply); err != nil {
		return nil, err
	}

	st := TokenState{
		Name:        params.Name,
		Symbol:      params.Symbol,
		TotalSupply: params.Supply,
		Balances:    make(map[string]types.BigInt),
		Allowances:  make(map[string]map[string]types.BigInt),
	}
	st.setBalance(params.Owner, params.Supply)

	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}

	log.Infow("token constructed", "name", params.Name, "symbol", params.Symbol, "supply", params.Supply, "owner", params.Owner)
	return nil, nil
}

func (TokenActor) Transfer(act *types.Actor, vmctx types.VMContext, params *TokenTransferParams) ([]byte, aerrors.ActorError) {
	if err := validAmount(params.Amount); err != nil {
		return nil, err
	}

	var st TokenState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	from := vmctx.Message().From
	if err := st.debit(from, params.Amount); err != nil {
		return nil, err
	}
	st.setBalance(params.To, types.BigAdd(st.balance(params.To), params.Amount))

	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}

	return nil, emitEvent(vmctx,
		"$type", "Transfer",
		"from", from,
		"to", params.To,
		"amount", params.Amount,
	)
}

func (ts *TokenState) debit(from address.Address, amt types.BigInt) aerrors.ActorError {
	have := ts.balance(from)
	if have.LessThan(amt) {
		return aerrors.Newf(ExitDispatchFailure, "insufficient balance: have %s, need %s", have, amt)
	}
	ts.setBalance(from, types.BigSub(have, amt))
	return nil
}

func (TokenActor) Approve(act *types.Actor, vmctx types.VMContext, params *TokenApproveParams) ([]byte, aerrors.ActorError) {
	if err := validAmount(params.Amount); err != nil {
		return nil, err
	}

	var st TokenState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	owner := vmctx.Message().From
	st.setAllowance(owner, params.Spender, params.Amount)

	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}

	return nil, emitEvent(vmctx,
		"$type", "Approval",
		"owner", owner,
		"spender", params.Spender,
		"amount", params.Amount,
	)
}

func (TokenActor) TransferFrom(act *types.Actor, vmctx types.VMContext, params *TokenTransferFromParams) ([]byte, aerrors.ActorError) {
	if err := validAmount(params.Amount); err != nil {
		return nil, err
	}

	var st TokenState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	spender := vmctx.Message().From
	allowed := st.allowance(params.Owner, spender)
	if allowed.LessThan(params.Amount) {
		return nil, aerrors.Newf(ExitDispatchFailure, "insufficient allowance: %s allowed %s, need %s", spender, allowed, params.Amount)
	}

	if err := st.debit(params.Owner, params.Amount); err != nil {
		return nil, err
	}
	st.setAllowance(params.Owner, spender, types.BigSub(allowed, params.Amount))
	st.setBalance(params.To, types.BigAdd(st.balance(params.To), params.Amount))

	if err := commitState(vmctx, &st); err != nil {
		return nil, err
	}

	return nil, emitEvent(vmctx,
		"$type", "Transfer",
		"from", params.Owner,
		"to", params.To,
		"amount", params.Amount,
	)
}

func (TokenActor) BalanceOf(act *types.Actor, vmctx types.VMContext, params *TokenBalanceOfParams) ([]byte, aerrors.ActorError) {
	var st TokenState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	return SerializeParams(st.balance(params.Who))
}

func (TokenActor) TotalSupply(act *types.Actor, vmctx types.VMContext, params *struct{}) ([]byte, aerrors.ActorError) {
	var st TokenState
	if err := loadState(vmctx, &st); err != nil {
		return nil, err
	}

	return SerializeParams(st.TotalSupply)
}
