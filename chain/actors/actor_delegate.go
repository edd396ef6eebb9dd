package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/types"
)

func init() {
	cbor.RegisterCborType(DelegateExecuteParams{})
}

// DelegationPolicy decides who may trigger batch execution as a
// delegated identity. It is fixed per implementation variant at
// registration time; both variants share the same executor.
type DelegationPolicy uint8

const (
	// PolicyOpen allows any caller. Deliberately insecure: anyone who
	// discovers the binding can act as the identity.
	PolicyOpen DelegationPolicy = iota

	// PolicySelfOnly allows execution only when the identity's own
	// authority initiated the call.
	PolicySelfOnly
)

// authorize is the whole gate: a pure predicate of caller and acting
// identity, evaluated once before any call dispatch.
func (p DelegationPolicy) authorize(caller, acting address.Address) bool {
	if p == PolicyOpen {
		return true
	}
	return caller == acting
}

// DelegateActor is the execution entry point bound to a delegated
// identity. Method 0 (bare send) is handled by the VM, so value sent
// with an empty batch still lands on the identity's balance.
type DelegateActor struct {
	policy DelegationPolicy
	tag    string
}

func DelegateOpenActor() DelegateActor {
	return DelegateActor{policy: PolicyOpen, tag: DelegateOpenActorName}
}

func DelegateSelfOnlyActor() DelegateActor {
	return DelegateActor{policy: PolicySelfOnly, tag: DelegateSelfOnlyActorName}
}

type delegateMethods struct {
	Constructor abi.MethodNum
	Identifier  abi.MethodNum
	Execute     abi.MethodNum
}

var DelegateMethods = delegateMethods{1, 2, 3}

func (da DelegateActor) Exports() []interface{} {
	return []interface{}{
		1: nil, // bound by attach, never constructed
		2: da.Identifier,
		3: da.Execute,
	}
}

type DelegateExecuteParams struct {
	Calls []types.Call
}

// Identifier returns the implementation's fixed tag. Pure; usable to
// distinguish the bound variant without executing anything.
func (da DelegateActor) Identifier(act *types.Actor, vmctx types.VMContext, params *struct{}) ([]byte, aerrors.ActorError) {
	return SerializeParams(da.tag)
}

// Execute runs an ordered batch of calls with the authority of the
// acting identity (the message receiver). The gate runs first; a denial
// or any failed call reverts the entire invocation, inbound value
// included.
func (da DelegateActor) Execute(act *types.Actor, vmctx types.VMContext, params *DelegateExecuteParams) ([]byte, aerrors.ActorError) {
	caller := vmctx.Message().From
	acting := vmctx.Message().To

	if !da.policy.authorize(caller, acting) {
		return nil, aerrors.Newf(ExitUnauthorized, "caller %s may not execute as %s", caller, acting)
	}

	for i, call := range params.Calls {
		if call.Value.Nil() || call.Value.Sign() < 0 {
			return nil, aerrors.Newf(ExitInvalidArgument, "call %d has invalid value", i)
		}
		if _, err := vmctx.Send(call.To, call.Method, call.Value, call.Params); err != nil {
			return nil, aerrors.Wrapf(err, "call %d to %s (method %d) failed", i, call.To, call.Method)
		}
	}

	log.Debugw("batch executed", "acting", acting, "caller", caller, "calls", len(params.Calls))
	return nil, nil
}
