package vm

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/state"
	"github.com/davm-project/davm/chain/types"
)

// Runtime is the per-dispatch execution context handed to actor code.
// msg.From is the caller, msg.To the acting identity; Send issues
// internal messages from the acting identity so sub-calls run under its
// authority, whatever implementation supplied the logic.
type Runtime struct {
	ctx context.Context

	vm    *VM
	state *state.StateTree
	msg   *types.Message

	// origin is the identity that started the invocation chain
	origin address.Address
	depth  uint64
}

var _ types.VMContext = (*Runtime)(nil)

func (rt *Runtime) Message() *types.Message {
	return rt.msg
}

func (rt *Runtime) Origin() address.Address {
	return rt.origin
}

func (rt *Runtime) Ipld() cbor.IpldStore {
	return rt.vm.cst
}

func (rt *Runtime) Context() context.Context {
	return rt.ctx
}

func (rt *Runtime) StateTree() (types.StateTree, aerrors.ActorError) {
	return rt.state, nil
}

func (rt *Runtime) ActorCodeCID(addr address.Address) (cid.Cid, error) {
	act, err := rt.state.GetActor(addr)
	if err != nil {
		return cid.Undef, err
	}
	return act.Code, nil
}

func (rt *Runtime) GetBalance(addr address.Address) (types.BigInt, aerrors.ActorError) {
	act, err := rt.state.GetActor(addr)
	switch err {
	default:
		return types.EmptyInt, aerrors.Escalate(err, "failed to look up actor balance")
	case types.ErrActorNotFound:
		return types.NewInt(0), nil
	case nil:
		return act.Balance, nil
	}
}

// Send dispatches an internal message as the current acting identity.
func (rt *Runtime) Send(to address.Address, method abi.MethodNum, value types.BigInt, params []byte) ([]byte, aerrors.ActorError) {
	msg := &types.Message{
		From:   rt.msg.To,
		To:     to,
		Value:  value,
		Method: method,
		Params: params,
	}

	ret, err, _ := rt.vm.send(rt.ctx, msg, rt)
	return ret, err
}

func (rt *Runtime) EmitEvent(entries []types.EventEntry) aerrors.ActorError {
	rt.vm.events = append(rt.vm.events, types.ActorEvent{
		Emitter: rt.msg.To,
		Entries: entries,
	})
	return nil
}

func (rt *Runtime) Storage() types.Storage {
	return &storage{rt: rt, self: rt.msg.To}
}

type storage struct {
	rt   *Runtime
	self address.Address
}

func (s *storage) Put(obj interface{}) (cid.Cid, aerrors.ActorError) {
	c, err := s.rt.vm.cst.Put(s.rt.ctx, obj)
	if err != nil {
		return cid.Undef, aerrors.Absorb(err, exitcode.ErrSerialization, "storage put")
	}
	return c, nil
}

func (s *storage) Get(c cid.Cid, out interface{}) aerrors.ActorError {
	if c == cid.Undef {
		return aerrors.New(exitcode.ErrIllegalState, "actor has no state head")
	}
	if err := s.rt.vm.cst.Get(s.rt.ctx, c, out); err != nil {
		return aerrors.Absorb(err, exitcode.ErrIllegalState, "storage get")
	}
	return nil
}

func (s *storage) GetHead() cid.Cid {
	act, err := s.rt.state.GetActor(s.self)
	if err != nil {
		return cid.Undef
	}
	return act.Head
}

func (s *storage) Commit(oldh cid.Cid, newh cid.Cid) aerrors.ActorError {
	act, err := s.rt.state.GetActor(s.self)
	if err != nil {
		return aerrors.Escalate(err, "committing actor head")
	}

	if act.Head != oldh {
		return aerrors.New(exitcode.ErrIllegalState, "failed to update, inconsistent base reference")
	}

	act.Head = newh
	if err := s.rt.state.SetActor(s.self, act); err != nil {
		return aerrors.Escalate(err, "setting actor head")
	}
	return nil
}
