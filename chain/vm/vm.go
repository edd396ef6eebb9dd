package vm

import (
	"context"
	"fmt"
	"time"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/exitcode"
	cid "github.com/ipfs/go-cid"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"go.opencensus.io/trace"
	"golang.org/x/xerrors"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/state"
	"github.com/davm-project/davm/chain/types"
)

var log = logging.Logger("vm")

// Sub-sends past this depth abort; guards runaway self-recursive batches.
const maxCallDepth = 256

type VM struct {
	cstate *state.StateTree
	cst    *cbor.BasicIpldStore
	inv    *invoker

	emptyObject cid.Cid

	// events emitted during the message currently being applied
	events []types.ActorEvent
}

func NewVM(base cid.Cid, cbs blockstore.Blockstore) (*VM, error) {
	cst := cbor.NewCborStore(cbs)
	cstate, err := state.LoadStateTree(cst, base)
	if err != nil {
		return nil, err
	}

	return newVM(cstate, cst)
}

// NewVMFromStateTree wraps an unflushed state tree, as genesis setup
// needs.
func NewVMFromStateTree(cstate *state.StateTree, cst *cbor.BasicIpldStore) (*VM, error) {
	return newVM(cstate, cst)
}

func newVM(cstate *state.StateTree, cst *cbor.BasicIpldStore) (*VM, error) {
	empty, err := cst.Put(context.TODO(), map[string]string{})
	if err != nil {
		return nil, xerrors.Errorf("putting empty object: %w", err)
	}

	return &VM{
		cstate:      cstate,
		cst:         cst,
		inv:         NewInvoker(),
		emptyObject: empty,
	}, nil
}

type ApplyRet struct {
	ExitCode exitcode.ExitCode
	Return   []byte
	Events   []types.ActorEvent

	ActorErr aerrors.ActorError
	Duration time.Duration
}

func (ar *ApplyRet) Failed() bool {
	return ar.ExitCode != exitcode.Ok
}

func (vm *VM) makeRuntime(ctx context.Context, msg *types.Message, parent *Runtime) *Runtime {
	rt := &Runtime{
		ctx:    ctx,
		vm:     vm,
		state:  vm.cstate,
		msg:    msg,
		origin: msg.From,
	}

	if parent != nil {
		rt.origin = parent.origin
		rt.depth = parent.depth + 1
	}

	return rt
}

func (vm *VM) send(ctx context.Context, msg *types.Message, parent *Runtime) ([]byte, aerrors.ActorError, *Runtime) {
	st := vm.cstate

	rt := vm.makeRuntime(ctx, msg, parent)
	if rt.depth > maxCallDepth {
		return nil, aerrors.Newf(exitcode.SysErrForbidden, "call depth %d exceeds limit", rt.depth), rt
	}

	toActor, err := st.GetActor(msg.To)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			a, aerr := vm.tryCreateAccountActor(msg.To)
			if aerr != nil {
				return nil, aerrors.Wrap(aerr, "could not create account"), rt
			}
			toActor = a
		} else {
			return nil, aerrors.Escalate(err, "getting actor"), rt
		}
	}

	if msg.Value.Sign() != 0 {
		if err := vm.transfer(msg.From, msg.To, msg.Value); err != nil {
			return nil, aerrors.Wrap(err, "failed to transfer funds"), rt
		}
	}

	if msg.Method != 0 {
		ret, err := vm.inv.Invoke(toActor, rt, msg.Method, msg.Params)
		return ret, err, rt
	}

	return nil, nil, rt
}

// ApplyMessage runs a top-level message: sender and nonce checks, then
// execution under a state snapshot that is reverted wholesale on any
// actor error. Events survive only a clean run.
func (vm *VM) ApplyMessage(ctx context.Context, msg *types.Message) (*ApplyRet, error) {
	start := time.Now()
	ctx, span := trace.StartSpan(ctx, "vm.ApplyMessage")
	defer span.End()
	if span.IsRecordingEvents() {
		span.AddAttributes(
			trace.StringAttribute("to", msg.To.String()),
			trace.Int64Attribute("method", int64(msg.Method)),
			trace.StringAttribute("value", msg.Value.String()),
		)
	}

	if err := msg.Valid(); err != nil {
		return nil, err
	}

	st := vm.cstate

	fromActor, err := st.GetActor(msg.From)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			return &ApplyRet{
				ExitCode: exitcode.SysErrSenderInvalid,
				Duration: time.Since(start),
			}, nil
		}
		return nil, xerrors.Errorf("failed to look up from actor: %w", err)
	}

	if !actors.IsAccountCode(fromActor.Code) {
		return &ApplyRet{
			ExitCode: exitcode.SysErrSenderInvalid,
			Duration: time.Since(start),
		}, nil
	}

	if msg.Nonce != fromActor.Nonce {
		return &ApplyRet{
			ExitCode: exitcode.SysErrSenderStateInvalid,
			Duration: time.Since(start),
		}, nil
	}

	if fromActor.Balance.LessThan(msg.Value) {
		return &ApplyRet{
			ExitCode: exitcode.SysErrSenderStateInvalid,
			Duration: time.Since(start),
		}, nil
	}

	if err := vm.incrementNonce(msg.From); err != nil {
		return nil, err
	}

	if err := st.Snapshot(ctx); err != nil {
		return nil, xerrors.Errorf("snapshot failed: %w", err)
	}
	defer st.ClearSnapshot()

	vm.events = nil

	ret, actorErr, _ := vm.send(ctx, msg, nil)
	if aerrors.IsFatal(actorErr) {
		return nil, xerrors.Errorf("[from=%s,to=%s,n=%d,m=%d] fatal error: %w", msg.From, msg.To, msg.Nonce, msg.Method, actorErr)
	}

	events := vm.events
	if actorErr != nil {
		log.Warnw("send actor error", "from", msg.From, "to", msg.To, "nonce", msg.Nonce, "method", msg.Method, "error", fmt.Sprintf("%+v", actorErr))

		// revert all state changes since snapshot
		if err := st.Revert(); err != nil {
			return nil, xerrors.Errorf("revert state failed: %w", err)
		}
		ret = nil
		events = nil
	}
	vm.events = nil

	return &ApplyRet{
		ExitCode: aerrors.RetCode(actorErr),
		Return:   ret,
		Events:   events,
		ActorErr: actorErr,
		Duration: time.Since(start),
	}, nil
}

// ApplyImplicitMessage runs a message with platform authority: no sender
// code, nonce or balance checks. Failures revert under the same snapshot
// envelope as ApplyMessage. Used for genesis construction and queries.
func (vm *VM) ApplyImplicitMessage(ctx context.Context, msg *types.Message) (*ApplyRet, error) {
	start := time.Now()

	st := vm.cstate
	if err := st.Snapshot(ctx); err != nil {
		return nil, xerrors.Errorf("snapshot failed: %w", err)
	}
	defer st.ClearSnapshot()

	vm.events = nil
	ret, actorErr, _ := vm.send(ctx, msg, nil)
	if aerrors.IsFatal(actorErr) {
		return nil, xerrors.Errorf("fatal error applying implicit message: %w", actorErr)
	}

	events := vm.events
	if actorErr != nil {
		if err := st.Revert(); err != nil {
			return nil, xerrors.Errorf("revert state failed: %w", err)
		}
		ret = nil
		events = nil
	}
	vm.events = nil

	return &ApplyRet{
		ExitCode: aerrors.RetCode(actorErr),
		Return:   ret,
		Events:   events,
		ActorErr: actorErr,
		Duration: time.Since(start),
	}, nil
}

func (vm *VM) tryCreateAccountActor(addr address.Address) (*types.Actor, aerrors.ActorError) {
	act := &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    vm.emptyObject,
		Balance: types.NewInt(0),
	}

	if err := vm.cstate.SetActor(addr, act); err != nil {
		return nil, aerrors.Escalate(err, "creating account actor")
	}

	return act, nil
}

func (vm *VM) ActorBalance(addr address.Address) (types.BigInt, aerrors.ActorError) {
	act, err := vm.cstate.GetActor(addr)
	if err != nil {
		return types.EmptyInt, aerrors.Absorb(err, exitcode.SysErrInvalidReceiver, "failed to find actor")
	}

	return act.Balance, nil
}

func (vm *VM) Flush(ctx context.Context) (cid.Cid, error) {
	_, span := trace.StartSpan(ctx, "vm.Flush")
	defer span.End()

	root, err := vm.cstate.Flush(ctx)
	if err != nil {
		return cid.Undef, xerrors.Errorf("flushing vm: %w", err)
	}

	return root, nil
}

func (vm *VM) StateTree() types.StateTree {
	return vm.cstate
}

func (vm *VM) incrementNonce(addr address.Address) error {
	return vm.cstate.MutateActor(addr, func(a *types.Actor) error {
		a.Nonce++
		return nil
	})
}

func (vm *VM) transfer(from, to address.Address, amt types.BigInt) aerrors.ActorError {
	if from == to {
		return nil
	}

	if amt.LessThan(types.NewInt(0)) {
		return aerrors.Newf(exitcode.SysErrForbidden, "attempted to transfer negative value: %s", amt)
	}

	f, err := vm.cstate.GetActor(from)
	if err != nil {
		return aerrors.Fatalf("transfer failed when retrieving sender actor: %s", err)
	}

	t, err := vm.cstate.GetActor(to)
	if err != nil {
		return aerrors.Fatalf("transfer failed when retrieving receiver actor: %s", err)
	}

	if err := deductFunds(f, amt); err != nil {
		return aerrors.Newf(exitcode.SysErrInsufficientFunds, "transfer failed when deducting funds: %s", err)
	}
	depositFunds(t, amt)

	if err := vm.cstate.SetActor(from, f); err != nil {
		return aerrors.Fatalf("transfer failed when setting sender actor: %s", err)
	}

	if err := vm.cstate.SetActor(to, t); err != nil {
		return aerrors.Fatalf("transfer failed when setting receiver actor: %s", err)
	}

	return nil
}

func deductFunds(act *types.Actor, amt types.BigInt) error {
	if act.Balance.LessThan(amt) {
		return fmt.Errorf("not enough funds")
	}

	act.Balance = types.BigSub(act.Balance, amt)
	return nil
}

func depositFunds(act *types.Actor, amt types.BigInt) {
	act.Balance = types.BigAdd(act.Balance, amt)
}
