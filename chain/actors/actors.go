// Package actors holds the natively implemented actors: plain accounts,
// the token ledger, the fixed-rate exchange, and the two delegated
// execution entry points. Actor methods share one calling convention:
//
//	func(act *types.Actor, vmctx types.VMContext, params *T) ([]byte, aerrors.ActorError)
//
// and are exposed through Exports() tables dispatched by code CID.
package actors

import (
	"github.com/filecoin-project/go-state-types/exitcode"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/types"
)

// SerializeParams encodes method parameters with the same cbor codec the
// state tree uses. Param types must be registered with RegisterCborType.
func SerializeParams(i interface{}) ([]byte, aerrors.ActorError) {
	dump, err := cbor.DumpObject(i)
	if err != nil {
		return nil, aerrors.Absorb(err, exitcode.ErrSerialization, "failed to encode parameters")
	}
	return dump, nil
}

func DecodeParams(b []byte, out interface{}) error {
	return cbor.DecodeInto(b, out)
}

// loadState reads the acting actor's head state.
func loadState(vmctx types.VMContext, out interface{}) aerrors.ActorError {
	return vmctx.Storage().Get(vmctx.Storage().GetHead(), out)
}

// commitState writes the new state and advances the actor's head,
// failing if the head moved underneath us.
func commitState(vmctx types.VMContext, st interface{}) aerrors.ActorError {
	oldh := vmctx.Storage().GetHead()
	newh, err := vmctx.Storage().Put(st)
	if err != nil {
		return err
	}
	return vmctx.Storage().Commit(oldh, newh)
}

func eventEntry(key string, value interface{}) (types.EventEntry, aerrors.ActorError) {
	b, err := cbor.DumpObject(value)
	if err != nil {
		return types.EventEntry{}, aerrors.Absorb(err, exitcode.ErrSerialization, "failed to encode event entry")
	}
	return types.EventEntry{Key: key, Value: b}, nil
}

func emitEvent(vmctx types.VMContext, kvs ...interface{}) aerrors.ActorError {
	if len(kvs)%2 != 0 {
		return aerrors.Fatal("emitEvent requires key/value pairs")
	}
	entries := make([]types.EventEntry, 0, len(kvs)/2)
	for i := 0; i < len(kvs); i += 2 {
		key, ok := kvs[i].(string)
		if !ok {
			return aerrors.Fatal("emitEvent keys must be strings")
		}
		ent, err := eventEntry(key, kvs[i+1])
		if err != nil {
			return err
		}
		entries = append(entries, ent)
	}
	return vmctx.EmitEvent(entries)
}
