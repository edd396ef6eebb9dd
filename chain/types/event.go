package types

import (
	"github.com/filecoin-project/go-address"
	cbor "github.com/ipfs/go-ipld-cbor"
)

func init() {
	cbor.RegisterCborType(EventEntry{})
	cbor.RegisterCborType(ActorEvent{})
}

type EventEntry struct {
	Key   string
	Value []byte // cbor-encoded
}

// ActorEvent is a notification emitted by an actor during a successful
// invocation. Events from reverted invocations are discarded.
type ActorEvent struct {
	Emitter address.Address
	Entries []EventEntry
}

func (e *ActorEvent) Entry(key string) ([]byte, bool) {
	for _, ent := range e.Entries {
		if ent.Key == key {
			return ent.Value, true
		}
	}
	return nil, false
}
