package types

import (
	"context"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cid "github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"

	"github.com/davm-project/davm/chain/actors/aerrors"
)

type Storage interface {
	Put(interface{}) (cid.Cid, aerrors.ActorError)
	Get(cid.Cid, interface{}) aerrors.ActorError

	GetHead() cid.Cid

	// Commit sets the new head of the actor's state as long as the current
	// state matches 'oldh'.
	Commit(oldh cid.Cid, newh cid.Cid) aerrors.ActorError
}

type StateTree interface {
	SetActor(addr address.Address, act *Actor) error
	GetActor(addr address.Address) (*Actor, error)
}

// VMContext is the execution context handed to actor code. Message()
// carries the explicit caller (From) and acting identity (To) of the
// current dispatch; Send issues an internal message whose authority is
// the current acting identity, not the implementation providing the
// logic.
type VMContext interface {
	Message() *Message
	Origin() address.Address
	Ipld() cbor.IpldStore
	Send(to address.Address, method abi.MethodNum, value BigInt, params []byte) ([]byte, aerrors.ActorError)
	Storage() Storage
	StateTree() (StateTree, aerrors.ActorError)
	ActorCodeCID(address.Address) (cid.Cid, error)
	GetBalance(address.Address) (BigInt, aerrors.ActorError)
	EmitEvent(entries []EventEntry) aerrors.ActorError

	Context() context.Context
}
