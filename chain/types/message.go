package types

import (
	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cbor "github.com/ipfs/go-ipld-cbor"
	"golang.org/x/xerrors"
)

func init() {
	cbor.RegisterCborType(Message{})
	cbor.RegisterCborType(Call{})
}

// Message is a top-level invocation: From's authority is spent on the
// value transfer, and Method is dispatched against To's bound code.
type Message struct {
	To   address.Address
	From address.Address

	Nonce uint64

	Value BigInt

	Method abi.MethodNum
	Params []byte
}

func (m *Message) Valid() error {
	if m.To == address.Undef {
		return xerrors.New("message has no 'to' address")
	}
	if m.From == address.Undef {
		return xerrors.New("message has no 'from' address")
	}
	if m.Value.Nil() {
		return xerrors.New("message has no value set")
	}
	if m.Value.Sign() < 0 {
		return xerrors.New("message value is negative")
	}
	return nil
}

// Call is one sub-operation of a batch executed under a delegated
// identity. Immutable once constructed; batches preserve submission
// order.
type Call struct {
	To     address.Address
	Value  BigInt
	Method abi.MethodNum
	Params []byte
}
