package types

import (
	"fmt"

	"github.com/ipfs/go-cid"
	cbor "github.com/ipfs/go-ipld-cbor"
)

var ErrActorNotFound = fmt.Errorf("actor not found")

func init() {
	cbor.RegisterCborType(Actor{})
}

// Actor is the on-tree record for an identity. Code is the CID of the
// implementation currently bound to the identity; for a plain account it
// is the account code CID, and for a delegated account it is the CID of
// the delegate implementation.
type Actor struct {
	Code    cid.Cid
	Head    cid.Cid
	Nonce   uint64
	Balance BigInt
}
