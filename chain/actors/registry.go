package actors

import (
	"github.com/filecoin-project/go-address"
	"github.com/ipfs/go-cid"
	logging "github.com/ipfs/go-log/v2"
	"github.com/minio/blake2b-simd"
	mh "github.com/multiformats/go-multihash"
)

var log = logging.Logger("actors")

// Each implementation has a stable code representation: the bytes an
// introspection query must observe for an identity bound to it. The code
// CID is a raw CID over the blake2b-256 of those bytes, so the CID's
// multihash digest doubles as the code digest.
const (
	AccountActorName          = "davm/1/account"
	TokenActorName            = "davm/1/token"
	ExchangeActorName         = "davm/1/exchange"
	DelegateOpenActorName     = "davm/1/delegate-open"
	DelegateSelfOnlyActorName = "davm/1/delegate-selfonly"
)

var (
	AccountCodeCid          = mustMakeCodeCid(AccountActorName)
	TokenCodeCid            = mustMakeCodeCid(TokenActorName)
	ExchangeCodeCid         = mustMakeCodeCid(ExchangeActorName)
	DelegateOpenCodeCid     = mustMakeCodeCid(DelegateOpenActorName)
	DelegateSelfOnlyCodeCid = mustMakeCodeCid(DelegateSelfOnlyActorName)
)

var codeNames = map[cid.Cid]string{
	AccountCodeCid:          AccountActorName,
	TokenCodeCid:            TokenActorName,
	ExchangeCodeCid:         ExchangeActorName,
	DelegateOpenCodeCid:     DelegateOpenActorName,
	DelegateSelfOnlyCodeCid: DelegateSelfOnlyActorName,
}

// delegate codes may be bound to an identity via attach, and identities
// carrying them may still originate messages under their own authority
var delegateCodes = map[cid.Cid]bool{
	DelegateOpenCodeCid:     true,
	DelegateSelfOnlyCodeCid: true,
}

func mustMakeCodeCid(name string) cid.Cid {
	sum, err := mh.Sum([]byte(name), mh.BLAKE2B_MIN+31, -1)
	if err != nil {
		panic(err)
	}
	return cid.NewCidV1(cid.Raw, sum)
}

// CodeBytes returns the code representation for a registered code CID.
func CodeBytes(code cid.Cid) ([]byte, bool) {
	name, ok := codeNames[code]
	if !ok {
		return nil, false
	}
	return []byte(name), true
}

// CodeDigest is the deterministic digest of a code representation.
func CodeDigest(code []byte) [32]byte {
	return blake2b.Sum256(code)
}

func CodeName(code cid.Cid) (string, bool) {
	name, ok := codeNames[code]
	return name, ok
}

func IsDelegateCode(code cid.Cid) bool {
	return delegateCodes[code]
}

// IsAccountCode reports whether an actor with this code can originate
// messages. Delegated accounts keep their own signing authority, so
// delegate codes qualify alongside the plain account code.
func IsAccountCode(code cid.Cid) bool {
	return code == AccountCodeCid || delegateCodes[code]
}

func mustIDAddress(i uint64) address.Address {
	a, err := address.NewIDAddress(i)
	if err != nil {
		panic(err)
	}
	return a
}

var (
	SystemAddress = mustIDAddress(0)
)
