// Package wallet holds secp256k1 keys for identities. Signatures are
// made over the blake2b-256 of the payload; verification recovers the
// public key and compares the derived address.
package wallet

import (
	"github.com/filecoin-project/go-address"
	crypto "github.com/filecoin-project/go-crypto"
	"github.com/minio/blake2b-simd"
	"golang.org/x/xerrors"
)

type Key struct {
	PrivateKey []byte
	PublicKey  []byte
	Address    address.Address
}

func GenerateKey() (*Key, error) {
	pk, err := crypto.GenerateKey()
	if err != nil {
		return nil, xerrors.Errorf("generating secp256k1 key: %w", err)
	}
	return NewKey(pk)
}

func NewKey(pk []byte) (*Key, error) {
	pub := crypto.PublicKey(pk)
	addr, err := address.NewSecp256k1Address(pub)
	if err != nil {
		return nil, xerrors.Errorf("deriving address from public key: %w", err)
	}
	return &Key{
		PrivateKey: pk,
		PublicKey:  pub,
		Address:    addr,
	}, nil
}

// Sign signs blake2b-256(msg) with the key.
func (k *Key) Sign(msg []byte) ([]byte, error) {
	b2sum := blake2b.Sum256(msg)
	sig, err := crypto.Sign(k.PrivateKey, b2sum[:])
	if err != nil {
		return nil, xerrors.Errorf("signing: %w", err)
	}
	return sig, nil
}

// Verify checks that sig over msg was produced by the key behind addr.
func Verify(sig []byte, addr address.Address, msg []byte) error {
	b2sum := blake2b.Sum256(msg)
	pub, err := crypto.EcRecover(b2sum[:], sig)
	if err != nil {
		return xerrors.Errorf("recovering public key: %w", err)
	}

	maybe, err := address.NewSecp256k1Address(pub)
	if err != nil {
		return xerrors.Errorf("deriving address from recovered key: %w", err)
	}

	if addr != maybe {
		return xerrors.New("signature did not match")
	}

	return nil
}
