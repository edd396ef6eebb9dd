package vm

import (
	"context"
	"errors"

	"github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	"golang.org/x/xerrors"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/types"
	"github.com/davm-project/davm/chain/wallet"
)

// ErrInvalidProof is returned when an attach or detach proof fails the
// authenticity check.
var ErrInvalidProof = errors.New("invalid delegation proof")

// BindingPayload is the byte string an identity's key must sign to
// authorize binding code to the identity.
func BindingPayload(identity address.Address, code cid.Cid) []byte {
	payload := make([]byte, 0, len(identity.Bytes())+len(code.Bytes()))
	payload = append(payload, identity.Bytes()...)
	payload = append(payload, code.Bytes()...)
	return payload
}

// AttachDelegation binds a delegate implementation to an identity for
// the rest of the session. proof must be a signature by the identity's
// key over BindingPayload(identity, code). Rebinding replaces any prior
// binding.
func (vm *VM) AttachDelegation(ctx context.Context, identity address.Address, code cid.Cid, proof []byte) error {
	if !actors.IsDelegateCode(code) {
		return xerrors.Errorf("code %s is not a delegate implementation", code)
	}

	if err := wallet.Verify(proof, identity, BindingPayload(identity, code)); err != nil {
		return xerrors.Errorf("attach to %s: %w: %s", identity, ErrInvalidProof, err)
	}

	if _, err := vm.cstate.GetActor(identity); err != nil {
		if !xerrors.Is(err, types.ErrActorNotFound) {
			return xerrors.Errorf("looking up identity: %w", err)
		}
		if _, aerr := vm.tryCreateAccountActor(identity); aerr != nil {
			return xerrors.Errorf("creating account for %s: %w", identity, aerr)
		}
	}

	err := vm.cstate.MutateActor(identity, func(act *types.Actor) error {
		act.Code = code
		return nil
	})
	if err != nil {
		return xerrors.Errorf("binding code to %s: %w", identity, err)
	}

	log.Infow("delegation attached", "identity", identity, "code", code)
	return nil
}

// DetachDelegation clears a binding, restoring plain account code. Like
// attach, it requires proof of the identity's authority, here over the
// account code CID.
func (vm *VM) DetachDelegation(ctx context.Context, identity address.Address, proof []byte) error {
	if err := wallet.Verify(proof, identity, BindingPayload(identity, actors.AccountCodeCid)); err != nil {
		return xerrors.Errorf("detach from %s: %w: %s", identity, ErrInvalidProof, err)
	}

	err := vm.cstate.MutateActor(identity, func(act *types.Actor) error {
		act.Code = actors.AccountCodeCid
		return nil
	})
	if err != nil {
		return xerrors.Errorf("clearing binding on %s: %w", identity, err)
	}

	log.Infow("delegation detached", "identity", identity)
	return nil
}

// CodeAt returns the code representation observable at an identity: the
// bound implementation's bytes, or empty for a plain account. It always
// reflects the live binding.
func (vm *VM) CodeAt(identity address.Address) ([]byte, error) {
	act, err := vm.cstate.GetActor(identity)
	if err != nil {
		if xerrors.Is(err, types.ErrActorNotFound) {
			return []byte{}, nil
		}
		return nil, err
	}

	if act.Code == actors.AccountCodeCid {
		return []byte{}, nil
	}

	code, ok := actors.CodeBytes(act.Code)
	if !ok {
		return nil, xerrors.Errorf("actor %s has unregistered code %s", identity, act.Code)
	}
	return code, nil
}

// CodeHash returns the digest of the code at an identity. An unbound
// account hashes as empty code.
func (vm *VM) CodeHash(identity address.Address) ([32]byte, error) {
	code, err := vm.CodeAt(identity)
	if err != nil {
		return [32]byte{}, err
	}
	return actors.CodeDigest(code), nil
}

func (vm *VM) CodeSize(identity address.Address) (int, error) {
	code, err := vm.CodeAt(identity)
	if err != nil {
		return 0, err
	}
	return len(code), nil
}

// CodeCopy reads a range of the code at an identity. Reads past the end
// are truncated.
func (vm *VM) CodeCopy(identity address.Address, offset, length uint64) ([]byte, error) {
	code, err := vm.CodeAt(identity)
	if err != nil {
		return nil, err
	}

	if offset > uint64(len(code)) {
		return []byte{}, nil
	}
	// clamp without offset+length, which can wrap
	if length > uint64(len(code))-offset {
		length = uint64(len(code)) - offset
	}

	out := make([]byte, length)
	copy(out, code[offset:offset+length])
	return out, nil
}
