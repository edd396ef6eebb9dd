// Package gen builds fresh in-memory states: seeded accounts plus the
// singleton token and exchange actors, constructed through implicit
// messages the way the platform would at genesis.
package gen

import (
	"context"

	"github.com/filecoin-project/go-address"
	cid "github.com/ipfs/go-cid"
	ds "github.com/ipfs/go-datastore"
	dssync "github.com/ipfs/go-datastore/sync"
	blockstore "github.com/ipfs/go-ipfs-blockstore"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"golang.org/x/xerrors"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/actors/aerrors"
	"github.com/davm-project/davm/chain/state"
	"github.com/davm-project/davm/chain/types"
	"github.com/davm-project/davm/chain/vm"
)

var log = logging.Logger("gen")

type Builder struct {
	Blockstore blockstore.Blockstore
	Store      *cbor.BasicIpldStore
	StateTree  *state.StateTree
	VM         *vm.VM

	emptyObject cid.Cid
}

func NewBuilder(ctx context.Context) (*Builder, error) {
	bs := blockstore.NewBlockstore(dssync.MutexWrap(ds.NewMapDatastore()))
	cst := cbor.NewCborStore(bs)

	st, err := state.NewStateTree(cst)
	if err != nil {
		return nil, xerrors.Errorf("creating state tree: %w", err)
	}

	empty, err := cst.Put(ctx, map[string]string{})
	if err != nil {
		return nil, xerrors.Errorf("putting empty object: %w", err)
	}

	b := &Builder{
		Blockstore:  bs,
		Store:       cst,
		StateTree:   st,
		emptyObject: empty,
	}

	if err := b.AddAccount(ctx, actors.SystemAddress, types.NewInt(0)); err != nil {
		return nil, err
	}

	b.VM, err = vm.NewVMFromStateTree(st, cst)
	if err != nil {
		return nil, xerrors.Errorf("creating vm: %w", err)
	}

	return b, nil
}

func (b *Builder) AddAccount(ctx context.Context, addr address.Address, balance types.BigInt) error {
	return b.StateTree.SetActor(addr, &types.Actor{
		Code:    actors.AccountCodeCid,
		Head:    b.emptyObject,
		Balance: balance,
	})
}

// CreateActor installs an actor with the given code and runs its
// constructor (method 1) with platform authority.
func (b *Builder) CreateActor(ctx context.Context, addr address.Address, code cid.Cid, ctorParams interface{}) error {
	err := b.StateTree.SetActor(addr, &types.Actor{
		Code:    code,
		Head:    b.emptyObject,
		Balance: types.NewInt(0),
	})
	if err != nil {
		return xerrors.Errorf("setting actor %s: %w", addr, err)
	}

	var enc []byte
	if ctorParams != nil {
		var aerr aerrors.ActorError
		enc, aerr = actors.SerializeParams(ctorParams)
		if aerr != nil {
			return xerrors.Errorf("encoding constructor params: %w", aerr)
		}
	}

	ret, err := b.VM.ApplyImplicitMessage(ctx, &types.Message{
		From:   actors.SystemAddress,
		To:     addr,
		Value:  types.NewInt(0),
		Method: 1,
		Params: enc,
	})
	if err != nil {
		return xerrors.Errorf("applying constructor message: %w", err)
	}
	if ret.Failed() {
		return xerrors.Errorf("constructor for %s failed: %w", addr, ret.ActorErr)
	}

	log.Debugw("actor created", "addr", addr, "code", code)
	return nil
}

// Flush persists the built state and returns its root.
func (b *Builder) Flush(ctx context.Context) (cid.Cid, error) {
	return b.StateTree.Flush(ctx)
}
