package main

import (
	"context"
	"fmt"
	"os"

	"github.com/filecoin-project/go-address"
	"github.com/filecoin-project/go-state-types/abi"
	cbor "github.com/ipfs/go-ipld-cbor"
	logging "github.com/ipfs/go-log/v2"
	"github.com/urfave/cli/v2"
	"golang.org/x/xerrors"

	"github.com/davm-project/davm/chain/actors"
	"github.com/davm-project/davm/chain/gen"
	"github.com/davm-project/davm/chain/types"
	"github.com/davm-project/davm/chain/vm"
	"github.com/davm-project/davm/chain/wallet"
	"github.com/davm-project/davm/node/config"
)

var log = logging.Logger("davm")

func main() {
	app := &cli.App{
		Name:    "davm",
		Usage:   "delegated-account execution demo",
		Version: "0.1.0",
		Commands: []*cli.Command{
			demoCmd,
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Errorf("%+v", err)
		os.Exit(1)
	}
}

var demoCmd = &cli.Command{
	Name:  "demo",
	Usage: "run the delegation/swap scenario end to end",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "config",
			Usage: "path to a TOML scenario config",
			Value: "davm.toml",
		},
		&cli.StringFlag{
			Name:  "policy",
			Usage: "delegation policy to bind (open|selfonly); overrides the config",
		},
	},
	Action: runDemo,
}

// scenario wires nonce bookkeeping around a fresh genesis.
type scenario struct {
	b      *gen.Builder
	nonces map[address.Address]uint64

	alice, bob             *wallet.Key
	tokenX, tokenY, exchng address.Address
}

func runDemo(cctx *cli.Context) error {
	ctx := context.Background()

	cfg, err := config.FromFile(cctx.String("config"))
	if err != nil {
		return err
	}
	if p := cctx.String("policy"); p != "" {
		cfg.Demo.Policy = p
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	s, err := setupScenario(ctx, cfg)
	if err != nil {
		return err
	}

	delegateCode := actors.DelegateOpenCodeCid
	if cfg.Demo.Policy == "selfonly" {
		delegateCode = actors.DelegateSelfOnlyCodeCid
	}

	proof, err := s.alice.Sign(vm.BindingPayload(s.alice.Address, delegateCode))
	if err != nil {
		return err
	}
	if err := s.b.VM.AttachDelegation(ctx, s.alice.Address, delegateCode, proof); err != nil {
		return err
	}
	tag, err := s.identifier(ctx, s.alice.Address)
	if err != nil {
		return err
	}
	fmt.Printf("bound %s to alice (%s)\n", tag, s.alice.Address)

	if err := s.printBalances(ctx, "before"); err != nil {
		return err
	}

	// bob submits a batch as alice: approve the exchange, then swap
	batch, err := s.swapBatch(cfg)
	if err != nil {
		return err
	}
	ret, err := s.send(ctx, s.bob.Address, s.alice.Address, actors.DelegateMethods.Execute, types.NewInt(0), batch)
	if err != nil {
		return err
	}

	switch {
	case !ret.Failed():
		fmt.Println("bob executed the swap batch as alice")
	case ret.ExitCode == actors.ExitUnauthorized:
		fmt.Println("bob was rejected: Unauthorized (self-only binding)")

		// alice runs the same batch herself
		ret, err = s.send(ctx, s.alice.Address, s.alice.Address, actors.DelegateMethods.Execute, types.NewInt(0), batch)
		if err != nil {
			return err
		}
		if ret.Failed() {
			return xerrors.Errorf("alice's own batch failed: %w", ret.ActorErr)
		}
		fmt.Println("alice executed the swap batch herself")
	default:
		return xerrors.Errorf("batch failed unexpectedly: %w", ret.ActorErr)
	}

	for _, ev := range ret.Events {
		if v, ok := ev.Entry("$type"); ok {
			var typ string
			if err := cbor.DecodeInto(v, &typ); err == nil {
				fmt.Printf("event %s from %s\n", typ, ev.Emitter)
			}
		}
	}

	return s.printBalances(ctx, "after")
}

func setupScenario(ctx context.Context, cfg *config.Config) (*scenario, error) {
	b, err := gen.NewBuilder(ctx)
	if err != nil {
		return nil, err
	}

	s := &scenario{
		b:      b,
		nonces: make(map[address.Address]uint64),
	}

	if s.alice, err = wallet.GenerateKey(); err != nil {
		return nil, err
	}
	if s.bob, err = wallet.GenerateKey(); err != nil {
		return nil, err
	}

	for _, k := range []*wallet.Key{s.alice, s.bob} {
		if err := b.AddAccount(ctx, k.Address, types.NewInt(10_000)); err != nil {
			return nil, err
		}
	}

	s.tokenX = mustID(100)
	s.tokenY = mustID(101)
	s.exchng = mustID(102)

	err = b.CreateActor(ctx, s.tokenX, actors.TokenCodeCid, &actors.TokenConstructorParams{
		Name: "Token X", Symbol: "TKX", Owner: s.alice.Address, Supply: types.NewInt(cfg.Demo.InitialSupply),
	})
	if err != nil {
		return nil, err
	}
	err = b.CreateActor(ctx, s.tokenY, actors.TokenCodeCid, &actors.TokenConstructorParams{
		Name: "Token Y", Symbol: "TKY", Owner: s.bob.Address, Supply: types.NewInt(cfg.Demo.InitialSupply),
	})
	if err != nil {
		return nil, err
	}
	if err := b.CreateActor(ctx, s.exchng, actors.ExchangeCodeCid, nil); err != nil {
		return nil, err
	}

	// register the pair and fund the exchange's output-token liquidity
	steps := []struct {
		from   address.Address
		to     address.Address
		method abi.MethodNum
		params interface{}
	}{
		{s.bob.Address, s.exchng, actors.ExchangeMethods.CreatePair, &actors.ExchangePairParams{TokenA: s.tokenX, TokenB: s.tokenY}},
		{s.bob.Address, s.tokenY, actors.TokenMethods.Approve, &actors.TokenApproveParams{Spender: s.exchng, Amount: types.NewInt(cfg.Demo.ExchangeLiquidity)}},
		{s.bob.Address, s.exchng, actors.ExchangeMethods.DepositLiquidity, &actors.ExchangeDepositParams{Token: s.tokenY, Amount: types.NewInt(cfg.Demo.ExchangeLiquidity)}},
	}
	for _, step := range steps {
		enc, aerr := actors.SerializeParams(step.params)
		if aerr != nil {
			return nil, aerr
		}
		ret, err := s.send(ctx, step.from, step.to, step.method, types.NewInt(0), enc)
		if err != nil {
			return nil, err
		}
		if ret.Failed() {
			return nil, xerrors.Errorf("setup step to %s method %d failed: %w", step.to, step.method, ret.ActorErr)
		}
	}

	return s, nil
}

func (s *scenario) swapBatch(cfg *config.Config) ([]byte, error) {
	amt := types.NewInt(cfg.Demo.SwapAmount)

	approve, aerr := actors.SerializeParams(&actors.TokenApproveParams{Spender: s.exchng, Amount: amt})
	if aerr != nil {
		return nil, aerr
	}
	swap, aerr := actors.SerializeParams(&actors.ExchangeSwapParams{
		TokenIn: s.tokenX, TokenOut: s.tokenY, AmountIn: amt, MinAmountOut: amt,
	})
	if aerr != nil {
		return nil, aerr
	}

	batch, aerr := actors.SerializeParams(&actors.DelegateExecuteParams{
		Calls: []types.Call{
			{To: s.tokenX, Value: types.NewInt(0), Method: actors.TokenMethods.Approve, Params: approve},
			{To: s.exchng, Value: types.NewInt(0), Method: actors.ExchangeMethods.Swap, Params: swap},
		},
	})
	if aerr != nil {
		return nil, aerr
	}
	return batch, nil
}

func (s *scenario) send(ctx context.Context, from, to address.Address, method abi.MethodNum, value types.BigInt, params []byte) (*vm.ApplyRet, error) {
	msg := &types.Message{
		From:   from,
		To:     to,
		Nonce:  s.nonces[from],
		Value:  value,
		Method: method,
		Params: params,
	}
	s.nonces[from]++

	return s.b.VM.ApplyMessage(ctx, msg)
}

func (s *scenario) identifier(ctx context.Context, who address.Address) (string, error) {
	ret, err := s.b.VM.ApplyImplicitMessage(ctx, &types.Message{
		From:   actors.SystemAddress,
		To:     who,
		Value:  types.NewInt(0),
		Method: actors.DelegateMethods.Identifier,
	})
	if err != nil {
		return "", err
	}
	if ret.Failed() {
		return "", xerrors.Errorf("identifier query failed: %w", ret.ActorErr)
	}
	var tag string
	if err := cbor.DecodeInto(ret.Return, &tag); err != nil {
		return "", err
	}
	return tag, nil
}

func (s *scenario) tokenBalance(ctx context.Context, token, who address.Address) (types.BigInt, error) {
	enc, aerr := actors.SerializeParams(&actors.TokenBalanceOfParams{Who: who})
	if aerr != nil {
		return types.EmptyInt, aerr
	}
	ret, err := s.b.VM.ApplyImplicitMessage(ctx, &types.Message{
		From:   actors.SystemAddress,
		To:     token,
		Value:  types.NewInt(0),
		Method: actors.TokenMethods.BalanceOf,
		Params: enc,
	})
	if err != nil {
		return types.EmptyInt, err
	}
	if ret.Failed() {
		return types.EmptyInt, xerrors.Errorf("balance query failed: %w", ret.ActorErr)
	}
	var out types.BigInt
	if err := cbor.DecodeInto(ret.Return, &out); err != nil {
		return types.EmptyInt, err
	}
	return out, nil
}

func (s *scenario) printBalances(ctx context.Context, label string) error {
	holders := []struct {
		name string
		addr address.Address
	}{
		{"alice", s.alice.Address},
		{"bob", s.bob.Address},
		{"exchange", s.exchng},
	}

	fmt.Printf("balances %s:\n", label)
	for _, h := range holders {
		x, err := s.tokenBalance(ctx, s.tokenX, h.addr)
		if err != nil {
			return err
		}
		y, err := s.tokenBalance(ctx, s.tokenY, h.addr)
		if err != nil {
			return err
		}
		fmt.Printf("  %-8s TKX=%s TKY=%s\n", h.name, x, y)
	}
	return nil
}

func mustID(i uint64) address.Address {
	a, err := address.NewIDAddress(i)
	if err != nil {
		panic(err)
	}
	return a
}
