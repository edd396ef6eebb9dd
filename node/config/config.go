package config

import (
	"os"

	"github.com/BurntSushi/toml"
	"golang.org/x/xerrors"
)

// Config drives the demo scenario in cmd/davm.
type Config struct {
	Demo Demo
}

type Demo struct {
	// Policy selects the delegate implementation bound to the victim
	// account: "open" or "selfonly".
	Policy string

	// InitialSupply is minted for each of the two test tokens.
	InitialSupply uint64

	// ExchangeLiquidity is deposited into the exchange for the output
	// token before any swap.
	ExchangeLiquidity uint64

	// SwapAmount is approved and swapped by the batch.
	SwapAmount uint64
}

func DefaultConfig() *Config {
	return &Config{
		Demo: Demo{
			Policy:            "open",
			InitialSupply:     1000,
			ExchangeLiquidity: 1000,
			SwapAmount:        100,
		},
	}
}

// FromFile loads a config, laying file values over the defaults. A
// missing file yields the defaults.
func FromFile(path string) (*Config, error) {
	cfg := DefaultConfig()

	f, err := os.Open(path)
	switch {
	case os.IsNotExist(err):
		return cfg, nil
	case err != nil:
		return nil, xerrors.Errorf("opening config file: %w", err)
	}
	defer f.Close() //nolint:errcheck

	if _, err := toml.NewDecoder(f).Decode(cfg); err != nil {
		return nil, xerrors.Errorf("decoding config file: %w", err)
	}

	return cfg, nil
}

func (c *Config) Validate() error {
	if c.Demo.Policy != "open" && c.Demo.Policy != "selfonly" {
		return xerrors.Errorf("unknown policy %q", c.Demo.Policy)
	}
	if c.Demo.SwapAmount > c.Demo.InitialSupply {
		return xerrors.New("swap amount exceeds initial supply")
	}
	return nil
}
