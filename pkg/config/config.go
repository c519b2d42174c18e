package config

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/smartcontractkit/chainlink-common/pkg/config"
)

// DefaultSeedEnv is the environment variable holding the wallet mnemonic.
const DefaultSeedEnv = "SIGNER_WALLET_SEED_PHRASE"

var DefaultConfigSet = Chain{
	Workchain:      ptr(int32(0)),
	RequestTimeout: ptr(2 * time.Minute),
	MessageValue:   ptr("0.05"),
}

var DefaultWallet = Wallet{
	SeedEnv: ptr(DefaultSeedEnv),
	Version: ptr("V3R2"),
}

func ptr[T any](v T) *T {
	return &v
}

type Chain struct {
	Workchain      *int32
	RequestTimeout *time.Duration
	// TON attached to every contract message
	MessageValue *string
}

func (c *Chain) SetFrom(f *Chain) {
	if f.Workchain != nil {
		c.Workchain = f.Workchain
	}
	if f.RequestTimeout != nil {
		c.RequestTimeout = f.RequestTimeout
	}
	if f.MessageValue != nil {
		c.MessageValue = f.MessageValue
	}
}

func (c *Chain) ValidateConfig() (err error) {
	if c.Workchain != nil && *c.Workchain != 0 && *c.Workchain != -1 {
		err = errors.Join(err, config.ErrInvalid{Name: "Workchain", Value: *c.Workchain, Msg: "must be 0 or -1"})
	}
	if c.RequestTimeout != nil && *c.RequestTimeout <= 0 {
		err = errors.Join(err, config.ErrInvalid{Name: "RequestTimeout", Value: *c.RequestTimeout, Msg: "must be positive"})
	}
	if c.MessageValue != nil {
		if *c.MessageValue == "" {
			err = errors.Join(err, config.ErrEmpty{Name: "MessageValue", Msg: "required to pay for gas"})
		}
	}
	return err
}

type Node struct {
	Name *string
	URL  *config.URL
}

func (n *Node) ValidateConfig() (err error) {
	if n.Name == nil {
		err = errors.Join(err, config.ErrMissing{Name: "Name", Msg: "required for all nodes"})
	} else if *n.Name == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "Name", Msg: "required for all nodes"})
	}
	if n.URL == nil {
		err = errors.Join(err, config.ErrMissing{Name: "URL", Msg: "required for all nodes"})
	} else if n.URL.String() == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "URL", Msg: "required for all nodes"})
	}
	return err
}

type Nodes []*Node

func (ns *Nodes) SetFrom(fs *Nodes) {
	for _, f := range *fs {
		if f.Name == nil {
			*ns = append(*ns, f)
		} else if i := slices.IndexFunc(*ns, func(n *Node) bool {
			return n.Name != nil && *n.Name == *f.Name
		}); i == -1 {
			*ns = append(*ns, f)
		} else {
			setFromNode((*ns)[i], f)
		}
	}
}

func setFromNode(n, f *Node) {
	if f.Name != nil {
		n.Name = f.Name
	}
	if f.URL != nil {
		n.URL = f.URL
	}
}

// Wallet selects the signing wallet. The mnemonic itself never lives in the
// config file, only the name of the variable holding it.
type Wallet struct {
	SeedEnv *string
	Version *string
}

var walletVersions = map[string]wallet.Version{
	"V3R2": wallet.V3R2,
	"V4R2": wallet.V4R2,
}

// WalletVersion returns the configured wallet version.
func (w *Wallet) WalletVersion() (wallet.Version, error) {
	name := DefaultWallet.Version
	if w.Version != nil {
		name = w.Version
	}
	v, ok := walletVersions[strings.ToUpper(*name)]
	if !ok {
		return 0, config.ErrInvalid{Name: "Wallet.Version", Value: *name, Msg: "supported versions are V3R2 and V4R2"}
	}
	return v, nil
}

// Seed returns the mnemonic words from the configured environment variable.
func (w *Wallet) Seed() ([]string, error) {
	env := DefaultSeedEnv
	if w.SeedEnv != nil {
		env = *w.SeedEnv
	}
	words := strings.Fields(os.Getenv(env))
	if len(words) == 0 {
		return nil, config.ErrEmpty{Name: env, Msg: "wallet seed phrase must be set in the environment"}
	}
	return words, nil
}

func (w *Wallet) ValidateConfig() (err error) {
	if w.SeedEnv != nil && *w.SeedEnv == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "Wallet.SeedEnv", Msg: "name of the seed phrase variable"})
	}
	if _, verr := w.WalletVersion(); verr != nil {
		err = errors.Join(err, verr)
	}
	return err
}

// Contract describes the main contract instance to deploy or interact with.
type Contract struct {
	Artifact *string
	Number   *uint32
	// Owner defaults to the signing wallet
	Owner *string
	// Address of an already deployed instance, overrides the computed one
	Address *string
}

type TOMLConfig struct {
	ChainID *string
	Chain
	Nodes    Nodes
	Wallet   Wallet
	Contract Contract
}

func (c *TOMLConfig) SetDefaults() {
	chain := DefaultConfigSet
	chain.SetFrom(&c.Chain)
	c.Chain = chain
	if c.Wallet.SeedEnv == nil {
		c.Wallet.SeedEnv = DefaultWallet.SeedEnv
	}
	if c.Wallet.Version == nil {
		c.Wallet.Version = DefaultWallet.Version
	}
	if c.Contract.Number == nil {
		c.Contract.Number = ptr(uint32(0))
	}
}

func (c *TOMLConfig) ValidateConfig() (err error) {
	if c.ChainID == nil {
		err = errors.Join(err, config.ErrMissing{Name: "ChainID", Msg: "required for chain"})
	} else if *c.ChainID == "" {
		err = errors.Join(err, config.ErrEmpty{Name: "ChainID", Msg: "required for chain"})
	}
	if len(c.Nodes) == 0 {
		err = errors.Join(err, config.ErrMissing{Name: "Nodes", Msg: "must have at least one node"})
	}
	for _, n := range c.Nodes {
		err = errors.Join(err, n.ValidateConfig())
	}
	err = errors.Join(err, c.Chain.ValidateConfig(), c.Wallet.ValidateConfig())
	return err
}

// Load decodes a TOML file, applies the defaults and validates the result.
func Load(path string) (*TOMLConfig, error) {
	var c TOMLConfig
	if _, err := toml.DecodeFile(path, &c); err != nil {
		return nil, fmt.Errorf("failed to decode config %s: %w", path, err)
	}
	c.SetDefaults()
	if err := c.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &c, nil
}

// LoadEnv loads variables from an env file. A missing file is not an error,
// the variables can come from the environment itself.
func LoadEnv(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}
