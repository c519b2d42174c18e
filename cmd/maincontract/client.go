package main

import (
	"context"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/ton-main-contract/pkg/bindings/maincontract"
	"github.com/smartcontractkit/ton-main-contract/pkg/config"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

// session holds everything a command needs to talk to the network.
type session struct {
	lggr     logger.Logger
	cfg      *config.TOMLConfig
	client   ton.APIClientWrapped
	sender   *wrappers.WalletSender
	contract *maincontract.MainContract
	value    tlb.Coins
}

func connect(ctx context.Context, lggr logger.Logger, cfg *config.TOMLConfig) (ton.APIClientWrapped, error) {
	pool := liteclient.NewConnectionPool()
	var lastErr error
	for _, node := range cfg.Nodes {
		netCfg, err := liteclient.GetConfigFromUrl(ctx, node.URL.String())
		if err != nil {
			lggr.Warnw("Failed to get network config", "node", *node.Name, "err", err)
			lastErr = err
			continue
		}
		if err = pool.AddConnectionsFromConfig(ctx, netCfg); err != nil {
			lggr.Warnw("Failed to connect to node", "node", *node.Name, "err", err)
			lastErr = err
			continue
		}
		lggr.Debugw("Connected", "node", *node.Name)
		client := ton.NewAPIClient(pool, ton.ProofCheckPolicyFast)
		client.SetTrustedBlockFromConfig(netCfg)
		return client.WithRetry().WithTimeout(*cfg.RequestTimeout), nil
	}
	return nil, fmt.Errorf("failed to connect to any node: %w", lastErr)
}

func newWallet(client ton.APIClientWrapped, cfg *config.TOMLConfig) (*wallet.Wallet, error) {
	seed, err := cfg.Wallet.Seed()
	if err != nil {
		return nil, err
	}
	version, err := cfg.Wallet.WalletVersion()
	if err != nil {
		return nil, err
	}
	raw, err := wallet.FromSeed(client, seed, version)
	if err != nil {
		return nil, fmt.Errorf("failed to derive wallet: %w", err)
	}
	return wallet.FromPrivateKeyWithOptions(client, raw.PrivateKey(), version, wallet.WithWorkchain(int8(*cfg.Workchain)))
}

// resolveContract references the configured address when there is one and
// computes the address from the artifact and the initial data otherwise.
func resolveContract(cfg *config.TOMLConfig, artifact string, signer *address.Address) (*maincontract.MainContract, error) {
	if cfg.Contract.Address != nil {
		addr, err := address.ParseAddr(*cfg.Contract.Address)
		if err != nil {
			return nil, fmt.Errorf("invalid contract address: %w", err)
		}
		return maincontract.NewFromAddress(addr), nil
	}
	owner := signer
	if cfg.Contract.Owner != nil {
		var err error
		if owner, err = address.ParseAddr(*cfg.Contract.Owner); err != nil {
			return nil, fmt.Errorf("invalid owner address: %w", err)
		}
	}
	if cfg.Contract.Artifact != nil && artifact == "" {
		artifact = *cfg.Contract.Artifact
	}
	if artifact == "" {
		artifact = maincontract.DefaultContractPath
	}
	return maincontract.CreateFromArtifact(maincontract.Config{
		Number:       *cfg.Contract.Number,
		Address:      signer,
		OwnerAddress: owner,
	}, artifact, *cfg.Workchain)
}

func newSession(ctx context.Context, opts *rootOptions) (*session, error) {
	lggr, err := logger.New()
	if err != nil {
		return nil, err
	}
	lggr = logger.Named(lggr, "MainContract")

	if err = config.LoadEnv(opts.envFile); err != nil {
		return nil, err
	}
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	value, err := tlb.FromTON(*cfg.MessageValue)
	if err != nil {
		return nil, fmt.Errorf("invalid message value: %w", err)
	}

	client, err := connect(ctx, lggr, cfg)
	if err != nil {
		return nil, err
	}
	w, err := newWallet(client, cfg)
	if err != nil {
		return nil, err
	}
	signed := tracetracking.NewSignedAPIClient(client, *w)
	sender := wrappers.NewWalletSender(&signed)

	c, err := resolveContract(cfg, opts.artifact, sender.Address())
	if err != nil {
		return nil, err
	}
	lggr.Infow("Session ready", "chainID", *cfg.ChainID, "wallet", sender.Address().String(), "contract", c.Address.String())

	return &session{
		lggr:     lggr,
		cfg:      cfg,
		client:   client,
		sender:   sender,
		contract: c.Open(wrappers.NewNetworkOpener(client)),
		value:    value,
	}, nil
}

// report logs the outcome of a trace and turns a failed one into an error.
func (s *session) report(action string, msg *tracetracking.ReceivedMessage) error {
	s.lggr.Debugf("%s trace:\n%s", action, msg.Dump())
	tx := msg.FindTransaction(tracetracking.TransactionFilter{To: s.contract.Address})
	if tx == nil {
		return fmt.Errorf("%s: no transaction reached %s", action, s.contract.Address.String())
	}
	if !tx.Success {
		return fmt.Errorf("%s: contract failed with exit code %s", action, tx.ExitCode.Describe())
	}
	s.lggr.Infow(action+" succeeded", "contract", s.contract.Address.String(), "fees", tlb.FromNanoTON(msg.TotalTransactionExecutionFee()).String())
	return nil
}
