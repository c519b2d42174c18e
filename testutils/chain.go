package testutils

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/hashicorp/consul/sdk/freeport"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/liteclient"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	cldf_ton "github.com/smartcontractkit/chainlink-deployments-framework/chain/ton"
	"github.com/smartcontractkit/chainlink-testing-framework/framework"
	"github.com/smartcontractkit/chainlink-testing-framework/framework/components/blockchain"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

var once = &sync.Once{}

// Account is a funded wallet on a local network.
type Account struct {
	Client tracetracking.SignedAPIClient
	Sender *wrappers.WalletSender
}

func CreateTonWallet(t *testing.T, client ton.APIClientWrapped, version wallet.VersionConfig, option wallet.Option) *wallet.Wallet {
	t.Helper()
	rw, err := wallet.FromSeed(client, wallet.NewSeed(), version)
	require.NoError(t, err, "failed to generate random wallet")
	pw, err := wallet.FromPrivateKeyWithOptions(client, rw.PrivateKey(), version, option)
	require.NoError(t, err, "failed to generate random wallet")
	return pw
}

// SetUpAccounts creates count V3R2 wallets on the basechain, each funded with
// initialAmount nanotons.
func SetUpAccounts(t *testing.T, client ton.APIClientWrapped, initialAmount *big.Int, count int) []Account {
	t.Helper()
	accounts := make([]Account, count)
	recipients := make([]*address.Address, count)
	amounts := make([]tlb.Coins, count)
	for i := range count {
		w := CreateTonWallet(t, client, wallet.V3R2, wallet.WithWorkchain(0))
		recipients[i] = w.WalletAddress()
		amounts[i] = tlb.FromNanoTON(initialAmount)
		accounts[i].Client = tracetracking.NewSignedAPIClient(client, *w)
		accounts[i].Sender = wrappers.NewWalletSender(&accounts[i].Client)
	}
	FundTonWallets(t, client, recipients, amounts)
	return accounts
}

// FundTonWallets airdrops from the highload wallet preloaded in mylocalton
// and waits until every recipient holds its amount.
func FundTonWallets(t *testing.T, client ton.APIClientWrapped, recipients []*address.Address, amounts []tlb.Coins) {
	t.Helper()
	require.Len(t, amounts, len(recipients), "one amount per recipient")

	version := wallet.HighloadV2Verified //nolint:staticcheck // only option in mylocalton-docker
	rawHlWallet, err := wallet.FromSeed(client, strings.Fields(blockchain.DefaultTonHlWalletMnemonic), version)
	require.NoError(t, err, "failed to create highload wallet")
	mcFunderWallet, err := wallet.FromPrivateKeyWithOptions(client, rawHlWallet.PrivateKey(), version, wallet.WithWorkchain(-1))
	require.NoError(t, err, "failed to create highload wallet")
	funder, err := mcFunderWallet.GetSubwallet(uint32(42))
	require.NoError(t, err, "failed to get highload subwallet")
	require.Equal(t, blockchain.DefaultTonHlWalletAddress, funder.Address().StringRaw(), "funder address mismatch")

	messages := make([]*wallet.Message, len(recipients))
	for i, addr := range recipients {
		messages[i], err = funder.BuildTransfer(addr, amounts[i], false, "")
		require.NoError(t, err, "failed to build transfer for %s", addr.String())
	}
	_, _, err = funder.SendManyWaitTransaction(t.Context(), messages)
	require.NoError(t, err, "airdrop transaction failed")

	require.NoError(t, waitForBalances(t.Context(), client, recipients, amounts, time.Minute))
	t.Logf("%d wallets funded", len(recipients))
}

func waitForBalances(ctx context.Context, client ton.APIClientWrapped, recipients []*address.Address, amounts []tlb.Coins, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	pending := make(map[int]struct{}, len(recipients))
	for i := range recipients {
		pending[i] = struct{}{}
	}
	for len(pending) > 0 {
		select {
		case <-ctx.Done():
			return fmt.Errorf("timeout: %d/%d wallets funded", len(recipients)-len(pending), len(recipients))
		case <-ticker.C:
		}
		block, err := client.CurrentMasterchainInfo(ctx)
		if err != nil {
			continue
		}
		for i := range pending {
			acc, err := client.WaitForBlock(block.SeqNo).GetAccount(ctx, block, recipients[i])
			if err != nil || acc.State == nil {
				continue
			}
			if acc.State.Balance.Nano().Cmp(amounts[i].Nano()) >= 0 {
				delete(pending, i)
			}
		}
	}
	return nil
}

// NewChain funds the deployer and describes the network as a deployment
// framework chain.
func NewChain(t *testing.T, client *ton.APIClient, selector uint64, deployer *wallet.Wallet) cldf_ton.Chain {
	t.Helper()
	FundTonWallets(t, client, []*address.Address{deployer.WalletAddress()}, []tlb.Coins{tlb.MustFromTON("1000")})
	return cldf_ton.Chain{
		ChainMetadata: cldf_ton.ChainMetadata{Selector: selector},
		Client:        client,
		Wallet:        deployer,
		WalletAddress: deployer.WalletAddress(),
	}
}

// CreateAPIClient starts a mylocalton container, or connects to the one on
// localhost:8000 when USE_EXISTING_TON_NODE=true.
func CreateAPIClient(t *testing.T, chainID string) *ton.APIClient {
	t.Helper()

	networkCfg := "http://localhost:8000/localhost.global.config.json"
	if os.Getenv("USE_EXISTING_TON_NODE") != "true" {
		networkCfg = createNewNetwork(t, chainID)
	}

	cfg, err := liteclient.GetConfigFromUrl(t.Context(), networkCfg)
	require.NoError(t, err, "failed to get config from URL: %s", networkCfg)

	connectionPool := liteclient.NewConnectionPool()
	require.NoError(t, connectionPool.AddConnectionsFromConfig(t.Context(), cfg))

	client := ton.NewAPIClient(connectionPool, ton.ProofCheckPolicyFast)
	client.SetTrustedBlockFromConfig(cfg)

	const readinessRetries = 30
	var lastErr error
	for i := range readinessRetries {
		if _, lastErr = client.GetMasterchainInfo(t.Context()); lastErr == nil {
			break
		}
		t.Logf("API server not ready yet (attempt %d/%d): %v", i+1, readinessRetries, lastErr)
		time.Sleep(time.Second)
	}
	require.NoError(t, lastErr, "TON network not ready after %d attempts", readinessRetries)
	return client
}

func createNewNetwork(t *testing.T, chainID string) string {
	t.Helper()
	require.NoError(t, framework.DefaultNetwork(once))

	port := freeport.GetOne(t)
	bcOut, err := blockchain.NewBlockchainNetwork(&blockchain.Input{
		ChainID: chainID,
		Type:    "ton",
		Port:    strconv.Itoa(port),
		CustomEnv: map[string]string{
			"NEXT_BLOCK_GENERATION_DELAY": "0.5",
		},
	})
	require.NoError(t, err, "failed to create blockchain network")

	t.Cleanup(func() {
		if bcOut.Container != nil && bcOut.Container.IsRunning() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := bcOut.Container.Terminate(ctx); err != nil {
				t.Logf("Container termination failed: %v", err)
			}
		}
		freeport.Return([]int{port})
	})
	return fmt.Sprintf("http://%s/localhost.global.config.json", bcOut.Nodes[0].ExternalHTTPUrl)
}

// GetBalance returns the balance of the account in nanotons.
func GetBalance(ctx context.Context, client ton.APIClientWrapped, addr *address.Address) (*big.Int, error) {
	master, err := client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get masterchain info: %w", err)
	}
	acc, err := client.WaitForBlock(master.SeqNo).GetAccount(ctx, master, addr)
	if err != nil {
		return nil, fmt.Errorf("get account err: %w", err)
	}
	if acc.State == nil {
		return big.NewInt(0), nil
	}
	return acc.State.Balance.Nano(), nil
}

// VerifyTransactions checks that an account moved from initialBalance to
// finalBalance through txs, all received by that account: each adds its net
// credit and pays its fees.
func VerifyTransactions(t *testing.T, initialBalance, finalBalance *big.Int, txs ...*tracetracking.ReceivedMessage) {
	t.Helper()
	expected := new(big.Int).Set(initialBalance)
	for _, m := range txs {
		expected.Add(expected, m.NetCreditResult())
		expected.Sub(expected, tracetracking.Sum(m.StorageFeeCharged, m.TotalTransactionExecutionFee()))
	}
	if expected.Cmp(finalBalance) != 0 {
		dumps := make([]string, len(txs))
		for i, m := range txs {
			dumps[i] = m.Dump()
		}
		t.Fatalf("expected balance %s, got %s\n%s", expected, finalBalance, strings.Join(dumps, "\n"))
	}
}
