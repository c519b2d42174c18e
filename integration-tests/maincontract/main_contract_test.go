package maincontract

import (
	"context"
	"math/big"
	"testing"

	chainsel "github.com/smartcontractkit/chain-selectors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"
	cld_ops "github.com/smartcontractkit/chainlink-deployments-framework/operations"

	"github.com/smartcontractkit/ton-main-contract/ops"
	opsmain "github.com/smartcontractkit/ton-main-contract/ops/maincontract"
	"github.com/smartcontractkit/ton-main-contract/pkg/bindings/maincontract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
	"github.com/smartcontractkit/ton-main-contract/testutils"
)

var localnet = chainsel.TON_LOCALNET

func TestMainContract_Localnet(t *testing.T) {
	artifact := testutils.RequireArtifact(t, "main.compiled.json")
	ctx := context.Background()

	client := testutils.CreateAPIClient(t, "-217")
	accounts := testutils.SetUpAccounts(t, client, big.NewInt(100_000_000_000), 2)
	owner, stranger := accounts[0], accounts[1]
	opener := wrappers.NewNetworkOpener(client)

	c, err := maincontract.CreateFromArtifact(maincontract.Config{Number: 0, Address: owner.Sender.Address()}, artifact, 0)
	require.NoError(t, err)
	c = c.Open(opener)

	t.Run("increment deploys", func(t *testing.T) {
		msg, err := c.SendIncrement(ctx, owner.Sender, tlb.MustFromTON("0.05"), 3)
		require.NoError(t, err)
		require.True(t, msg.HasTransaction(tracetracking.TransactionFilter{
			To:      c.Address,
			Deploy:  tracetracking.Ptr(true),
			Success: tracetracking.Ptr(true),
		}), msg.Dump())

		data, err := c.GetData(ctx)
		require.NoError(t, err)
		assert.Equal(t, uint32(3), data.Number)
		assert.True(t, data.RecentSender.Equals(owner.Sender.Address()))
	})

	t.Run("deposit", func(t *testing.T) {
		before, err := c.GetBalance(ctx)
		require.NoError(t, err)
		msg, err := c.SendDeposit(ctx, stranger.Sender, tlb.MustFromTON("2"))
		require.NoError(t, err)
		require.True(t, msg.TraceSucceeded(), msg.Dump())

		after, err := c.GetBalance(ctx)
		require.NoError(t, err)
		require.Positive(t, after.Cmp(before))
	})

	t.Run("withdraw by stranger fails", func(t *testing.T) {
		msg, err := c.SendWithdrawalRequest(ctx, stranger.Sender, tlb.MustFromTON("0.05"), tlb.MustFromTON("1"))
		require.NoError(t, err)
		require.True(t, msg.HasTransaction(tracetracking.TransactionFilter{
			To:       c.Address,
			Success:  tracetracking.Ptr(false),
			ExitCode: tracetracking.Ptr(tvm.ExitCodeUnauthorizedWithdrawal),
		}), msg.Dump())
	})

	t.Run("withdraw by owner", func(t *testing.T) {
		initial, err := testutils.GetBalance(ctx, client, owner.Sender.Address())
		require.NoError(t, err)
		msg, err := c.SendWithdrawalRequest(ctx, owner.Sender, tlb.MustFromTON("0.05"), tlb.MustFromTON("1"))
		require.NoError(t, err)
		require.True(t, msg.HasTransaction(tracetracking.TransactionFilter{
			From:  c.Address,
			To:    owner.Sender.Address(),
			Value: tlb.MustFromTON("1").Nano(),
		}), msg.Dump())

		payout := msg.FindTransaction(tracetracking.TransactionFilter{From: c.Address, To: owner.Sender.Address()})
		final, err := testutils.GetBalance(ctx, client, owner.Sender.Address())
		require.NoError(t, err)
		// the wallet pays for the request, then receives the payout
		testutils.VerifyTransactions(t, initial, final, msg, payout)
	})
}

func TestDeployAndInitSequence_Localnet(t *testing.T) {
	artifact := testutils.RequireArtifact(t, "main.compiled.json")

	client := testutils.CreateAPIClient(t, "-217")
	deployer := testutils.CreateTonWallet(t, client, wallet.V3R2, wallet.WithWorkchain(0))
	chain := testutils.NewChain(t, client, localnet.Selector, deployer)

	deps, err := ops.DepsFromChain(chain, artifact)
	require.NoError(t, err)

	bundle := cld_ops.NewBundle(context.Background, logger.Test(t), cld_ops.NewMemoryReporter())
	report, err := cld_ops.ExecuteSequence(bundle, opsmain.DeployAndInitMainContractSequence, deps, ops.OpTxInput[opsmain.DeployAndInitInput]{Input: opsmain.DeployAndInitInput{
		Deploy:    opsmain.DeployInput{Number: 1, Value: "0.5"},
		Increment: 1,
	}})
	require.NoError(t, err)
	require.True(t, report.Output.Objects.Deployed)
	require.Equal(t, uint32(2), report.Output.Objects.Number)
}
