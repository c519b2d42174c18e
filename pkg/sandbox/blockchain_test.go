package sandbox

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

const (
	opAdd      = 1
	opFail     = 2
	opRefund   = 3
	opPingPong = 4
)

// counterExecutor keeps a uint32 in its data.
//   - op 1: adds the next uint32 of the body
//   - op 2: throws 200
//   - op 3: sends half of the inbound value back
//   - op 4: sends the inbound value back to itself, forever
type counterExecutor struct{}

func (counterExecutor) Receive(ctx *ReceiveContext) error {
	if ctx.Msg.Bounced {
		return nil
	}
	body := ctx.Body()
	op, err := body.LoadUInt(32)
	if err != nil {
		return Throw(tvm.ExitCodeCellUnderflow)
	}
	switch op {
	case opAdd:
		by, err := body.LoadUInt(32)
		if err != nil {
			return Throw(tvm.ExitCodeCellUnderflow)
		}
		current, err := ctx.Data().BeginParse().LoadUInt(32)
		if err != nil {
			return err
		}
		ctx.SetData(cell.BeginCell().MustStoreUInt(current+by, 32).EndCell())
	case opFail:
		return Throw(200)
	case opRefund:
		ctx.Send(&tlb.InternalMessage{
			Bounce:  false,
			DstAddr: ctx.Msg.SrcAddr,
			Amount:  tlb.FromNanoTON(new(big.Int).Div(ctx.Msg.Amount.Nano(), big.NewInt(2))),
		}, wallet.PayGasSeparately)
	case opPingPong:
		ctx.Send(&tlb.InternalMessage{
			Bounce:  false,
			DstAddr: ctx.Self,
			Amount:  tlb.FromNanoTONU(0),
			Body:    cell.BeginCell().MustStoreUInt(opPingPong, 32).EndCell(),
		}, wallet.CarryAllRemainingIncomingValue)
	default:
		return errors.New("unsupported op")
	}
	return nil
}

func (counterExecutor) Get(ctx GetContext, method string, _ ...any) ([]any, error) {
	switch method {
	case "counter":
		v, err := ctx.Data.BeginParse().LoadUInt(32)
		if err != nil {
			return nil, err
		}
		return []any{new(big.Int).SetUint64(v)}, nil
	case "balance":
		return []any{ctx.Balance}, nil
	}
	return nil, Throw(tvm.ExitCodeUnknownError)
}

func counterCode() *cell.Cell {
	return cell.BeginCell().MustStoreUInt(0xC0FFEE, 24).EndCell()
}

func counterInit(t *testing.T, initial uint64) (*tlb.StateInit, *address.Address) {
	init := &tlb.StateInit{
		Code: counterCode(),
		Data: cell.BeginCell().MustStoreUInt(initial, 32).EndCell(),
	}
	addr, err := contract.StateInitAddress(0, init)
	require.NoError(t, err)
	return init, addr
}

func body(op uint64, args ...uint64) *cell.Cell {
	b := cell.BeginCell().MustStoreUInt(op, 32)
	for _, a := range args {
		b.MustStoreUInt(a, 32)
	}
	return b.EndCell()
}

func setUp(t *testing.T, opts ...Option) (*Blockchain, *Treasury) {
	t.Helper()
	chain := New(append([]Option{WithLogger(logger.Test(t))}, opts...)...)
	chain.RegisterCode(counterCode(), counterExecutor{})
	treasury, err := chain.Treasury(context.Background(), "deployer")
	require.NoError(t, err)
	return chain, treasury
}

func send(t *testing.T, treasury *Treasury, to *address.Address, init *tlb.StateInit, value string, body *cell.Cell) *tracetracking.ReceivedMessage {
	t.Helper()
	trace, err := treasury.Send(context.Background(), wrappers.SenderArguments{
		To:       to,
		Value:    tlb.MustFromTON(value),
		Bounce:   true,
		SendMode: wallet.PayGasSeparately,
		Init:     init,
		Body:     body,
	})
	require.NoError(t, err)
	return trace
}

func TestTreasury(t *testing.T) {
	chain, treasury := setUp(t)

	again, err := chain.Treasury(context.Background(), "deployer")
	require.NoError(t, err)
	assert.True(t, treasury.Address().Equals(again.Address()))
	assert.Equal(t, TreasuryBalance.Nano(), again.Balance(), "a treasury is funded once")

	other, err := chain.Treasury(context.Background(), "user")
	require.NoError(t, err)
	assert.False(t, treasury.Address().Equals(other.Address()))

	acc := chain.GetAccount(treasury.Address())
	assert.Equal(t, tlb.AccountStatusActive, acc.Status)
	assert.NotNil(t, acc.Code)
	assert.Len(t, chain.Accounts(), 2)

	_, err = chain.Treasury(context.Background(), "")
	require.Error(t, err)

	seqno, err := wrappers.Uint64From(chain.RunGetMethod(context.Background(), treasury.Address(), "seqno"))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), seqno)
}

func TestDeployAndCall(t *testing.T) {
	chain, treasury := setUp(t)
	fees := chain.Fees()
	init, addr := counterInit(t, 5)

	balanceBefore := treasury.Balance()
	trace := send(t, treasury, addr, init, "1", body(opAdd, 3))
	require.True(t, trace.TraceSucceeded(), trace.Dump())
	require.True(t, trace.HasTransaction(tracetracking.TransactionFilter{
		From:    treasury.Address(),
		To:      addr,
		Deploy:  tracetracking.Ptr(true),
		Success: tracetracking.Ptr(true),
	}), trace.Dump())
	assert.Equal(t, tracetracking.Finalized, trace.Status())

	// the treasury pays the value and every fee of its own transaction
	expectedTreasury := new(big.Int).Sub(balanceBefore, trace.OutgoingAmount())
	expectedTreasury.Sub(expectedTreasury, trace.TotalTransactionExecutionFee())
	assert.Equal(t, expectedTreasury, treasury.Balance())
	assert.Equal(t, tracetracking.Sum(fees.ImportFee, fees.ComputeFee, fees.ForwardFee), trace.TotalTransactionExecutionFee())

	acc := chain.GetAccount(addr)
	assert.Equal(t, tlb.AccountStatusActive, acc.Status)
	assert.Equal(t, new(big.Int).Sub(tlb.MustFromTON("1").Nano(), fees.ComputeFee), acc.Balance)

	counter, err := wrappers.Uint32From(chain.RunGetMethod(context.Background(), addr, "counter"))
	require.NoError(t, err)
	assert.Equal(t, uint32(8), counter)

	// the StateInit is ignored once the account is active
	trace = send(t, treasury, addr, init, "0.1", body(opAdd, 1))
	require.False(t, trace.HasTransaction(tracetracking.TransactionFilter{Deploy: tracetracking.Ptr(true)}))
	counter, err = wrappers.Uint32From(chain.RunGetMethod(context.Background(), addr, "counter"))
	require.NoError(t, err)
	assert.Equal(t, uint32(9), counter)

	seqno, err := wrappers.Uint64From(chain.RunGetMethod(context.Background(), treasury.Address(), "seqno"))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), seqno)
}

func TestFailureBounces(t *testing.T) {
	chain, treasury := setUp(t)
	fees := chain.Fees()
	init, addr := counterInit(t, 0)
	send(t, treasury, addr, init, "1", body(opAdd, 1))
	contractBalance := chain.GetAccount(addr).Balance

	trace := send(t, treasury, addr, nil, "2", body(opFail))
	failed := trace.FindTransaction(tracetracking.TransactionFilter{To: addr, Success: tracetracking.Ptr(false)})
	require.NotNil(t, failed, trace.Dump())
	assert.Equal(t, tvm.ExitCode(200), failed.ExitCode)
	assert.True(t, failed.EmittedBouncedMessage)
	assert.Equal(t, tvm.ExitCode(200), trace.OutcomeExitCode())

	bounce := trace.FindTransaction(tracetracking.TransactionFilter{From: addr, To: treasury.Address(), Bounced: tracetracking.Ptr(true)})
	require.NotNil(t, bounce, trace.Dump())
	assert.True(t, bounce.Success)
	expectedBounce := new(big.Int).Sub(tlb.MustFromTON("2").Nano(), fees.ComputeFee)
	expectedBounce.Sub(expectedBounce, fees.ForwardFee)
	assert.Equal(t, expectedBounce, bounce.Amount)

	op, ok := bounce.Op()
	require.True(t, ok)
	assert.Equal(t, uint32(0xFFFFFFFF), op)
	rest := bounce.InternalMsg.Body.BeginParse()
	_, err := rest.LoadUInt(32)
	require.NoError(t, err)
	original, err := rest.LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(opFail), original)

	// value minus gas and forward fee goes back, the contract keeps its balance
	assert.Equal(t, contractBalance, chain.GetAccount(addr).Balance)
}

func TestUndeployedDestination(t *testing.T) {
	chain, treasury := setUp(t)
	_, addr := counterInit(t, 0)

	trace := send(t, treasury, addr, nil, "1", body(opAdd, 1))
	assert.True(t, trace.HasTransaction(tracetracking.TransactionFilter{To: addr, Success: tracetracking.Ptr(false)}))
	assert.True(t, trace.HasTransaction(tracetracking.TransactionFilter{To: treasury.Address(), Bounced: tracetracking.Ptr(true)}))
	assert.NotEqual(t, tlb.AccountStatusActive, chain.GetAccount(addr).Status)

	_, err := chain.RunGetMethod(context.Background(), addr, "counter")
	require.ErrorIs(t, err, ErrAccountNotActive)

	_, err = chain.RunGetMethod(context.Background(), testAddress(9), "counter")
	require.ErrorIs(t, err, ErrAccountNotActive)

	// non bounceable value stays on the uninitialized account
	_, err = treasury.Send(context.Background(), wrappers.SenderArguments{
		To:       addr,
		Value:    tlb.MustFromTON("1"),
		SendMode: wallet.PayGasSeparately,
	})
	require.NoError(t, err)
	acc := chain.GetAccount(addr)
	assert.Equal(t, tlb.AccountStatusUninit, acc.Status)
	assert.Equal(t, tlb.MustFromTON("1").Nano(), acc.Balance)
}

func TestFailedDeployLeavesAccountInactive(t *testing.T) {
	chain, treasury := setUp(t)
	init, addr := counterInit(t, 0)

	trace := send(t, treasury, addr, init, "1", body(opFail))
	assert.False(t, trace.HasTransaction(tracetracking.TransactionFilter{Deploy: tracetracking.Ptr(true)}))
	assert.NotEqual(t, tlb.AccountStatusActive, chain.GetAccount(addr).Status)

	_, err := chain.RunGetMethod(context.Background(), addr, "counter")
	require.ErrorIs(t, err, ErrAccountNotActive)
}

func TestUnknownCode(t *testing.T) {
	chain, treasury := setUp(t)
	init := &tlb.StateInit{Code: cell.BeginCell().MustStoreUInt(1, 8).EndCell(), Data: cell.BeginCell().EndCell()}
	addr, err := contract.StateInitAddress(0, init)
	require.NoError(t, err)

	_, err = treasury.Send(context.Background(), wrappers.SenderArguments{
		To:       addr,
		Value:    tlb.MustFromTON("1"),
		SendMode: wallet.PayGasSeparately,
		Init:     init,
	})
	require.ErrorIs(t, err, ErrUnknownCode)
	assert.NotEqual(t, tlb.AccountStatusActive, chain.GetAccount(addr).Status)
}

func TestOutgoingMessagesAndLT(t *testing.T) {
	chain, treasury := setUp(t)
	fees := chain.Fees()
	init, addr := counterInit(t, 0)
	send(t, treasury, addr, init, "1", body(opAdd, 1))

	trace := send(t, treasury, addr, nil, "2", body(opRefund))
	require.True(t, trace.TraceSucceeded(), trace.Dump())
	txs := trace.Transactions()
	require.Len(t, txs, 3)
	for i := 1; i < len(txs); i++ {
		assert.Greater(t, txs[i].LamportTime, txs[i-1].LamportTime)
	}

	refund := txs[2]
	assert.True(t, refund.Recipient().Equals(treasury.Address()))
	assert.Equal(t, tlb.MustFromTON("1").Nano(), refund.Amount)

	call := txs[1]
	assert.Equal(t, fees.ForwardFee, call.TotalActionPhaseFees())
	assert.Equal(t, tlb.MustFromTON("1").Nano(), call.NetCreditResult())
}

func TestGetMethodError(t *testing.T) {
	chain, treasury := setUp(t)
	init, addr := counterInit(t, 0)
	send(t, treasury, addr, init, "1", body(opAdd, 1))

	_, err := chain.RunGetMethod(context.Background(), addr, "missing")
	var getErr *GetMethodError
	require.ErrorAs(t, err, &getErr)
	assert.Equal(t, tvm.ExitCodeUnknownError, getErr.ExitCode)
	assert.Equal(t, "missing", getErr.Method)
}

func TestGetMethodsDuringSends(t *testing.T) {
	chain, treasury := setUp(t)
	other, err := chain.Treasury(context.Background(), "user")
	require.NoError(t, err)

	const sends = 20
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for range sends {
			_, err := treasury.Send(context.Background(), wrappers.SenderArguments{
				To:       other.Address(),
				Value:    tlb.MustFromTON("0.1"),
				SendMode: wallet.PayGasSeparately,
			})
			assert.NoError(t, err)
		}
	}()
	go func() {
		defer wg.Done()
		var last uint64
		for range sends {
			seqno, err := wrappers.Uint64From(chain.RunGetMethod(context.Background(), treasury.Address(), "seqno"))
			assert.NoError(t, err)
			assert.GreaterOrEqual(t, seqno, last, "seqno never goes back")
			last = seqno
		}
	}()
	wg.Wait()

	seqno, err := wrappers.Uint64From(chain.RunGetMethod(context.Background(), treasury.Address(), "seqno"))
	require.NoError(t, err)
	assert.Equal(t, uint64(sends), seqno)
}

func TestMaxTransactions(t *testing.T) {
	_, treasury := setUp(t, WithMaxTransactions(10))
	init, addr := counterInit(t, 0)
	send(t, treasury, addr, init, "1", body(opAdd, 1))

	_, err := treasury.Send(context.Background(), wrappers.SenderArguments{
		To:       addr,
		Value:    tlb.MustFromTON("1"),
		SendMode: wallet.PayGasSeparately,
		Body:     body(opPingPong),
	})
	require.ErrorIs(t, err, ErrTooManyTransactions)
}

func TestProviderAndClock(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	chain, treasury := setUp(t, WithClock(func() time.Time { return now }))
	init, addr := counterInit(t, 41)

	p := chain.Open(addr, init)
	state, err := p.State(context.Background())
	require.NoError(t, err)
	assert.False(t, state.Active())

	trace, err := p.Internal(context.Background(), treasury, wrappers.InternalArgs{
		Value:    tlb.MustFromTON("0.5"),
		SendMode: wallet.PayGasSeparately,
		Bounce:   true,
		Body:     body(opAdd, 1),
	})
	require.NoError(t, err)
	call := trace.FindTransaction(tracetracking.TransactionFilter{To: addr})
	require.NotNil(t, call)
	assert.True(t, call.Deployed)
	assert.Equal(t, uint32(now.Unix()), call.InternalMsg.CreatedAt) //nolint:gosec // test time

	counter, err := wrappers.Uint32From(p.Get(context.Background(), "counter"))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), counter)

	state, err = p.State(context.Background())
	require.NoError(t, err)
	assert.True(t, state.Active())
	assert.Equal(t, call.LamportTime, state.LastLT)
}

func testAddress(b byte) *address.Address {
	hash := make([]byte, 32)
	hash[0] = b
	return address.NewAddress(0, 0, hash)
}
