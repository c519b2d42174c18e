package wrappers

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

type recordingSender struct {
	addr *address.Address
	sent []SenderArguments
}

func (s *recordingSender) Address() *address.Address { return s.addr }

func (s *recordingSender) Send(_ context.Context, args SenderArguments) (*tracetracking.ReceivedMessage, error) {
	s.sent = append(s.sent, args)
	msg := tracetracking.NewReceivedMessage()
	msg.Success = true
	return &msg, nil
}

type stubOpener struct {
	state ContractState
}

func (o *stubOpener) Open(addr *address.Address, init *tlb.StateInit) Provider {
	return &stubProvider{addr: addr, init: init, state: o.state}
}

type stubProvider struct {
	addr  *address.Address
	init  *tlb.StateInit
	state ContractState
}

func (p *stubProvider) Internal(ctx context.Context, via Sender, args InternalArgs) (*tracetracking.ReceivedMessage, error) {
	return via.Send(ctx, InternalMessageArguments(p.addr, p.init, p.state, args))
}

func (p *stubProvider) Get(context.Context, string, ...any) (*ton.ExecutionResult, error) {
	return ton.NewExecutionResult([]any{big.NewInt(42)}), nil
}

func (p *stubProvider) State(context.Context) (ContractState, error) {
	return p.state, nil
}

type pingMessage struct {
	_     tlb.Magic `tlb:"#0000000a"`
	Value uint32    `tlb:"## 32"`
}

func (pingMessage) OpCode() uint32 { return 0xa }

func testCode() *cell.Cell {
	return cell.BeginCell().MustStoreUInt(0xC0DE, 16).EndCell()
}

func TestContract_DeployOnFirstMessage(t *testing.T) {
	c, err := NewContract(testCode(), cell.BeginCell().MustStoreUInt(1, 32).EndCell(), 0)
	require.NoError(t, err)

	sender := &recordingSender{addr: address.NewAddress(0, 0, make([]byte, 32))}

	_, err = c.CallWait(context.Background(), sender, pingMessage{Value: 7}, tlb.MustFromTON("0.05"))
	require.ErrorIs(t, err, ErrNotOpened)

	inactive := c.Open(&stubOpener{state: ContractState{Status: tlb.AccountStatusNonExist, Balance: big.NewInt(0)}})
	_, err = inactive.CallWait(context.Background(), sender, pingMessage{Value: 7}, tlb.MustFromTON("0.05"))
	require.NoError(t, err)

	active := c.Open(&stubOpener{state: ContractState{Status: tlb.AccountStatusActive, Balance: big.NewInt(1)}})
	_, err = active.SendMessageWait(context.Background(), sender, nil, tlb.MustFromTON("0.05"))
	require.NoError(t, err)

	require.Len(t, sender.sent, 2)
	first := sender.sent[0]
	assert.Same(t, c.Init, first.Init)
	assert.True(t, first.Bounce)
	assert.Equal(t, SendModePayGasSeparately, first.SendMode)
	assert.True(t, first.To.Equals(c.Address))
	assert.Equal(t, big.NewInt(50_000_000), first.Value.Nano())

	op, err := first.Body.BeginParse().LoadUInt(32)
	require.NoError(t, err)
	assert.Equal(t, uint64(0xa), op)

	second := sender.sent[1]
	assert.Nil(t, second.Init)
	require.NotNil(t, second.Body)
	assert.Equal(t, uint(0), second.Body.BitsSize())
}

func TestContractAt_HasNoInit(t *testing.T) {
	c, err := NewContract(testCode(), cell.BeginCell().EndCell(), 0)
	require.NoError(t, err)

	ref := ContractAt(c.Address)
	assert.Nil(t, ref.Init)
	assert.True(t, ref.Address.Equals(c.Address))

	value, err := Uint32From(ref.Open(&stubOpener{}).Get(context.Background(), "anything"))
	require.NoError(t, err)
	assert.Equal(t, uint32(42), value)

	_, err = NewContract(nil, nil, 0)
	require.Error(t, err)
}

func TestResultHelpers(t *testing.T) {
	addr := address.NewAddress(0, 0, make([]byte, 32))
	addrSlice := cell.BeginCell().MustStoreAddr(addr).EndCell().BeginParse()

	res := ton.NewExecutionResult([]any{big.NewInt(5), addrSlice})
	v64, err := Uint64From(res, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), v64)

	got, err := AddressAt(res, 1)
	require.NoError(t, err)
	assert.True(t, got.Equals(addr))

	_, err = AddressFrom(res, nil)
	require.Error(t, err, "index 0 is an int")

	_, err = Uint64From(ton.NewExecutionResult([]any{big.NewInt(-1)}), nil)
	require.ErrorContains(t, err, "does not fit in uint64")

	_, err = Uint32From(ton.NewExecutionResult([]any{new(big.Int).Lsh(big.NewInt(1), 40)}), nil)
	require.ErrorContains(t, err, "does not fit in uint32")

	_, err = BigIntFrom(nil, assert.AnError)
	require.ErrorIs(t, err, assert.AnError)
}
