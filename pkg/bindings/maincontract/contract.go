package maincontract

import (
	"context"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

// DefaultContractPath is where the build puts the compiled contract.
const DefaultContractPath = "contracts/build/main.compiled.json"

// MainContract wraps a main contract instance: its address, its StateInit
// until deployment, and the provider it was opened with.
type MainContract struct {
	*wrappers.Contract
}

// CreateFromConfig computes the address of the contract built from code and
// the initial config. Nothing is sent: the first message to an opened
// contract deploys it.
func CreateFromConfig(cfg Config, code *cell.Cell, workchain int32) (*MainContract, error) {
	data, err := cfg.ToCell()
	if err != nil {
		return nil, err
	}
	c, err := wrappers.NewContract(code, data, workchain)
	if err != nil {
		return nil, fmt.Errorf("failed to create main contract: %w", err)
	}
	return &MainContract{Contract: c}, nil
}

// CreateFromArtifact is CreateFromConfig with the code loaded from a compiled
// artifact.
func CreateFromArtifact(cfg Config, path string, workchain int32) (*MainContract, error) {
	code, err := contract.ParseCompiledContract(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load main contract: %w", err)
	}
	return CreateFromConfig(cfg, code, workchain)
}

// NewFromAddress references an already deployed contract.
func NewFromAddress(addr *address.Address) *MainContract {
	return &MainContract{Contract: wrappers.ContractAt(addr)}
}

// Open binds the contract to a network or a sandbox.
func (c *MainContract) Open(opener wrappers.Opener) *MainContract {
	return &MainContract{Contract: c.Contract.Open(opener)}
}

// SendIncrement adds incrementBy to the counter and records via as the most
// recent sender.
func (c *MainContract) SendIncrement(ctx context.Context, via wrappers.Sender, value tlb.Coins, incrementBy uint32) (*tracetracking.ReceivedMessage, error) {
	return c.CallWait(ctx, via, Increment{IncrementBy: incrementBy}, value)
}

func (c *MainContract) SendDeposit(ctx context.Context, via wrappers.Sender, value tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	return c.CallWait(ctx, via, Deposit{}, value)
}

// SendNoCodeDeposit sends value with an empty body. The contract rejects it
// and the value bounces back.
func (c *MainContract) SendNoCodeDeposit(ctx context.Context, via wrappers.Sender, value tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	return c.SendMessageWait(ctx, via, cell.BeginCell().EndCell(), value)
}

// SendWithdrawalRequest asks the contract to send amount to via, which must be
// the owner.
func (c *MainContract) SendWithdrawalRequest(ctx context.Context, via wrappers.Sender, value tlb.Coins, amount tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	return c.CallWait(ctx, via, Withdraw{Amount: amount}, value)
}

// SendInternalMessage sends value with an empty body. The contract reads an
// opcode from every message, so it fails like SendNoCodeDeposit.
func (c *MainContract) SendInternalMessage(ctx context.Context, via wrappers.Sender, value tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	return c.SendMessageWait(ctx, via, cell.BeginCell().EndCell(), value)
}

// GetData reads the counter, the most recent sender and the owner.
func (c *MainContract) GetData(ctx context.Context) (Data, error) {
	res, err := c.Get(ctx, GetterStorageData)
	if err != nil {
		return Data{}, fmt.Errorf("failed to run %s: %w", GetterStorageData, err)
	}
	number, err := wrappers.Uint32From(res, nil)
	if err != nil {
		return Data{}, err
	}
	recentSender, err := wrappers.AddressAt(res, 1)
	if err != nil {
		return Data{}, err
	}
	owner, err := wrappers.AddressAt(res, 2)
	if err != nil {
		return Data{}, err
	}
	return Data{
		Number:       number,
		RecentSender: recentSender,
		OwnerAddress: owner,
	}, nil
}

// GetBalance returns the contract balance in nanotons, as seen by the contract.
func (c *MainContract) GetBalance(ctx context.Context) (*big.Int, error) {
	return wrappers.BigIntFrom(c.Get(ctx, GetterBalance))
}
