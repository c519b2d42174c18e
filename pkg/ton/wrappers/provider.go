package wrappers

import (
	"context"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

// SendModePayGasSeparately makes the sender pay the forward fees on top of the
// message value.
const SendModePayGasSeparately uint8 = wallet.PayGasSeparately

// SenderArguments describes an internal message a Sender emits.
type SenderArguments struct {
	To       *address.Address
	Value    tlb.Coins
	Bounce   bool
	SendMode uint8
	Init     *tlb.StateInit // attached when the destination is not deployed yet
	Body     *cell.Cell
}

// Sender is an account able to emit internal messages, e.g. a wallet.
// Send returns the trace started by the message once it has been fully
// processed.
type Sender interface {
	Address() *address.Address
	Send(ctx context.Context, args SenderArguments) (*tracetracking.ReceivedMessage, error)
}

// InternalArgs are the parameters of an internal message sent to an opened
// contract.
type InternalArgs struct {
	Value    tlb.Coins
	SendMode uint8
	Bounce   bool
	Body     *cell.Cell
}

// ContractState is the on-chain state of an account.
type ContractState struct {
	Status  tlb.AccountStatus
	Balance *big.Int
	LastLT  uint64
}

func (s ContractState) Active() bool {
	return s.Status == tlb.AccountStatusActive
}

// Provider is a contract bound to a network (or a sandbox).
type Provider interface {
	// Internal sends an internal message to the contract through via.
	Internal(ctx context.Context, via Sender, args InternalArgs) (*tracetracking.ReceivedMessage, error)
	// Get runs a get method on the current contract state.
	Get(ctx context.Context, method string, params ...any) (*ton.ExecutionResult, error)
	State(ctx context.Context) (ContractState, error)
}

// Opener binds a contract address, and optionally its StateInit, to a Provider.
type Opener interface {
	Open(addr *address.Address, init *tlb.StateInit) Provider
}

// InternalMessageArguments builds the arguments of an internal message to addr.
// The StateInit is only attached when the account is not active yet, so the
// first message to a contract deploys it.
func InternalMessageArguments(addr *address.Address, init *tlb.StateInit, state ContractState, args InternalArgs) SenderArguments {
	body := args.Body
	if body == nil {
		body = cell.BeginCell().EndCell()
	}
	sendArgs := SenderArguments{
		To:       addr,
		Value:    args.Value,
		Bounce:   args.Bounce,
		SendMode: args.SendMode,
		Body:     body,
	}
	if !state.Active() {
		sendArgs.Init = init
	}
	return sendArgs
}
