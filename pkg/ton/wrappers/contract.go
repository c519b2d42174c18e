package wrappers

import (
	"context"
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

var ErrNotOpened = errors.New("contract is not opened with a provider")

// Contract is the address and, before deployment, the StateInit of a contract
// instance. Bindings embed it and call Open to bind a network or a sandbox.
type Contract struct {
	Address  *address.Address
	Init     *tlb.StateInit
	provider Provider
}

// NewContract builds a contract from its code and initial data. The address
// is derived from the StateInit.
func NewContract(code, data *cell.Cell, workchain int32) (*Contract, error) {
	if code == nil {
		return nil, errors.New("contract code is nil")
	}
	init := &tlb.StateInit{Code: code, Data: data}
	addr, err := contract.StateInitAddress(workchain, init)
	if err != nil {
		return nil, err
	}
	return &Contract{Address: addr, Init: init}, nil
}

// ContractAt references an already deployed contract. It cannot be deployed
// through Open.
func ContractAt(addr *address.Address) *Contract {
	return &Contract{Address: addr}
}

// Open returns a copy of the contract bound to a provider from the opener.
func (c *Contract) Open(opener Opener) *Contract {
	return &Contract{
		Address:  c.Address,
		Init:     c.Init,
		provider: opener.Open(c.Address, c.Init),
	}
}

func (c *Contract) Provider() (Provider, error) {
	if c.provider == nil {
		return nil, ErrNotOpened
	}
	return c.provider, nil
}

// Message is a message body with a 32 bit opcode prefix, serialized with tlb
// struct tags.
type Message interface {
	OpCode() uint32
}

// MessageBody serializes a message with tlb.ToCell.
func MessageBody(msg Message) (*cell.Cell, error) {
	body, err := tlb.ToCell(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize message 0x%x: %w", msg.OpCode(), err)
	}
	return body, nil
}

// CallWait sends a message to the contract through via and returns the whole
// trace.
func (c *Contract) CallWait(ctx context.Context, via Sender, message Message, amount tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	body, err := MessageBody(message)
	if err != nil {
		return nil, err
	}
	return c.SendMessageWait(ctx, via, body, amount)
}

// SendMessageWait sends a raw body to the contract, bounceable and paying the
// forward fees separately.
func (c *Contract) SendMessageWait(ctx context.Context, via Sender, body *cell.Cell, amount tlb.Coins) (*tracetracking.ReceivedMessage, error) {
	p, err := c.Provider()
	if err != nil {
		return nil, err
	}
	return p.Internal(ctx, via, InternalArgs{
		Value:    amount,
		SendMode: SendModePayGasSeparately,
		Bounce:   true,
		Body:     body,
	})
}

// Get runs a get method on the contract.
func (c *Contract) Get(ctx context.Context, key string, params ...any) (*ton.ExecutionResult, error) {
	p, err := c.Provider()
	if err != nil {
		return nil, err
	}
	return p.Get(ctx, key, params...)
}

func (c *Contract) State(ctx context.Context) (ContractState, error) {
	p, err := c.Provider()
	if err != nil {
		return ContractState{}, err
	}
	return p.State(ctx)
}
