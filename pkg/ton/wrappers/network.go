package wrappers

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

// NetworkOpener opens contracts on a live network reached through a liteserver.
type NetworkOpener struct {
	Client ton.APIClientWrapped
}

func NewNetworkOpener(client ton.APIClientWrapped) *NetworkOpener {
	return &NetworkOpener{Client: client}
}

func (o *NetworkOpener) Open(addr *address.Address, init *tlb.StateInit) Provider {
	return &networkProvider{
		client: o.Client,
		addr:   addr,
		init:   init,
	}
}

type networkProvider struct {
	client ton.APIClientWrapped
	addr   *address.Address
	init   *tlb.StateInit
}

func (p *networkProvider) Internal(ctx context.Context, via Sender, args InternalArgs) (*tracetracking.ReceivedMessage, error) {
	state, err := p.State(ctx)
	if err != nil {
		return nil, err
	}
	if !state.Active() && p.init == nil {
		return nil, fmt.Errorf("contract %s is not active and has no state init", p.addr.String())
	}
	return via.Send(ctx, InternalMessageArguments(p.addr, p.init, state, args))
}

func (p *networkProvider) Get(ctx context.Context, method string, params ...any) (*ton.ExecutionResult, error) {
	block, err := p.client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get current block: %w", err)
	}
	return p.client.WaitForBlock(block.SeqNo).RunGetMethod(ctx, block, p.addr, method, params...)
}

func (p *networkProvider) State(ctx context.Context) (ContractState, error) {
	block, err := p.client.CurrentMasterchainInfo(ctx)
	if err != nil {
		return ContractState{}, fmt.Errorf("failed to get current block: %w", err)
	}
	acc, err := p.client.WaitForBlock(block.SeqNo).GetAccount(ctx, block, p.addr)
	if err != nil {
		return ContractState{}, fmt.Errorf("failed to get account %s: %w", p.addr.String(), err)
	}
	if acc.State == nil {
		return ContractState{Status: tlb.AccountStatusNonExist, Balance: big.NewInt(0)}, nil
	}
	return ContractState{
		Status:  acc.State.Status,
		Balance: acc.State.Balance.Nano(),
		LastLT:  acc.LastTxLT,
	}, nil
}

// WalletSender sends messages from a wallet and waits for the whole trace.
type WalletSender struct {
	Client *tracetracking.SignedAPIClient
}

func NewWalletSender(client *tracetracking.SignedAPIClient) *WalletSender {
	return &WalletSender{Client: client}
}

func (s *WalletSender) Address() *address.Address {
	return s.Client.Wallet.WalletAddress()
}

// Send signs the message with the wallet. The returned trace starts with the
// wallet transaction, the message to args.To is its only outgoing message.
func (s *WalletSender) Send(ctx context.Context, args SenderArguments) (*tracetracking.ReceivedMessage, error) {
	if args.To == nil {
		return nil, errors.New("missing destination address")
	}
	msg := &wallet.Message{
		Mode: args.SendMode,
		InternalMessage: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      args.Bounce,
			DstAddr:     args.To,
			Amount:      args.Value,
			Body:        args.Body,
			StateInit:   args.Init,
		},
	}
	return s.Client.SendAndWaitForTrace(ctx, *args.To, msg)
}
