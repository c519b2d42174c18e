package tracetracking

import (
	"context"
	"fmt"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/ton/wallet"
)

// SignedAPIClient couples a liteserver API client with the wallet that signs
// the external messages sent through it.
type SignedAPIClient struct {
	Client ton.APIClientWrapped
	Wallet wallet.Wallet
}

func NewSignedAPIClient(client ton.APIClientWrapped, wallet wallet.Wallet) SignedAPIClient {
	return SignedAPIClient{
		Client: client,
		Wallet: wallet,
	}
}

// SendWaitTransaction sends a message through the wallet and waits for the
// wallet transaction to be included in a block. The returned ReceivedMessage
// is the wallet transaction: its outgoing messages are still in Sent state.
// Use SendAndWaitForTrace to wait for the whole trace.
func (c *SignedAPIClient) SendWaitTransaction(ctx context.Context, dstAddr address.Address, messageToSend *wallet.Message) (*ReceivedMessage, *ton.BlockIDExt, error) {
	tx, block, err := c.Wallet.SendWaitTransaction(ctx, messageToSend)
	if err != nil {
		return nil, nil, fmt.Errorf("transaction to %s failed: %w", dstAddr.String(), err)
	}

	receivedMessage, err := MapToReceivedMessage(tx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get outgoing messages: %w", err)
	}
	return &receivedMessage, block, nil
}

// SendAndWaitForTrace sends a message and waits for the complete execution
// trace. It then waits for the next masterchain block so that getters run
// right after observe the resulting state.
func (c *SignedAPIClient) SendAndWaitForTrace(ctx context.Context, dstAddr address.Address, messageToSend *wallet.Message) (*ReceivedMessage, error) {
	sentMessage, block, err := c.SendWaitTransaction(ctx, dstAddr, messageToSend)
	if err != nil {
		return nil, fmt.Errorf("failed to SendWaitTransaction: %w", err)
	}
	err = sentMessage.WaitForTrace(ctx, c.Client)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for trace: %w", err)
	}
	if err = c.waitPastBlock(ctx, block.SeqNo); err != nil {
		return nil, err
	}
	return sentMessage, nil
}

func (c *SignedAPIClient) waitPastBlock(ctx context.Context, seqNo uint32) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	for {
		master, err := c.Client.WaitForBlock(seqNo).CurrentMasterchainInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to get masterchain info: %w", err)
		}
		if master.SeqNo > seqNo+1 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// SubscribeToTransactions returns a channel with all incoming transactions for
// the given address that came after lt (Lamport Time). It works
// retroactively: transactions already in the blockchain are delivered too.
func (c *SignedAPIClient) SubscribeToTransactions(ctx context.Context, address address.Address, lt uint64) chan *tlb.Transaction {
	transactionsReceived := make(chan *tlb.Transaction)

	// it is a blocking call, so we start it asynchronously
	go c.Client.SubscribeOnTransactions(ctx, &address, lt, transactionsReceived)
	return transactionsReceived
}
