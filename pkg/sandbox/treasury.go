package sandbox

import (
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

const maxWalletMessages = 4

// TreasuryBalance is the initial balance of every treasury.
var TreasuryBalance = tlb.MustFromTON("1000000")

// Treasury is a funded wallet of the sandbox. Treasuries with the same seed
// share the same key and address.
type Treasury struct {
	chain     *Blockchain
	addr      *address.Address
	publicKey ed25519.PublicKey
	executor  *walletExecutor
}

var _ wrappers.Sender = (*Treasury)(nil)

// Treasury returns the wallet derived from seed, creating and funding it on
// first use.
func (b *Blockchain) Treasury(_ context.Context, seed string) (*Treasury, error) {
	if seed == "" {
		return nil, errors.New("treasury seed is empty")
	}
	keySeed := sha256.Sum256([]byte("treasury:" + seed))
	privateKey := ed25519.NewKeyFromSeed(keySeed[:])
	publicKey := privateKey.Public().(ed25519.PublicKey)

	init, err := wallet.GetStateInit(publicKey, wallet.V4R2, wallet.DefaultSubwallet)
	if err != nil {
		return nil, fmt.Errorf("failed to build wallet state init: %w", err)
	}
	addr, err := contract.StateInitAddress(0, init)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	acc := b.getOrCreate(addr)
	executor, ok := acc.executor.(*walletExecutor)
	if !ok {
		executor = &walletExecutor{publicKey: publicKey}
		acc.status = tlb.AccountStatusActive
		acc.balance.Add(acc.balance, TreasuryBalance.Nano())
		acc.code = init.Code
		acc.data = init.Data
		acc.executor = executor
		b.lggr.Debugw("Created treasury", "seed", seed, "address", addr.String())
	}
	return &Treasury{chain: b, addr: addr, publicKey: publicKey, executor: executor}, nil
}

func (t *Treasury) Address() *address.Address {
	return t.addr
}

// Balance returns the current balance of the treasury in nanotons.
func (t *Treasury) Balance() *big.Int {
	return t.chain.GetAccount(t.addr).Balance
}

// Send processes an external message instructing the treasury to send args,
// then every message of the resulting trace.
func (t *Treasury) Send(ctx context.Context, args wrappers.SenderArguments) (*tracetracking.ReceivedMessage, error) {
	if args.To == nil {
		return nil, errors.New("missing destination address")
	}
	body := args.Body
	if body == nil {
		body = cell.BeginCell().EndCell()
	}
	return t.SendMessages(ctx, []OutMessage{{
		Msg: &tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      args.Bounce,
			DstAddr:     args.To,
			Amount:      args.Value,
			Body:        body,
			StateInit:   args.Init,
		},
		Mode: args.SendMode,
	}})
}

// SendMessages sends several messages within the same wallet transaction.
func (t *Treasury) SendMessages(ctx context.Context, messages []OutMessage) (*tracetracking.ReceivedMessage, error) {
	t.chain.mu.Lock()
	defer t.chain.mu.Unlock()

	seqno := t.executor.seqno
	t.executor.seqno++
	body, err := externalBody(seqno, messages)
	if err != nil {
		return nil, err
	}

	root, queue := t.chain.externalIn(t.chain.getOrCreate(t.addr), body, messages)
	if err = t.chain.runQueue(ctx, queue); err != nil {
		return nil, fmt.Errorf("failed to process trace from %s: %w", t.addr.String(), err)
	}
	return root, nil
}

func externalBody(seqno uint32, messages []OutMessage) (*cell.Cell, error) {
	if len(messages) == 0 || len(messages) > maxWalletMessages {
		return nil, fmt.Errorf("a wallet sends 1 to %d messages at once, got %d", maxWalletMessages, len(messages))
	}
	body := cell.BeginCell().MustStoreUInt(uint64(seqno), 32)
	for _, m := range messages {
		msgCell, err := m.Msg.ToCell()
		if err != nil {
			return nil, fmt.Errorf("failed to serialize message to %s: %w", m.Msg.DstAddr.String(), err)
		}
		body.MustStoreUInt(uint64(m.Mode), 8).MustStoreRef(msgCell)
	}
	return body.EndCell(), nil
}

// walletExecutor accepts every internal message, like a wallet does.
type walletExecutor struct {
	publicKey ed25519.PublicKey
	seqno     uint32
}

func (w *walletExecutor) Receive(*ReceiveContext) error {
	return nil
}

func (w *walletExecutor) Get(_ GetContext, method string, _ ...any) ([]any, error) {
	switch method {
	case "seqno":
		return []any{new(big.Int).SetUint64(uint64(w.seqno))}, nil
	case "get_public_key":
		return []any{new(big.Int).SetBytes(w.publicKey)}, nil
	default:
		return nil, Throw(tvm.ExitCodeUnknownError)
	}
}
