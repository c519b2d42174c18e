package sandbox

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"
	"golang.org/x/exp/maps"

	"github.com/smartcontractkit/chainlink-common/pkg/logger"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

// FeeConfig holds the flat fees charged by the sandbox, in nanotons.
type FeeConfig struct {
	ImportFee  *big.Int // charged to the receiver of an external message
	ComputeFee *big.Int // charged for every compute phase that runs
	ForwardFee *big.Int // charged to the sender of every internal message
}

// DefaultFeeConfig returns fees in the order of magnitude of the basechain.
func DefaultFeeConfig() FeeConfig {
	return FeeConfig{
		ImportFee:  big.NewInt(1_000_000),
		ComputeFee: big.NewInt(2_500_000),
		ForwardFee: big.NewInt(600_000),
	}
}

// actionFee is the share of the forward fee kept by the sender's action phase.
// The rest travels with the message.
func (f FeeConfig) actionFee() *big.Int {
	return new(big.Int).Div(f.ForwardFee, big.NewInt(3))
}

func (f FeeConfig) msgFwdFee() *big.Int {
	return new(big.Int).Sub(f.ForwardFee, f.actionFee())
}

const defaultMaxTransactions = 256

type Option func(*Blockchain)

func WithLogger(lggr logger.Logger) Option {
	return func(b *Blockchain) {
		b.lggr = logger.Named(lggr, "Sandbox")
	}
}

func WithFees(fees FeeConfig) Option {
	return func(b *Blockchain) {
		b.fees = fees
	}
}

// WithClock sets the source of the unix time seen by contracts.
func WithClock(now func() time.Time) Option {
	return func(b *Blockchain) {
		b.now = now
	}
}

// WithMaxTransactions bounds the number of transactions of a single trace.
func WithMaxTransactions(n int) Option {
	return func(b *Blockchain) {
		b.maxTransactions = n
	}
}

type account struct {
	addr     *address.Address
	status   tlb.AccountStatus
	balance  *big.Int
	code     *cell.Cell
	data     *cell.Cell
	executor Executor
	lastLT   uint64
}

// Account is a snapshot of an account of the sandbox.
type Account struct {
	Address *address.Address
	Status  tlb.AccountStatus
	Balance *big.Int
	Code    *cell.Cell
	Data    *cell.Cell
	LastLT  uint64
}

// Blockchain is an in-memory TON-like chain. Messages are processed one
// transaction at a time in the order they are emitted, and a whole trace is
// processed before Send returns.
type Blockchain struct {
	lggr            logger.Logger
	fees            FeeConfig
	now             func() time.Time
	maxTransactions int

	mu        sync.Mutex
	accounts  map[string]*account
	executors map[string]Executor
	lt        uint64
}

func New(opts ...Option) *Blockchain {
	b := &Blockchain{
		lggr:            logger.Nop(),
		fees:            DefaultFeeConfig(),
		now:             time.Now,
		maxTransactions: defaultMaxTransactions,
		accounts:        make(map[string]*account),
		executors:       make(map[string]Executor),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// RegisterCode binds contracts deployed with code to an executor.
func (b *Blockchain) RegisterCode(code *cell.Cell, executor Executor) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.executors[hex.EncodeToString(code.Hash())] = executor
}

func (b *Blockchain) Fees() FeeConfig {
	return b.fees
}

func key(addr *address.Address) string {
	return addr.StringRaw()
}

func (b *Blockchain) nextLT() uint64 {
	b.lt++
	return b.lt
}

func (b *Blockchain) unixTime() uint32 {
	return uint32(b.now().Unix()) //nolint:gosec // unix time fits until 2106
}

// getOrCreate returns the account at addr, creating a non-existing one.
func (b *Blockchain) getOrCreate(addr *address.Address) *account {
	acc, ok := b.accounts[key(addr)]
	if !ok {
		acc = &account{
			addr:    addr,
			status:  tlb.AccountStatusNonExist,
			balance: big.NewInt(0),
		}
		b.accounts[key(addr)] = acc
	}
	return acc
}

func (a *account) snapshot() Account {
	return Account{
		Address: a.addr,
		Status:  a.status,
		Balance: new(big.Int).Set(a.balance),
		Code:    a.code,
		Data:    a.data,
		LastLT:  a.lastLT,
	}
}

// GetAccount returns a snapshot of the account at addr. Unknown accounts are
// reported as non-existing with a zero balance.
func (b *Blockchain) GetAccount(addr *address.Address) Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[key(addr)]
	if !ok {
		return Account{Address: addr, Status: tlb.AccountStatusNonExist, Balance: big.NewInt(0)}
	}
	return acc.snapshot()
}

// Accounts returns a snapshot of every account the sandbox knows about, sorted
// by raw address.
func (b *Blockchain) Accounts() []Account {
	b.mu.Lock()
	defer b.mu.Unlock()
	all := maps.Values(b.accounts)
	sort.Slice(all, func(i, j int) bool {
		return key(all[i].addr) < key(all[j].addr)
	})
	result := make([]Account, 0, len(all))
	for _, acc := range all {
		result = append(result, acc.snapshot())
	}
	return result
}

// RunGetMethod runs a get method of an active account. The chain stays
// locked while the method runs so it observes a consistent state.
func (b *Blockchain) RunGetMethod(_ context.Context, addr *address.Address, method string, params ...any) (*ton.ExecutionResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	acc, ok := b.accounts[key(addr)]
	if !ok || acc.status != tlb.AccountStatusActive {
		return nil, fmt.Errorf("failed to run get method %s on %s: %w", method, addr.String(), ErrAccountNotActive)
	}
	getCtx := GetContext{
		Self:    acc.addr,
		Balance: new(big.Int).Set(acc.balance),
		Data:    acc.data,
		Now:     b.unixTime(),
	}

	stack, err := acc.executor.Get(getCtx, method, params...)
	if err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			return nil, &GetMethodError{Method: method, ExitCode: exitErr.Code}
		}
		return nil, fmt.Errorf("get method %s: %w", method, err)
	}
	return ton.NewExecutionResult(stack), nil
}

// Open binds a contract to the sandbox.
func (b *Blockchain) Open(addr *address.Address, init *tlb.StateInit) wrappers.Provider {
	return &provider{chain: b, addr: addr, init: init}
}

type provider struct {
	chain *Blockchain
	addr  *address.Address
	init  *tlb.StateInit
}

func (p *provider) Internal(ctx context.Context, via wrappers.Sender, args wrappers.InternalArgs) (*tracetracking.ReceivedMessage, error) {
	state, err := p.State(ctx)
	if err != nil {
		return nil, err
	}
	return via.Send(ctx, wrappers.InternalMessageArguments(p.addr, p.init, state, args))
}

func (p *provider) Get(ctx context.Context, method string, params ...any) (*ton.ExecutionResult, error) {
	return p.chain.RunGetMethod(ctx, p.addr, method, params...)
}

func (p *provider) State(context.Context) (wrappers.ContractState, error) {
	acc := p.chain.GetAccount(p.addr)
	return wrappers.ContractState{
		Status:  acc.Status,
		Balance: acc.Balance,
		LastLT:  acc.LastLT,
	}, nil
}
