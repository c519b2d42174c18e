package maincontract

import (
	"fmt"
	"math"
	"math/big"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/sandbox"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

// EmulatedCode is the code cell of main contracts run by the sandbox emulator
// when no compiled artifact is around. It is an identifier, not TVM code, and
// must not be deployed to a real network.
func EmulatedCode() *cell.Cell {
	return cell.BeginCell().
		MustStoreStringSnake("sandbox:main-contract").
		EndCell()
}

// Emulator runs the main contract logic in the sandbox.
type Emulator struct{}

var _ sandbox.Executor = Emulator{}

// RegisterEmulator makes chain run contracts deployed with code through the
// emulator.
func RegisterEmulator(chain *sandbox.Blockchain, code *cell.Cell) {
	chain.RegisterCode(code, Emulator{})
}

func loadStorage(data *cell.Cell) (StorageData, error) {
	var storage StorageData
	if data == nil {
		return storage, sandbox.Throw(tvm.ExitCodeCellUnderflow)
	}
	if err := tlb.LoadFromCell(&storage, data.BeginParse()); err != nil {
		return storage, fmt.Errorf("failed to load storage: %w", err)
	}
	return storage, nil
}

func (Emulator) Receive(ctx *sandbox.ReceiveContext) error {
	if ctx.Msg.Bounced {
		return nil
	}
	body := ctx.Body()
	op, err := body.LoadUInt(32)
	if err != nil {
		return sandbox.Throw(tvm.ExitCodeCellUnderflow)
	}
	storage, err := loadStorage(ctx.Data())
	if err != nil {
		return err
	}

	switch op {
	case OpcodeIncrement:
		incrementBy, err := body.LoadUInt(32)
		if err != nil {
			return sandbox.Throw(tvm.ExitCodeCellUnderflow)
		}
		// the sum must fit back into 32 bits
		sum := uint64(storage.Counter) + incrementBy
		if sum > math.MaxUint32 {
			return sandbox.Throw(tvm.ExitCodeIntegerOutOfExpectedRange)
		}
		storage.Counter = uint32(sum)
		storage.RecentSender = ctx.Msg.SrcAddr
		data, err := tlb.ToCell(storage)
		if err != nil {
			return err
		}
		ctx.SetData(data)
		return nil

	case OpcodeDeposit:
		return nil

	case OpcodeWithdraw:
		if err := sandbox.ThrowUnless(ErrorUnauthorizedWithdrawal, ctx.Msg.SrcAddr.Equals(storage.Owner)); err != nil {
			return err
		}
		amount, err := body.LoadBigCoins()
		if err != nil {
			return sandbox.Throw(tvm.ExitCodeCellUnderflow)
		}
		if err := sandbox.ThrowUnless(ErrorInsufficientBalance, ctx.Balance.Cmp(amount) >= 0); err != nil {
			return err
		}
		available := new(big.Int).Sub(ctx.Balance, MinTonsForStorage.Nano())
		payout := amount
		if available.Cmp(payout) < 0 {
			payout = available
		}
		// coins cannot be negative once the balance is below the reserve
		if payout.Sign() < 0 {
			return sandbox.Throw(tvm.ExitCodeIntegerOutOfExpectedRange)
		}
		ctx.Send(&tlb.InternalMessage{
			IHRDisabled: true,
			Bounce:      false,
			DstAddr:     ctx.Msg.SrcAddr,
			Amount:      tlb.FromNanoTON(payout),
			Body:        cell.BeginCell().EndCell(),
		}, wallet.PayGasSeparately)
		return nil

	default:
		return sandbox.Throw(ErrorUnknownOperation)
	}
}

func (Emulator) Get(ctx sandbox.GetContext, method string, _ ...any) ([]any, error) {
	switch method {
	case GetterStorageData:
		storage, err := loadStorage(ctx.Data)
		if err != nil {
			return nil, err
		}
		return []any{
			new(big.Int).SetUint64(uint64(storage.Counter)),
			cell.BeginCell().MustStoreAddr(storage.RecentSender).EndCell().BeginParse(),
			cell.BeginCell().MustStoreAddr(storage.Owner).EndCell().BeginParse(),
		}, nil
	case GetterBalance:
		return []any{new(big.Int).Set(ctx.Balance)}, nil
	default:
		return nil, sandbox.Throw(tvm.ExitCodeUnknownError)
	}
}
