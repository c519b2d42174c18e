package maincontract

import (
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

const (
	ErrorUnauthorizedWithdrawal = tvm.ExitCodeUnauthorizedWithdrawal
	ErrorInsufficientBalance    = tvm.ExitCodeInsufficientBalance
	ErrorUnknownOperation       = tvm.ExitCodeUnknownOperation
)

// Opcodes
const (
	OpcodeIncrement = 0x1
	OpcodeDeposit   = 0x2
	OpcodeWithdraw  = 0x3
)

// Getters
const (
	GetterStorageData = "get_contract_storage_data"
	GetterBalance     = "balance"
)

// MinTonsForStorage is kept on the contract by withdrawals.
var MinTonsForStorage = tlb.MustFromTON("0.01")

// StorageData is the persistent storage of the contract.
type StorageData struct {
	Counter      uint32           `tlb:"## 32"`
	RecentSender *address.Address `tlb:"addr"`
	Owner        *address.Address `tlb:"addr"`
}

// Config is the initial state of a contract instance. Address is the initial
// recent sender. OwnerAddress defaults to Address.
type Config struct {
	Number       uint32
	Address      *address.Address
	OwnerAddress *address.Address
}

func (c Config) storage() (StorageData, error) {
	if c.Address == nil {
		return StorageData{}, errors.New("config address is required")
	}
	owner := c.OwnerAddress
	if owner == nil {
		owner = c.Address
	}
	return StorageData{
		Counter:      c.Number,
		RecentSender: c.Address,
		Owner:        owner,
	}, nil
}

// ToCell serializes the config as the contract data cell.
func (c Config) ToCell() (*cell.Cell, error) {
	storage, err := c.storage()
	if err != nil {
		return nil, err
	}
	data, err := tlb.ToCell(storage)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize storage: %w", err)
	}
	return data, nil
}

// Message to increase the counter and record the sender.
type Increment struct {
	_           tlb.Magic `tlb:"#00000001"` //nolint:revive // opcode magic
	IncrementBy uint32    `tlb:"## 32"`
}

func (Increment) OpCode() uint32 { return OpcodeIncrement }

// Message to top up the contract balance.
type Deposit struct {
	_ tlb.Magic `tlb:"#00000002"` //nolint:revive // opcode magic
}

func (Deposit) OpCode() uint32 { return OpcodeDeposit }

// Message asking the contract to send Amount back to the owner.
type Withdraw struct {
	_      tlb.Magic `tlb:"#00000003"` //nolint:revive // opcode magic
	Amount tlb.Coins `tlb:"."`
}

func (Withdraw) OpCode() uint32 { return OpcodeWithdraw }

// Data is the decoded result of the storage getter.
type Data struct {
	Number       uint32
	RecentSender *address.Address
	OwnerAddress *address.Address
}
