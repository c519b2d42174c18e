package maincontract

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/smartcontractkit/chainlink-deployments-framework/operations"

	"github.com/smartcontractkit/ton-main-contract/ops"
	"github.com/smartcontractkit/ton-main-contract/pkg/bindings/maincontract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

type IncrementInput struct {
	Address string
	By      uint32
	Value   string
}

type DepositInput struct {
	Address string
	Value   string
}

type WithdrawInput struct {
	Address string
	Amount  string
	Value   string
}

// CallOutput is the state of the contract after the call.
type CallOutput struct {
	Number  uint32
	Balance string
}

var IncrementOp = operations.NewOperation(
	"increment-main-contract-op",
	semver.MustParse("0.1.0"),
	"Increments the main contract counter",
	increment,
)

var DepositOp = operations.NewOperation(
	"deposit-main-contract-op",
	semver.MustParse("0.1.0"),
	"Deposits TON into the main contract",
	deposit,
)

var WithdrawOp = operations.NewOperation(
	"withdraw-main-contract-op",
	semver.MustParse("0.1.0"),
	"Withdraws TON from the main contract to its owner",
	withdraw,
)

func open(deps ops.TonDeps, addr string) (*maincontract.MainContract, error) {
	a, err := address.ParseAddr(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid contract address: %w", err)
	}
	return maincontract.NewFromAddress(a).Open(deps.Opener), nil
}

func parseTON(name, v string) (tlb.Coins, error) {
	coins, err := tlb.FromTON(v)
	if err != nil {
		return tlb.Coins{}, fmt.Errorf("invalid %s: %w", name, err)
	}
	return coins, nil
}

// finish checks that the message reached the contract successfully and reads
// the resulting state.
func finish(b operations.Bundle, c *maincontract.MainContract, action string, msg *tracetracking.ReceivedMessage) (ops.OpTxResult[CallOutput], error) {
	output := ops.OpTxResult[CallOutput]{}
	tx := msg.FindTransaction(tracetracking.TransactionFilter{To: c.Address})
	if tx == nil || !tx.Success {
		return output, fmt.Errorf("%s failed:\n%s", action, msg.Dump())
	}
	data, err := c.GetData(b.GetContext())
	if err != nil {
		return output, err
	}
	balance, err := c.GetBalance(b.GetContext())
	if err != nil {
		return output, err
	}
	b.Logger.Infow(action+" done", "address", c.Address.String(), "number", data.Number, "balance", balance.String())
	output.Objects.Number = data.Number
	output.Objects.Balance = balance.String()
	return output, nil
}

func increment(b operations.Bundle, deps ops.TonDeps, in ops.OpTxInput[IncrementInput]) (ops.OpTxResult[CallOutput], error) {
	c, err := open(deps, in.Input.Address)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	value, err := parseTON("value", in.Input.Value)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	msg, err := c.SendIncrement(b.GetContext(), deps.Sender, value, in.Input.By)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	return finish(b, c, "Increment", msg)
}

func deposit(b operations.Bundle, deps ops.TonDeps, in ops.OpTxInput[DepositInput]) (ops.OpTxResult[CallOutput], error) {
	c, err := open(deps, in.Input.Address)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	value, err := parseTON("value", in.Input.Value)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	msg, err := c.SendDeposit(b.GetContext(), deps.Sender, value)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	return finish(b, c, "Deposit", msg)
}

func withdraw(b operations.Bundle, deps ops.TonDeps, in ops.OpTxInput[WithdrawInput]) (ops.OpTxResult[CallOutput], error) {
	c, err := open(deps, in.Input.Address)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	value, err := parseTON("value", in.Input.Value)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	amount, err := parseTON("amount", in.Input.Amount)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	msg, err := c.SendWithdrawalRequest(b.GetContext(), deps.Sender, value, amount)
	if err != nil {
		return ops.OpTxResult[CallOutput]{}, err
	}
	return finish(b, c, "Withdraw", msg)
}
