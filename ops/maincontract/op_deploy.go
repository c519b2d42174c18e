package maincontract

import (
	"errors"
	"fmt"

	"github.com/Masterminds/semver/v3"
	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"

	"github.com/smartcontractkit/chainlink-deployments-framework/operations"

	"github.com/smartcontractkit/ton-main-contract/ops"
	"github.com/smartcontractkit/ton-main-contract/pkg/bindings/maincontract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
)

type DeployInput struct {
	Number uint32
	// Owner defaults to the deployer
	Owner string
	// Value in TON sent with the deploying deposit
	Value string
}

type DeployOutput struct {
	Address string
	// false when the contract was already active
	Deployed bool
}

var DeployMainContractOp = operations.NewOperation(
	"deploy-main-contract-op",
	semver.MustParse("0.1.0"),
	"Deploys a main contract instance with a deposit",
	deployMainContract,
)

func deployMainContract(b operations.Bundle, deps ops.TonDeps, in ops.OpTxInput[DeployInput]) (ops.OpTxResult[DeployOutput], error) {
	output := ops.OpTxResult[DeployOutput]{}
	if deps.Code == nil {
		return output, errors.New("missing contract code")
	}

	owner := deps.Sender.Address()
	if in.Input.Owner != "" {
		var err error
		if owner, err = address.ParseAddr(in.Input.Owner); err != nil {
			return output, fmt.Errorf("invalid owner: %w", err)
		}
	}
	value, err := tlb.FromTON(in.Input.Value)
	if err != nil {
		return output, fmt.Errorf("invalid value: %w", err)
	}

	c, err := maincontract.CreateFromConfig(maincontract.Config{
		Number:       in.Input.Number,
		Address:      deps.Sender.Address(),
		OwnerAddress: owner,
	}, deps.Code, deps.Workchain)
	if err != nil {
		return output, err
	}
	c = c.Open(deps.Opener)
	output.Objects.Address = c.Address.String()

	state, err := c.State(b.GetContext())
	if err != nil {
		return output, err
	}
	if state.Active() {
		b.Logger.Infow("Main contract already deployed", "address", output.Objects.Address)
		return output, nil
	}

	msg, err := c.SendDeposit(b.GetContext(), deps.Sender, value)
	if err != nil {
		return output, fmt.Errorf("failed to deploy main contract: %w", err)
	}
	if !msg.HasTransaction(tracetracking.TransactionFilter{To: c.Address, Deploy: tracetracking.Ptr(true), Success: tracetracking.Ptr(true)}) {
		return output, fmt.Errorf("main contract %s was not deployed:\n%s", output.Objects.Address, msg.Dump())
	}
	b.Logger.Infow("Main contract deployed", "address", output.Objects.Address)
	output.Objects.Deployed = true
	return output, nil
}
