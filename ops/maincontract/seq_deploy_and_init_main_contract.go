package maincontract

import (
	"github.com/Masterminds/semver/v3"

	"github.com/smartcontractkit/chainlink-deployments-framework/operations"

	"github.com/smartcontractkit/ton-main-contract/ops"
)

type DeployAndInitInput struct {
	Deploy DeployInput
	// Counter increment applied right after deployment, skipped when 0
	Increment uint32
	// Additional deposit in TON, skipped when empty
	Deposit string
}

type DeployAndInitOutput struct {
	Address  string
	Deployed bool
	Number   uint32
	Balance  string
}

var DeployAndInitMainContractSequence = operations.NewSequence(
	"ton-deploy-main-contract-seq",
	semver.MustParse("0.1.0"),
	"Deploys a main contract and sets its initial counter and balance",
	deployAndInitSequence,
)

func deployAndInitSequence(b operations.Bundle, deps ops.TonDeps, in ops.OpTxInput[DeployAndInitInput]) (ops.OpTxResult[DeployAndInitOutput], error) {
	output := ops.OpTxResult[DeployAndInitOutput]{}

	deployed, err := operations.ExecuteOperation(b, DeployMainContractOp, deps, ops.OpTxInput[DeployInput]{Input: in.Input.Deploy})
	if err != nil {
		return output, err
	}
	output.Objects.Address = deployed.Output.Objects.Address
	output.Objects.Deployed = deployed.Output.Objects.Deployed

	if in.Input.Increment == 0 && in.Input.Deposit == "" {
		// an existing contract may have moved past its initial config
		c, err := open(deps, output.Objects.Address)
		if err != nil {
			return output, err
		}
		data, err := c.GetData(b.GetContext())
		if err != nil {
			return output, err
		}
		balance, err := c.GetBalance(b.GetContext())
		if err != nil {
			return output, err
		}
		output.Objects.Number = data.Number
		output.Objects.Balance = balance.String()
		return output, nil
	}

	if in.Input.Increment != 0 {
		report, err := operations.ExecuteOperation(b, IncrementOp, deps, ops.OpTxInput[IncrementInput]{Input: IncrementInput{
			Address: output.Objects.Address,
			By:      in.Input.Increment,
			Value:   in.Input.Deploy.Value,
		}})
		if err != nil {
			return output, err
		}
		output.Objects.Number = report.Output.Objects.Number
		output.Objects.Balance = report.Output.Objects.Balance
	}

	if in.Input.Deposit != "" {
		report, err := operations.ExecuteOperation(b, DepositOp, deps, ops.OpTxInput[DepositInput]{Input: DepositInput{
			Address: output.Objects.Address,
			Value:   in.Input.Deposit,
		}})
		if err != nil {
			return output, err
		}
		output.Objects.Number = report.Output.Objects.Number
		output.Objects.Balance = report.Output.Objects.Balance
	}
	return output, nil
}
