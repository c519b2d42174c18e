package ops

import (
	"errors"
	"fmt"

	"github.com/xssnick/tonutils-go/tvm/cell"

	cldf_ton "github.com/smartcontractkit/chainlink-deployments-framework/chain/ton"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/wrappers"
)

// TonDeps is what operations need to reach a chain: an opener for contracts,
// the wallet that pays for messages and the code to deploy.
type TonDeps struct {
	Opener    wrappers.Opener
	Sender    wrappers.Sender
	Code      *cell.Cell
	Workchain int32
}

type OpTxInput[I any] struct {
	Input I
}

type OpTxResult[O any] struct {
	Objects O
}

// DepsFromChain wires a deployment framework chain to the contract wrappers.
// The code is loaded from the compiled artifact at codePath.
func DepsFromChain(chain cldf_ton.Chain, codePath string) (TonDeps, error) {
	if chain.Client == nil || chain.Wallet == nil {
		return TonDeps{}, errors.New("chain has no client or wallet")
	}
	code, err := contract.ParseCompiledContract(codePath)
	if err != nil {
		return TonDeps{}, fmt.Errorf("failed to load contract code: %w", err)
	}
	signed := tracetracking.NewSignedAPIClient(chain.Client, *chain.Wallet)
	return TonDeps{
		Opener:    wrappers.NewNetworkOpener(chain.Client),
		Sender:    wrappers.NewWalletSender(&signed),
		Code:      code,
		Workchain: int32(chain.WalletAddress.Workchain()),
	}, nil
}
