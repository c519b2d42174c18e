package contract

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"
)

// compiledContract is the artifact written by the FunC/Tolk compiler wrappers
// (blueprint, `func-js`): `build/<name>.compiled.json`.
type compiledContract struct {
	Hash       string `json:"hash"`
	HashBase64 string `json:"hashBase64"`
	Hex        string `json:"hex"`
}

// packagedContract is the Tact `.pkg` artifact.
type packagedContract struct {
	Name string `json:"name"`
	Code string `json:"code"`
}

// ParseCompiledContract loads the code cell of a compiled contract from disk.
// Supported formats are `*.compiled.json` (hex BOC) and `*.pkg` (base64 BOC).
func ParseCompiledContract(path string) (*cell.Cell, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("contract file not found: %s", path)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read compiled contract: %w", err)
	}

	switch {
	case strings.HasSuffix(path, ".compiled.json"):
		return ParseCompiledJSON(data)
	case filepath.Ext(path) == ".pkg":
		pkg := &packagedContract{}
		if err = json.Unmarshal(data, pkg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON: %w", err)
		}
		if pkg.Code == "" {
			return nil, errors.New("code field is empty in the package")
		}
		boc, err := base64.StdEncoding.DecodeString(pkg.Code)
		if err != nil {
			return nil, fmt.Errorf("failed to decode base64: %w", err)
		}
		return fromBOC(boc)
	default:
		return nil, fmt.Errorf("unsupported contract file format: %s", path)
	}
}

// ParseCompiledJSON parses the content of a `*.compiled.json` artifact.
// When the artifact carries a hash, it must match the parsed code cell.
func ParseCompiledJSON(data []byte) (*cell.Cell, error) {
	compiled := &compiledContract{}
	if err := json.Unmarshal(data, compiled); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}
	code, err := CodeFromHex(compiled.Hex)
	if err != nil {
		return nil, err
	}
	if compiled.Hash != "" && !strings.EqualFold(compiled.Hash, hex.EncodeToString(code.Hash())) {
		return nil, fmt.Errorf("code hash mismatch: artifact declares %s, cell hashes to %x", compiled.Hash, code.Hash())
	}
	return code, nil
}

// CodeFromHex restores a cell from its hex encoded BOC.
func CodeFromHex(bocHex string) (*cell.Cell, error) {
	if bocHex == "" {
		return nil, errors.New("hex field is empty")
	}
	boc, err := hex.DecodeString(bocHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode hex: %w", err)
	}
	return fromBOC(boc)
}

func fromBOC(boc []byte) (*cell.Cell, error) {
	c, err := cell.FromBOC(boc)
	if err != nil {
		return nil, fmt.Errorf("failed to parse BOC binary: %w", err)
	}
	return c, nil
}

// StateInitAddress computes the address a contract with the given StateInit
// will live at. Addresses on TON are deterministic: the same code and initial
// data always land on the same address.
func StateInitAddress(workchain int32, init *tlb.StateInit) (*address.Address, error) {
	if init == nil {
		return nil, errors.New("state init is nil")
	}
	stateInitCell, err := tlb.ToCell(init)
	if err != nil {
		return nil, fmt.Errorf("failed to build state init: %w", err)
	}
	return address.NewAddress(0, byte(workchain), stateInitCell.Hash()), nil
}
