package wrappers

import (
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/ton"
)

func BigIntFrom(res *ton.ExecutionResult, err error) (*big.Int, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to run get method: %w", err)
	}

	val, err := res.Int(0)
	if err != nil {
		return nil, fmt.Errorf("failed to extract value: %w", err)
	}

	return val, nil
}

func Uint64From(res *ton.ExecutionResult, err error) (uint64, error) {
	val, err := BigIntFrom(res, err)
	if err != nil {
		return 0, err
	}
	if val.Sign() < 0 || !val.IsUint64() {
		return 0, fmt.Errorf("value %s does not fit in uint64", val.String())
	}
	return val.Uint64(), nil
}

func Uint32From(res *ton.ExecutionResult, err error) (uint32, error) {
	val, err := Uint64From(res, err)
	if err != nil {
		return 0, err
	}
	if val > uint64(^uint32(0)) {
		return 0, fmt.Errorf("value %d does not fit in uint32", val)
	}
	return uint32(val), nil
}

// AddressFrom reads a MsgAddress slice returned at index 0.
func AddressFrom(res *ton.ExecutionResult, err error) (*address.Address, error) {
	if err != nil {
		return nil, fmt.Errorf("failed to run get method: %w", err)
	}
	return AddressAt(res, 0)
}

// AddressAt reads a MsgAddress slice at the given index of the result stack.
func AddressAt(res *ton.ExecutionResult, index uint) (*address.Address, error) {
	slice, err := res.Slice(index)
	if err != nil {
		return nil, fmt.Errorf("failed to extract slice %d: %w", index, err)
	}
	addr, err := slice.LoadAddr()
	if err != nil {
		return nil, fmt.Errorf("failed to load address %d: %w", index, err)
	}
	return addr, nil
}
