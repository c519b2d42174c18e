package sandbox

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

// Executor emulates the code of a contract. Contracts are bound to an
// executor by code hash with Blockchain.RegisterCode.
type Executor interface {
	// Receive handles an inbound internal message. Returning an *ExitError
	// fails the compute phase with its exit code, any other error fails it
	// with tvm.ExitCodeUnknownError. Data and outgoing messages are only
	// committed when Receive returns nil.
	Receive(ctx *ReceiveContext) error
	// Get runs a get method and returns the result stack, ints as *big.Int
	// and slices as *cell.Slice.
	Get(ctx GetContext, method string, params ...any) ([]any, error)
}

// ReceiveContext is what a contract sees while handling an internal message.
type ReceiveContext struct {
	Self    *address.Address
	Balance *big.Int // includes the inbound value
	Msg     *tlb.InternalMessage
	Now     uint32

	data *cell.Cell
	out  []OutMessage
}

// OutMessage is an internal message queued by a contract with its send mode.
type OutMessage struct {
	Msg  *tlb.InternalMessage
	Mode uint8
}

func (c *ReceiveContext) Data() *cell.Cell {
	return c.data
}

func (c *ReceiveContext) SetData(data *cell.Cell) {
	c.data = data
}

// Send queues an outgoing internal message. Source address, LT and fees are
// filled in by the action phase.
func (c *ReceiveContext) Send(msg *tlb.InternalMessage, mode uint8) {
	c.out = append(c.out, OutMessage{Msg: msg, Mode: mode})
}

// Body returns a parser over the inbound message body, empty when the message
// has no body.
func (c *ReceiveContext) Body() *cell.Slice {
	if c.Msg.Body == nil {
		return cell.BeginCell().EndCell().BeginParse()
	}
	return c.Msg.Body.BeginParse()
}

// GetContext is what a contract sees while running a get method.
type GetContext struct {
	Self    *address.Address
	Balance *big.Int
	Data    *cell.Cell
	Now     uint32
}

// ExitError aborts the compute phase with a TVM exit code.
type ExitError struct {
	Code tvm.ExitCode
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit code %d: %s", e.Code, e.Code.Describe())
}

// Throw returns an *ExitError for code, like the throw primitive of the TVM.
func Throw(code tvm.ExitCode) error {
	return &ExitError{Code: code}
}

// ThrowUnless returns an *ExitError for code when cond is false.
func ThrowUnless(code tvm.ExitCode, cond bool) error {
	if cond {
		return nil
	}
	return Throw(code)
}

func exitCodeOf(err error) tvm.ExitCode {
	if err == nil {
		return tvm.ExitCodeSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return tvm.ExitCodeUnknownError
}

// GetMethodError is returned when a get method exits with a non-zero code.
type GetMethodError struct {
	Method   string
	ExitCode tvm.ExitCode
}

func (e *GetMethodError) Error() string {
	return fmt.Sprintf("get method %s failed with exit code %d: %s", e.Method, e.ExitCode, e.ExitCode.Describe())
}

var (
	// ErrAccountNotActive is returned when running a get method on an account
	// that has not been deployed.
	ErrAccountNotActive = errors.New("account is not active")
	// ErrUnknownCode is returned when a StateInit carries code that has no
	// registered executor.
	ErrUnknownCode = errors.New("no executor registered for code")
	// ErrTooManyTransactions stops traces that never settle.
	ErrTooManyTransactions = errors.New("too many transactions in trace")
)
