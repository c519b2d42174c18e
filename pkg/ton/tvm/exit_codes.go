package tvm

import (
	"fmt"
)

// ExitCode is returned by the compute phase of a transaction. Values below 128
// are reserved by the TVM, values from 100 up are free for contracts to throw.
// Reference: https://docs.ton.org/v3/documentation/tvm/tvm-exit-codes
type ExitCode int32

const (
	/// TVM exit codes

	ExitCodeSuccess                                    ExitCode = 0   // Standard successful execution exit code.
	ExitCodeSuccessVariant                             ExitCode = 1   // Alternative successful execution exit code.
	ExitCodeStackUnderflow                             ExitCode = 2   // Stack underflow.
	ExitCodeStackOverflow                              ExitCode = 3   // Stack overflow.
	ExitCodeIntegerOverflow                            ExitCode = 4   // Integer overflow.
	ExitCodeIntegerOutOfExpectedRange                  ExitCode = 5   // Range check error.
	ExitCodeInvalidOpcode                              ExitCode = 6   // Invalid TVM opcode.
	ExitCodeTypeCheckError                             ExitCode = 7   // Type check error.
	ExitCodeCellOverflow                               ExitCode = 8   // Cell overflow.
	ExitCodeCellUnderflow                              ExitCode = 9   // Cell underflow, e.g. reading an opcode out of an empty body.
	ExitCodeDictionaryError                            ExitCode = 10  // Dictionary error.
	ExitCodeUnknownError                               ExitCode = 11  // Unknown error, may be thrown by user programs.
	ExitCodeFatalError                                 ExitCode = 12  // Fatal error.
	ExitCodeOutOfGasError                              ExitCode = 13  // Out of gas error.
	ExitCodeOutOfGasErrorVariant                       ExitCode = -14 // Same as 13. Negative, so that it cannot be faked.
	ExitCodeActionListIsInvalid                        ExitCode = 32  // Action list is invalid.
	ExitCodeActionIsInvalidOrNotSupported              ExitCode = 34  // Action is invalid or not supported.
	ExitCodeInvalidDestinationAddressInOutboundMessage ExitCode = 36  // Invalid destination address in outbound message.
	ExitCodeNotEnoughToncoin                           ExitCode = 37  // Not enough Toncoin to send an outbound message.

	/// Main contract exit codes

	ExitCodeUnauthorizedWithdrawal ExitCode = 101 // Withdrawal requested by someone other than the owner.
	ExitCodeInsufficientBalance    ExitCode = 102 // Withdrawal amount exceeds the contract balance.
	ExitCodeUnknownOperation       ExitCode = 777 // Opcode not handled by the contract.
)

// IsSuccess reports whether the compute phase finished without throwing.
func (c ExitCode) IsSuccess() bool {
	return c == ExitCodeSuccess || c == ExitCodeSuccessVariant
}

// Describe provides human-readable descriptions for exit codes.
func (c ExitCode) Describe() string {
	switch c {
	case ExitCodeSuccess, ExitCodeSuccessVariant:
		return "Success"
	case ExitCodeStackUnderflow:
		return "Stack underflow"
	case ExitCodeStackOverflow:
		return "Stack overflow"
	case ExitCodeIntegerOverflow:
		return "Integer overflow"
	case ExitCodeIntegerOutOfExpectedRange:
		return "Integer out of expected range"
	case ExitCodeInvalidOpcode:
		return "Invalid opcode"
	case ExitCodeTypeCheckError:
		return "Type check error"
	case ExitCodeCellOverflow:
		return "Cell overflow"
	case ExitCodeCellUnderflow:
		return "Cell underflow"
	case ExitCodeDictionaryError:
		return "Dictionary error"
	case ExitCodeUnknownError:
		return "'Unknown' error"
	case ExitCodeFatalError:
		return "Fatal error"
	case ExitCodeOutOfGasError, ExitCodeOutOfGasErrorVariant:
		return "Out of gas error"
	case ExitCodeActionListIsInvalid:
		return "Action list is invalid"
	case ExitCodeActionIsInvalidOrNotSupported:
		return "Action is invalid or not supported"
	case ExitCodeInvalidDestinationAddressInOutboundMessage:
		return "Invalid destination address in outbound message"
	case ExitCodeNotEnoughToncoin:
		return "Not enough Toncoin"
	case ExitCodeUnauthorizedWithdrawal:
		return "Unauthorized withdrawal: sender is not the owner"
	case ExitCodeInsufficientBalance:
		return "Insufficient balance for withdrawal"
	case ExitCodeUnknownOperation:
		return "Unknown operation"
	default:
		return fmt.Sprintf("Non-standard exit code: %d", c)
	}
}
