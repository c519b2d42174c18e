package tvm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExitCodeDescribe(t *testing.T) {
	testCases := []struct {
		code     ExitCode
		expected string
	}{
		{ExitCodeSuccess, "Success"},
		{ExitCodeCellUnderflow, "Cell underflow"},
		{ExitCodeUnauthorizedWithdrawal, "Unauthorized withdrawal: sender is not the owner"},
		{ExitCodeInsufficientBalance, "Insufficient balance for withdrawal"},
		{ExitCodeUnknownOperation, "Unknown operation"},
		{ExitCode(4242), "Non-standard exit code: 4242"},
	}

	for _, tc := range testCases {
		t.Run(tc.expected, func(t *testing.T) {
			require.Equal(t, tc.expected, tc.code.Describe())
		})
	}
}

func TestExitCodeIsSuccess(t *testing.T) {
	require.True(t, ExitCodeSuccess.IsSuccess())
	require.True(t, ExitCodeSuccessVariant.IsSuccess())
	require.False(t, ExitCodeCellUnderflow.IsSuccess())
	require.False(t, ExitCodeUnauthorizedWithdrawal.IsSuccess())
}
