package tracetracking

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

// TransactionFilter selects transactions of a trace. Nil fields match anything.
type TransactionFilter struct {
	From     *address.Address
	To       *address.Address
	Value    *big.Int
	Success  *bool
	ExitCode *tvm.ExitCode
	Deploy   *bool
	Bounced  *bool // the inbound message is a bounce
	Op       *uint32
}

// Ptr is a helper for building filters inline.
func Ptr[T any](v T) *T {
	return &v
}

// Sender returns the source of the inbound message, nil for external messages.
func (m *ReceivedMessage) Sender() *address.Address {
	if m.InternalMsg != nil {
		return m.InternalMsg.SrcAddr
	}
	return nil
}

// Recipient returns the account that executed the transaction.
func (m *ReceivedMessage) Recipient() *address.Address {
	switch {
	case m.InternalMsg != nil:
		return m.InternalMsg.DstAddr
	case m.ExternalMsg != nil:
		return m.ExternalMsg.DstAddr
	}
	return nil
}

// Op returns the 32-bit opcode of the inbound message body, if any.
func (m *ReceivedMessage) Op() (uint32, bool) {
	var slice = m.inboundBody()
	if slice == nil || slice.BitsLeft() < 32 {
		return 0, false
	}
	op, err := slice.LoadUInt(32)
	if err != nil {
		return 0, false
	}
	return uint32(op), true //nolint:gosec // loaded from 32 bits
}

func (m *ReceivedMessage) inboundBody() *cell.Slice {
	switch {
	case m.InternalMsg != nil && m.InternalMsg.Body != nil:
		return m.InternalMsg.Body.BeginParse()
	case m.ExternalMsg != nil && m.ExternalMsg.Body != nil:
		return m.ExternalMsg.Body.BeginParse()
	}
	return nil
}

// Transactions flattens the trace in the order the messages were processed:
// every level of the tree before the next one.
func (m *ReceivedMessage) Transactions() []*ReceivedMessage {
	if m == nil {
		return nil
	}
	var result []*ReceivedMessage
	queue := []*ReceivedMessage{m}
	for len(queue) > 0 {
		curr := queue[0]
		queue = queue[1:]
		result = append(result, curr)
		queue = append(queue, curr.OutgoingInternalReceivedMessages...)
	}
	return result
}

// Matches reports whether the transaction satisfies every set field of the filter.
func (f TransactionFilter) Matches(m *ReceivedMessage) bool {
	if f.From != nil && (m.Sender() == nil || !m.Sender().Equals(f.From)) {
		return false
	}
	if f.To != nil && (m.Recipient() == nil || !m.Recipient().Equals(f.To)) {
		return false
	}
	if f.Value != nil && m.Amount.Cmp(f.Value) != 0 {
		return false
	}
	if f.Success != nil && m.Success != *f.Success {
		return false
	}
	if f.ExitCode != nil && m.ExitCode != *f.ExitCode {
		return false
	}
	if f.Deploy != nil && m.Deployed != *f.Deploy {
		return false
	}
	if f.Bounced != nil && (m.InternalMsg != nil && m.InternalMsg.Bounced) != *f.Bounced {
		return false
	}
	if f.Op != nil {
		op, ok := m.Op()
		if !ok || op != *f.Op {
			return false
		}
	}
	return true
}

// FindTransaction returns the first transaction of the trace matching the
// filter, nil if none does.
func (m *ReceivedMessage) FindTransaction(f TransactionFilter) *ReceivedMessage {
	for _, tx := range m.Transactions() {
		if f.Matches(tx) {
			return tx
		}
	}
	return nil
}

// HasTransaction reports whether any transaction of the trace matches the filter.
func (m *ReceivedMessage) HasTransaction(f TransactionFilter) bool {
	return m.FindTransaction(f) != nil
}

func (f TransactionFilter) String() string {
	var parts []string
	if f.From != nil {
		parts = append(parts, "from: "+f.From.String())
	}
	if f.To != nil {
		parts = append(parts, "to: "+f.To.String())
	}
	if f.Value != nil {
		parts = append(parts, "value: "+f.Value.String())
	}
	if f.Success != nil {
		parts = append(parts, fmt.Sprintf("success: %t", *f.Success))
	}
	if f.ExitCode != nil {
		parts = append(parts, fmt.Sprintf("exitCode: %d", *f.ExitCode))
	}
	if f.Deploy != nil {
		parts = append(parts, fmt.Sprintf("deploy: %t", *f.Deploy))
	}
	if f.Bounced != nil {
		parts = append(parts, fmt.Sprintf("bounced: %t", *f.Bounced))
	}
	if f.Op != nil {
		parts = append(parts, fmt.Sprintf("op: 0x%x", *f.Op))
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
