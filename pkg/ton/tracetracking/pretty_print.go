package tracetracking

import (
	"fmt"
	"strings"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

func (m *SentMessage) Dump() string {
	if m.InternalMsg != nil {
		return describeInternalMsg(m.InternalMsg, nil)
	}
	return "event?"
}

// Dump outputs an indented representation of the trace tree with exit codes,
// bounce tags and sender/receiver of each message.
func (m *ReceivedMessage) Dump() string {
	return strings.Join(dumpRec(m), "\n")
}

func dumpRec(m *ReceivedMessage) []string {
	output := make([]string, 1)
	var from string
	switch {
	case m.InternalMsg != nil:
		output[0] = describeInternalMsg(m.InternalMsg, &m.ExitCode)
		from = addrString(m.InternalMsg.DstAddr)
	case m.ExternalMsg != nil:
		output[0] = describeExternalInMsg(m.ExternalMsg, &m.ExitCode)
		from = addrString(m.ExternalMsg.DstAddr)
	}
	for _, received := range m.OutgoingInternalReceivedMessages {
		for j, line := range dumpRec(received) {
			if j == 0 {
				output = append(output, "└ "+line)
			} else {
				output = append(output, "│ "+line)
			}
		}
	}
	for _, sentMessage := range m.OutgoingInternalSentMessages {
		output = append(output, "└ "+sentMessage.Dump())
	}
	for _, externalMessage := range m.OutgoingExternalMessages {
		output = append(output, "└ "+describeExternalOutMsg(from, externalMessage))
	}
	return output
}

func addrString(addr *address.Address) string {
	if addr == nil || addr.IsAddrNone() {
		return "external"
	}
	return addr.String()
}

func describeExternalInMsg(msg *tlb.ExternalMessageIn, exitCode *tvm.ExitCode) string {
	description := describeBody(msg.Body) + ", " + describeExitCode(exitCode)
	return fmt.Sprintf("%s -- (%s) --> %s", addrString(msg.SrcAddr), description, addrString(msg.DstAddr))
}

func describeExternalOutMsg(src string, msg OutgoingExternalMessages) string {
	return fmt.Sprintf("%s emit: (%s)", src, describeBody(msg.Body))
}

func describeInternalMsg(msg *tlb.InternalMessage, exitCode *tvm.ExitCode) string {
	description := describeBody(msg.Body)
	description += ", amount: " + msg.Amount.String()
	if msg.Bounced {
		description += ", bounce"
	}
	description += ", " + describeExitCode(exitCode)
	return fmt.Sprintf("%s -- (%s) --> %s", addrString(msg.SrcAddr), description, addrString(msg.DstAddr))
}

func describeExitCode(exitCode *tvm.ExitCode) string {
	if exitCode == nil {
		return "pending"
	}
	if *exitCode == tvm.ExitCodeSuccess {
		return "exit code 0"
	}
	return fmt.Sprintf("exit code: %d (%s)", *exitCode, exitCode.Describe())
}

func describeBody(body *cell.Cell) string {
	if body == nil {
		return "empty"
	}
	slice := body.BeginParse()
	if slice.BitsLeft() == 0 {
		return "empty"
	}
	if slice.BitsLeft() >= 32 {
		opcode, err := slice.LoadUInt(32)
		if err == nil {
			return fmt.Sprintf("opcode: 0x%x", opcode)
		}
	}
	return "body: " + body.DumpBits()
}
