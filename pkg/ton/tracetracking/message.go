package tracetracking

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

// MsgStatus represents the status of a message in the TON blockchain.
//   - Received: The message has been received and has outgoing messages, all in
//     Sent state.
//   - Cascading: The message has been received and has outgoing messages, some
//     in Received state.
//   - Finalized: The message has been received and all outgoing messages have
//     been received.
type MsgStatus int

const (
	NotFound MsgStatus = iota - 1
	Received
	Cascading
	Finalized
)

func (s MsgStatus) String() string {
	switch s {
	case NotFound:
		return "NotFound"
	case Received:
		return "Received"
	case Cascading:
		return "Cascading"
	case Finalized:
		return "Finalized"
	default:
		return fmt.Sprintf("MsgStatus(%d)", int(s))
	}
}

// SentMessage is an internal message emitted by a contract that has not been
// matched with the transaction that received it yet.
type SentMessage struct {
	InternalMsg *tlb.InternalMessage
	Amount      *big.Int
	LamportTime uint64   // Lamport time of sender when emitting the message
	FwdFee      *big.Int // Paid by the sender of the message. It is 0 on external messages.
}

// NewSentMessage creates a SentMessage from an outgoing internal message.
func NewSentMessage(internalMessage *tlb.InternalMessage) SentMessage {
	return SentMessage{
		InternalMsg: internalMessage,
		Amount:      internalMessage.Amount.Nano(),
		LamportTime: internalMessage.CreatedLT,
		FwdFee:      internalMessage.FwdFee.Nano(),
	}
}

// ReceivedMessage is a message that has been processed by its recipient, i.e.
// one transaction. It holds the sending side (message, amount, fees paid to
// forward it) and the receiving side (phases, exit code, outgoing messages).
// Outgoing messages that have been received form the rest of the trace.
type ReceivedMessage struct {
	// Sent step

	InternalMsg *tlb.InternalMessage
	Amount      *big.Int
	ExternalMsg *tlb.ExternalMessageIn
	LamportTime uint64   // Lamport time of the receiving transaction
	ImportFee   *big.Int // Paid by the receiver when accepting an external message. 0 on internal messages.
	FwdFee      *big.Int // Paid by the sender. 0 on external messages.

	// Received step

	StorageFeeCharged                *big.Int           // Rent charged to the receiver in the storage phase
	MsgFeesChargedToSender           *big.Int           // Sum of forward fees of the outgoing messages
	TotalActionFees                  *big.Int           // Action phase fees. This + the fwdFee of each outgoing msg forms the total charged in the action phase.
	GasFee                           *big.Int           // Compute phase fees
	MagicFee                         *big.Int           // Part of the total fees not attributed to any phase
	EmittedBouncedMessage            bool               // The transaction bounced the inbound value back to the sender
	Deployed                         bool               // The transaction turned the account active
	Success                          bool               // Compute and action phases succeeded
	ExitCode                         tvm.ExitCode       // Exit code of the compute phase
	OutgoingInternalSentMessages     []*SentMessage     // Internal messages sent as a result of this message
	OutgoingInternalReceivedMessages []*ReceivedMessage // Internal messages that have been received by their recipients
	OutgoingExternalMessages         []OutgoingExternalMessages
}

// OutgoingExternalMessages represents external messages sent by a contract,
// typically used for events.
type OutgoingExternalMessages struct {
	CreatedAt uint32
	LT        uint64
	Body      *cell.Cell
}

// AsString attempts to parse the message body as a snake string.
func (e *OutgoingExternalMessages) AsString() (string, error) {
	str, err := e.Body.BeginParse().LoadStringSnake()
	if err != nil {
		return "", fmt.Errorf("failed to parse event body: %w", err)
	}
	return str, nil
}

// TotalActionPhaseFees calculates the total fees charged during the action phase,
// including the base action fees and forward fees for all outgoing messages.
func (m *ReceivedMessage) TotalActionPhaseFees() *big.Int {
	total := new(big.Int).Set(m.TotalActionFees)
	for _, sentMessage := range m.OutgoingInternalSentMessages {
		total.Add(total, sentMessage.FwdFee)
	}
	for _, receivedMessage := range m.OutgoingInternalReceivedMessages {
		total.Add(total, receivedMessage.FwdFee)
	}
	return total
}

// Sum calculates the total of multiple big.Int values.
func Sum(values ...*big.Int) *big.Int {
	total := big.NewInt(0)
	for _, v := range values {
		total.Add(total, v)
	}
	return total
}

// TotalTransactionExecutionFee is the complete execution cost of processing
// the message, excluding the storage fee.
func (m *ReceivedMessage) TotalTransactionExecutionFee() *big.Int {
	return Sum(
		m.ImportFee,              // For external messages
		m.GasFee,                 // Compute phase
		m.TotalActionPhaseFees(), // Action phase
		m.MagicFee,
	)
}

// Status returns the current status of the message based on its outgoing messages.
func (m *ReceivedMessage) Status() MsgStatus {
	if len(m.OutgoingInternalSentMessages) == 0 {
		return Finalized
	}
	if len(m.OutgoingInternalReceivedMessages) != 0 {
		return Cascading
	}
	return Received
}

// NetCreditResult is the amount received minus the total amount sent in
// outgoing messages.
func (m *ReceivedMessage) NetCreditResult() *big.Int {
	return big.NewInt(0).Sub(m.Amount, m.OutgoingAmount())
}

// OutgoingAmount is the total value carried by all outgoing messages, received
// or not.
func (m *ReceivedMessage) OutgoingAmount() *big.Int {
	base := big.NewInt(0)
	for _, sentMessage := range m.OutgoingInternalSentMessages {
		base.Add(base, sentMessage.Amount)
	}
	for _, receivedMessage := range m.OutgoingInternalReceivedMessages {
		base.Add(base, receivedMessage.Amount)
	}
	return base
}

// NewReceivedMessage returns a ReceivedMessage with every fee initialized to zero.
func NewReceivedMessage() ReceivedMessage {
	return ReceivedMessage{
		Amount:                           big.NewInt(0),
		ImportFee:                        big.NewInt(0),
		FwdFee:                           big.NewInt(0),
		StorageFeeCharged:                big.NewInt(0),
		MsgFeesChargedToSender:           big.NewInt(0),
		TotalActionFees:                  big.NewInt(0),
		GasFee:                           big.NewInt(0),
		MagicFee:                         big.NewInt(0),
		OutgoingInternalSentMessages:     make([]*SentMessage, 0),
		OutgoingInternalReceivedMessages: make([]*ReceivedMessage, 0),
	}
}

// MapToReceivedMessage creates a ReceivedMessage from the transaction that
// processed a message. It extracts fees per phase, execution results, the
// bounce and deploy status, and the outgoing messages.
func MapToReceivedMessage(txOnReceived *tlb.Transaction) (ReceivedMessage, error) {
	res := NewReceivedMessage()
	if txOnReceived.IO.In == nil {
		return res, errors.New("transaction has no inbound message")
	}
	switch txOnReceived.IO.In.MsgType {
	case tlb.MsgTypeExternalIn:
		res.ExternalMsg = txOnReceived.IO.In.AsExternalIn()
		res.ImportFee = res.ExternalMsg.ImportFee.Nano()
	case tlb.MsgTypeExternalOut:
	case tlb.MsgTypeInternal:
		res.InternalMsg = txOnReceived.IO.In.AsInternal()
		res.Amount = res.InternalMsg.Amount.Nano()
		res.FwdFee = res.InternalMsg.FwdFee.Nano()
	}
	res.LamportTime = txOnReceived.LT
	res.Deployed = txOnReceived.OrigStatus != tlb.AccountStatusActive && txOnReceived.EndStatus == tlb.AccountStatusActive

	// tx.TotalFees covers every fee charged to the receiver except the forward
	// fees of the outgoing messages. Whatever is not attributed to a phase
	// below is kept in MagicFee.
	res.MagicFee = new(big.Int).Sub(txOnReceived.TotalFees.Coins.Nano(), res.ImportFee)

	if dsc, ok := txOnReceived.Description.(tlb.TransactionDescriptionOrdinary); ok {
		if dsc.BouncePhase != nil {
			if _, ok = dsc.BouncePhase.Phase.(tlb.BouncePhaseOk); ok {
				res.EmittedBouncedMessage = true
			}
		}
		computePhase, ok := dsc.ComputePhase.Phase.(tlb.ComputePhaseVM)
		if ok {
			res.Success = computePhase.Success
			res.ExitCode = tvm.ExitCode(computePhase.Details.ExitCode)
			res.GasFee = computePhase.GasFees.Nano()
			res.MagicFee.Sub(res.MagicFee, res.GasFee)
		}
		if dsc.StoragePhase != nil {
			res.StorageFeeCharged = dsc.StoragePhase.StorageFeesCollected.Nano()
			res.MagicFee.Sub(res.MagicFee, res.StorageFeeCharged)
		}
		if dsc.ActionPhase != nil {
			if !dsc.ActionPhase.Success {
				res.Success = false
			}
			if dsc.ActionPhase.TotalActionFees != nil {
				res.TotalActionFees = dsc.ActionPhase.TotalActionFees.Nano()
				res.MagicFee.Sub(res.MagicFee, res.TotalActionFees)
			}
		}
	}
	if txOnReceived.IO.Out == nil {
		return res, nil
	}
	outgoingMessages, err := txOnReceived.IO.Out.ToSlice()
	if err != nil {
		return res, fmt.Errorf("failed to get outgoing messages: %w", err)
	}
	if err = res.mapOutgoingMessages(outgoingMessages); err != nil {
		return res, err
	}
	return res, nil
}

func (m *ReceivedMessage) mapOutgoingMessages(outgoingMessages []tlb.Message) error {
	m.OutgoingInternalSentMessages = make([]*SentMessage, 0, len(outgoingMessages))
	for _, outgoingMessage := range outgoingMessages {
		switch outgoingMessage.MsgType {
		case tlb.MsgTypeInternal:
			m.AppendSentMessage(outgoingMessage.AsInternal())
		case tlb.MsgTypeExternalOut:
			m.AppendEvent(outgoingMessage.AsExternalOut())
		case tlb.MsgTypeExternalIn:
			return errors.New("outgoing messages cannot be external in messages")
		}
	}
	return nil
}

// AppendEvent adds an external out message to the list of outgoing external messages.
func (m *ReceivedMessage) AppendEvent(outMsg *tlb.ExternalMessageOut) {
	e := OutgoingExternalMessages{outMsg.CreatedAt, outMsg.CreatedLT, outMsg.Body}
	m.OutgoingExternalMessages = append(m.OutgoingExternalMessages, e)
}

// AppendSentMessage adds an outgoing internal message to the list of sent
// messages and accounts its forward fee to the sender.
func (m *ReceivedMessage) AppendSentMessage(outgoingInternalMessage *tlb.InternalMessage) {
	messageSent := NewSentMessage(outgoingInternalMessage)
	m.OutgoingInternalSentMessages = append(m.OutgoingInternalSentMessages, &messageSent)
	m.MsgFeesChargedToSender.Add(m.MsgFeesChargedToSender, outgoingInternalMessage.FwdFee.Nano())
}

// WaitForOutgoingMessagesToBeReceived blocks until every outgoing message has
// been received by its recipient, moving it from the sent to the received list.
// It subscribes to the transactions of each recipient and matches them with
// the sent messages.
func (m *ReceivedMessage) WaitForOutgoingMessagesToBeReceived(ctx context.Context, c ton.APIClientWrapped) error {
	for len(m.OutgoingInternalSentMessages) != 0 {
		sentMessage := m.OutgoingInternalSentMessages[0]
		m.OutgoingInternalSentMessages = m.OutgoingInternalSentMessages[1:]

		subCtx, cancel := context.WithCancel(ctx)
		transactionsReceived := make(chan *tlb.Transaction)
		go c.SubscribeOnTransactions(subCtx, sentMessage.InternalMsg.DstAddr, m.LamportTime, transactionsReceived)

		receivedMessage, err := waitForMatch(subCtx, sentMessage, transactionsReceived)
		cancel()
		if err != nil {
			return err
		}
		m.OutgoingInternalReceivedMessages = append(m.OutgoingInternalReceivedMessages, receivedMessage)
	}

	return nil
}

func waitForMatch(ctx context.Context, sentMessage *SentMessage, transactions <-chan *tlb.Transaction) (*ReceivedMessage, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("stopped waiting for %s: %w", sentMessage.Dump(), ctx.Err())
		case rTX, ok := <-transactions:
			if !ok {
				return nil, fmt.Errorf("subscription closed before %s was received", sentMessage.Dump())
			}
			if rTX.IO.In == nil || rTX.IO.In.MsgType != tlb.MsgTypeInternal {
				continue
			}
			receivedMessage, err := sentMessage.MapToReceivedMessageIfMatches(rTX)
			if err != nil {
				return nil, fmt.Errorf("failed to process incoming message: %w", err)
			}
			if receivedMessage != nil {
				return receivedMessage, nil
			}
		}
	}
}

// MapToReceivedMessageIfMatches returns the ReceivedMessage for rTX when it is
// the transaction that received this sent message, nil otherwise.
func (m SentMessage) MapToReceivedMessageIfMatches(rTX *tlb.Transaction) (*ReceivedMessage, error) {
	if rTX.IO.In == nil || rTX.IO.In.MsgType != tlb.MsgTypeInternal {
		return nil, fmt.Errorf("transaction is not internal: %s", rTX.Dump())
	}
	if !m.MatchesReceived(rTX.IO.In.AsInternal()) {
		return nil, nil
	}
	receivedMessage, err := MapToReceivedMessage(rTX)
	if err != nil {
		return nil, fmt.Errorf("failed to parse sent message: %w", err)
	}
	return &receivedMessage, nil
}

// MatchesReceived compares source, destination and creation LT of an incoming
// message with this sent message.
func (m SentMessage) MatchesReceived(incomingMessage *tlb.InternalMessage) bool {
	sentMessage := m.InternalMsg
	return incomingMessage.SrcAddr.Equals(sentMessage.SenderAddr()) &&
		incomingMessage.DstAddr.Equals(sentMessage.DestAddr()) &&
		incomingMessage.CreatedLT == sentMessage.CreatedLT
}

// WaitForTrace waits for the complete execution trace of a message: every
// outgoing message and, recursively, their outgoing messages.
func (m *ReceivedMessage) WaitForTrace(ctx context.Context, c ton.APIClientWrapped) error {
	if m.Status() == Finalized {
		return nil
	}

	pending := []*ReceivedMessage{m}
	for len(pending) != 0 {
		cascadingMessage := pending[0]
		pending = pending[1:]
		err := cascadingMessage.WaitForOutgoingMessagesToBeReceived(ctx, c)
		if err != nil {
			return fmt.Errorf("failed to wait for outgoing messages: %w", err)
		}
		pending = append(pending, cascadingMessage.OutgoingInternalReceivedMessages...)
	}
	return nil
}

// OutcomeExitCode returns the first non-success exit code found in this message
// or any of its outgoing internal messages, depth first.
func (m *ReceivedMessage) OutcomeExitCode() tvm.ExitCode {
	if m == nil {
		return tvm.ExitCodeSuccess
	}

	stack := []*ReceivedMessage{m}

	for len(stack) > 0 {
		n := len(stack) - 1
		curr := stack[n]
		stack = stack[:n]

		if !curr.Success {
			return curr.ExitCode
		}

		for i := len(curr.OutgoingInternalReceivedMessages) - 1; i >= 0; i-- {
			stack = append(stack, curr.OutgoingInternalReceivedMessages[i])
		}
	}

	return tvm.ExitCodeSuccess
}

// TraceSucceeded recursively checks that this message and all the received
// outgoing messages succeeded.
func (m *ReceivedMessage) TraceSucceeded() bool {
	if !m.Success {
		return false
	}
	for _, msg := range m.OutgoingInternalReceivedMessages {
		if !msg.TraceSucceeded() {
			return false
		}
	}
	return true
}
