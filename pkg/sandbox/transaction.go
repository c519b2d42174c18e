package sandbox

import (
	"context"
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/xssnick/tonutils-go/address"
	"github.com/xssnick/tonutils-go/tlb"
	"github.com/xssnick/tonutils-go/ton/wallet"
	"github.com/xssnick/tonutils-go/tvm/cell"

	"github.com/smartcontractkit/ton-main-contract/pkg/ton/contract"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tracetracking"
	"github.com/smartcontractkit/ton-main-contract/pkg/ton/tvm"
)

const (
	sendModeIgnoreErrors        uint8 = wallet.IgnoreErrors
	sendModeCarryRemainingValue uint8 = wallet.CarryAllRemainingIncomingValue
	sendModeCarryAllBalance     uint8 = wallet.CarryAllRemainingBalance

	bounceOpcode    = 0xFFFFFFFF
	bouncedBodyBits = 256
)

// delivery is an internal message in flight and the transaction that sent it.
type delivery struct {
	msg    *tlb.InternalMessage
	parent *tracetracking.ReceivedMessage
	sent   *tracetracking.SentMessage
}

// runQueue delivers messages in the order they were emitted until the trace
// settles. Every delivered message is moved from the sent to the received
// list of the transaction that emitted it.
func (b *Blockchain) runQueue(ctx context.Context, queue []delivery) error {
	for processed := 0; len(queue) > 0; processed++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if processed >= b.maxTransactions {
			return fmt.Errorf("%w: limit is %d", ErrTooManyTransactions, b.maxTransactions)
		}
		next := queue[0]
		queue = queue[1:]

		tx, emitted, err := b.deliver(next.msg)
		if err != nil {
			return err
		}
		next.parent.OutgoingInternalSentMessages = removeSent(next.parent.OutgoingInternalSentMessages, next.sent)
		next.parent.OutgoingInternalReceivedMessages = append(next.parent.OutgoingInternalReceivedMessages, tx)
		queue = append(queue, emitted...)
	}
	return nil
}

func removeSent(sent []*tracetracking.SentMessage, target *tracetracking.SentMessage) []*tracetracking.SentMessage {
	for i, s := range sent {
		if s == target {
			return append(sent[:i], sent[i+1:]...)
		}
	}
	return sent
}

// resolveExecutor returns the executor that handles a message to acc and
// whether the message deploys acc. A nil executor skips the compute phase.
func (b *Blockchain) resolveExecutor(acc *account, msg *tlb.InternalMessage) (Executor, bool, error) {
	if acc.status == tlb.AccountStatusActive {
		return acc.executor, false, nil
	}
	if msg.StateInit == nil || msg.StateInit.Code == nil {
		return nil, false, nil
	}
	expected, err := contract.StateInitAddress(acc.addr.Workchain(), msg.StateInit)
	if err != nil {
		return nil, false, err
	}
	if !expected.Equals(acc.addr) {
		b.lggr.Warnw("StateInit does not match destination, ignoring it", "destination", acc.addr.String(), "expected", expected.String())
		return nil, false, nil
	}
	executor, ok := b.executors[hex.EncodeToString(msg.StateInit.Code.Hash())]
	if !ok {
		return nil, false, fmt.Errorf("%w: deploying %s with code hash %x", ErrUnknownCode, acc.addr.String(), msg.StateInit.Code.Hash())
	}
	return executor, true, nil
}

// deliver runs the transaction of the recipient of msg: credit, compute,
// action and, when something failed on a bounceable message, bounce.
func (b *Blockchain) deliver(msg *tlb.InternalMessage) (*tracetracking.ReceivedMessage, []delivery, error) {
	acc := b.getOrCreate(msg.DstAddr)
	executor, deploying, err := b.resolveExecutor(acc, msg)
	if err != nil {
		return nil, nil, err
	}

	tx := tracetracking.NewReceivedMessage()
	tx.InternalMsg = msg
	tx.Amount = msg.Amount.Nano()
	tx.FwdFee = msg.FwdFee.Nano()
	tx.LamportTime = b.nextLT()
	origStatus := acc.status

	// credit phase
	acc.balance.Add(acc.balance, tx.Amount)

	var emitted []delivery
	if executor != nil {
		emitted = b.compute(acc, &tx, executor, deploying)
	}

	if !tx.Success && msg.Bounce && !msg.Bounced {
		emitted = append(emitted, b.bounce(acc, &tx)...)
	}

	if acc.status == tlb.AccountStatusNonExist && acc.balance.Sign() > 0 {
		acc.status = tlb.AccountStatusUninit
	}
	tx.Deployed = origStatus != tlb.AccountStatusActive && acc.status == tlb.AccountStatusActive
	acc.lastLT = tx.LamportTime

	b.lggr.Debugw("Transaction",
		"lt", tx.LamportTime,
		"account", acc.addr.String(),
		"from", msg.SrcAddr.String(),
		"amount", msg.Amount.String(),
		"success", tx.Success,
		"exitCode", tx.ExitCode,
		"deployed", tx.Deployed,
		"bounced", tx.EmittedBouncedMessage,
	)
	return &tx, emitted, nil
}

func (b *Blockchain) compute(acc *account, tx *tracetracking.ReceivedMessage, executor Executor, deploying bool) []delivery {
	data := acc.data
	if deploying {
		data = tx.InternalMsg.StateInit.Data
	}

	gas := new(big.Int).Set(b.fees.ComputeFee)
	if acc.balance.Cmp(gas) < 0 {
		gas.Set(acc.balance)
		acc.balance.SetInt64(0)
		tx.GasFee = gas
		tx.ExitCode = tvm.ExitCodeOutOfGasErrorVariant
		return nil
	}

	rc := &ReceiveContext{
		Self:    acc.addr,
		Balance: new(big.Int).Set(acc.balance),
		Msg:     tx.InternalMsg,
		Now:     b.unixTime(),
		data:    data,
	}
	err := executor.Receive(rc)
	acc.balance.Sub(acc.balance, gas)
	tx.GasFee = gas
	tx.ExitCode = exitCodeOf(err)
	if err != nil {
		b.lggr.Debugw("Compute phase failed", "account", acc.addr.String(), "err", err)
		return nil
	}

	emitted, actionCode := b.action(acc, tx, rc.out)
	if actionCode != tvm.ExitCodeSuccess {
		tx.ExitCode = actionCode
		return nil
	}

	tx.Success = true
	acc.data = rc.data
	if deploying {
		acc.status = tlb.AccountStatusActive
		acc.code = tx.InternalMsg.StateInit.Code
		acc.executor = executor
	}
	return emitted
}

// action applies the outgoing messages of a successful compute phase. Either
// all of them are sent or none is, unless they carry the ignore errors flag.
func (b *Blockchain) action(acc *account, tx *tracetracking.ReceivedMessage, out []OutMessage) ([]delivery, tvm.ExitCode) {
	type prepared struct {
		msg   *tlb.InternalMessage
		value *big.Int
	}

	balance := new(big.Int).Set(acc.balance)
	remainingInbound := new(big.Int).Sub(tx.Amount, tx.GasFee)
	var ready []prepared
	for _, o := range out {
		if o.Msg.DstAddr == nil || o.Msg.DstAddr.IsAddrNone() {
			if o.Mode&sendModeIgnoreErrors != 0 {
				continue
			}
			return nil, tvm.ExitCodeInvalidDestinationAddressInOutboundMessage
		}

		value := o.Msg.Amount.Nano()
		switch {
		case o.Mode&sendModeCarryAllBalance != 0:
			value = new(big.Int).Set(balance)
		case o.Mode&sendModeCarryRemainingValue != 0:
			value = new(big.Int).Add(value, remainingInbound)
		}

		cost := new(big.Int).Set(value)
		if o.Mode&wallet.PayGasSeparately != 0 && o.Mode&sendModeCarryAllBalance == 0 {
			cost.Add(cost, b.fees.ForwardFee)
		} else {
			value = new(big.Int).Sub(value, b.fees.ForwardFee)
		}

		if value.Sign() < 0 || cost.Cmp(balance) > 0 {
			if o.Mode&sendModeIgnoreErrors != 0 {
				continue
			}
			return nil, tvm.ExitCodeNotEnoughToncoin
		}
		balance.Sub(balance, cost)
		ready = append(ready, prepared{msg: o.Msg, value: value})
	}

	acc.balance = balance
	emitted := make([]delivery, 0, len(ready))
	for _, p := range ready {
		msg := *p.msg
		msg.SrcAddr = acc.addr
		msg.Amount = tlb.FromNanoTON(p.value)
		msg.FwdFee = tlb.FromNanoTON(b.fees.msgFwdFee())
		msg.CreatedLT = b.nextLT()
		msg.CreatedAt = b.unixTime()
		if msg.Body == nil {
			msg.Body = cell.BeginCell().EndCell()
		}
		tx.TotalActionFees.Add(tx.TotalActionFees, b.fees.actionFee())
		emitted = append(emitted, b.emit(tx, &msg))
	}
	return emitted, tvm.ExitCodeSuccess
}

// bounce returns what is left of the inbound value to its sender.
func (b *Blockchain) bounce(acc *account, tx *tracetracking.ReceivedMessage) []delivery {
	value := new(big.Int).Sub(tx.Amount, tx.GasFee)
	if value.Cmp(acc.balance) > 0 {
		value.Set(acc.balance)
	}
	carried := new(big.Int).Sub(value, b.fees.ForwardFee)
	if carried.Sign() <= 0 {
		return nil
	}
	acc.balance.Sub(acc.balance, value)

	msg := &tlb.InternalMessage{
		IHRDisabled: true,
		Bounce:      false,
		Bounced:     true,
		SrcAddr:     acc.addr,
		DstAddr:     tx.InternalMsg.SrcAddr,
		Amount:      tlb.FromNanoTON(carried),
		FwdFee:      tlb.FromNanoTON(b.fees.ForwardFee),
		CreatedLT:   b.nextLT(),
		CreatedAt:   b.unixTime(),
		Body:        bouncedBody(tx.InternalMsg.Body),
	}
	tx.EmittedBouncedMessage = true
	return []delivery{b.emit(tx, msg)}
}

func (b *Blockchain) emit(tx *tracetracking.ReceivedMessage, msg *tlb.InternalMessage) delivery {
	tx.AppendSentMessage(msg)
	sent := tx.OutgoingInternalSentMessages[len(tx.OutgoingInternalSentMessages)-1]
	return delivery{msg: msg, parent: tx, sent: sent}
}

// bouncedBody is 0xFFFFFFFF followed by the first 256 bits of the original body.
func bouncedBody(body *cell.Cell) *cell.Cell {
	builder := cell.BeginCell().MustStoreUInt(bounceOpcode, 32)
	if body == nil {
		return builder.EndCell()
	}
	slice := body.BeginParse()
	n := min(slice.BitsLeft(), bouncedBodyBits)
	data, err := slice.LoadSlice(n)
	if err != nil {
		return builder.EndCell()
	}
	if err = builder.StoreSlice(data, n); err != nil {
		return cell.BeginCell().MustStoreUInt(bounceOpcode, 32).EndCell()
	}
	return builder.EndCell()
}

// externalIn runs the transaction of a wallet receiving a signed external
// message, and returns the root of the trace.
func (b *Blockchain) externalIn(acc *account, body *cell.Cell, out []OutMessage) (*tracetracking.ReceivedMessage, []delivery) {
	tx := tracetracking.NewReceivedMessage()
	tx.ExternalMsg = &tlb.ExternalMessageIn{
		SrcAddr:   address.NewAddressNone(),
		DstAddr:   acc.addr,
		ImportFee: tlb.FromNanoTON(b.fees.ImportFee),
		Body:      body,
	}
	tx.LamportTime = b.nextLT()
	tx.ImportFee = new(big.Int).Set(b.fees.ImportFee)
	tx.GasFee = new(big.Int).Set(b.fees.ComputeFee)
	acc.balance.Sub(acc.balance, tx.ImportFee)
	acc.balance.Sub(acc.balance, tx.GasFee)

	emitted, code := b.action(acc, &tx, out)
	tx.ExitCode = code
	tx.Success = code == tvm.ExitCodeSuccess
	acc.lastLT = tx.LamportTime

	b.lggr.Debugw("External message",
		"lt", tx.LamportTime,
		"account", acc.addr.String(),
		"messages", len(out),
		"success", tx.Success,
	)
	return &tx, emitted
}
