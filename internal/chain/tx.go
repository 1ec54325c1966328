package chain

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Tx is the execution context of one transaction.
type Tx struct {
	Seq    uint64
	Hash   common.Hash
	From   common.Address
	Method string
	Time   time.Time

	undo   []func()
	events []Event
}

func newTx(rec *Record) *Tx {
	return &Tx{
		Seq:    rec.Seq,
		Hash:   rec.Hash,
		From:   rec.From,
		Method: rec.Method,
		Time:   rec.Time,
	}
}

// OnRevert registers fn to run if the transaction does not commit.
// Callbacks run in reverse registration order.
func (tx *Tx) OnRevert(fn func()) {
	tx.undo = append(tx.undo, fn)
}

func (tx *Tx) Emit(contract common.Address, name string, data any) {
	tx.events = append(tx.events, Event{Contract: contract, Name: name, Data: data})
}

func (tx *Tx) Events() []Event {
	return tx.events
}

func (tx *Tx) revert() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
	tx.events = nil
}
