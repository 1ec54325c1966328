package chain

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Call is a request to run a registered method on behalf of From.
type Call struct {
	From   common.Address  `json:"from"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
}

// Record is a committed transaction as stored in the transaction log.
type Record struct {
	Seq    uint64          `json:"seq"`
	Hash   common.Hash     `json:"hash"`
	From   common.Address  `json:"from"`
	Method string          `json:"method"`
	Args   json.RawMessage `json:"args,omitempty"`
	Time   time.Time       `json:"time"`
}

type Event struct {
	Contract common.Address `json:"contract"`
	Name     string         `json:"name"`
	Data     any            `json:"data"`
}

type Receipt struct {
	Record
	Result any     `json:"result,omitempty"`
	Events []Event `json:"events"`
}

// Handler executes one method. Any returned error reverts the transaction.
type Handler func(tx *Tx, args json.RawMessage) (any, error)

// Committer durably appends a record before the transaction is considered final.
type Committer interface {
	Commit(ctx context.Context, rec *Record) error
}

type CommitterFunc func(ctx context.Context, rec *Record) error

func (f CommitterFunc) Commit(ctx context.Context, rec *Record) error {
	return f(ctx, rec)
}

// Chain runs every write in a single total order. A transaction either
// commits all of its effects or none of them.
type Chain struct {
	mu        sync.RWMutex
	handlers  map[string]Handler
	committer Committer
	clock     func() time.Time
	height    uint64
}

type Option func(*Chain)

func WithClock(clock func() time.Time) Option {
	return func(c *Chain) {
		c.clock = clock
	}
}

func New(committer Committer, opts ...Option) *Chain {
	c := &Chain{
		handlers:  make(map[string]Handler),
		committer: committer,
		clock:     time.Now,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Register binds a method name. It must be called before the first Submit.
func (c *Chain) Register(method string, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[method] = h
}

func (c *Chain) Height() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.height
}

// View runs fn while no transaction is in flight.
func (c *Chain) View(fn func()) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	fn()
}

func (c *Chain) Submit(ctx context.Context, call Call) (*Receipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	h, ok := c.handlers[call.Method]
	if !ok {
		return nil, ErrUnknownMethod
	}

	rec := &Record{
		Seq:    c.height + 1,
		From:   call.From,
		Method: call.Method,
		Args:   call.Args,
		Time:   c.clock().UTC().Truncate(time.Microsecond),
	}
	rec.Hash = Hash(rec)

	tx := newTx(rec)
	result, err := run(tx, h, call.Args)
	if err != nil {
		tx.revert()
		logger.Debug("Transaction reverted",
			logger.String("method", call.Method),
			logger.String("from", call.From.Hex()),
			logger.Err(err),
		)
		return nil, err
	}

	if c.committer != nil {
		if err := c.committer.Commit(ctx, rec); err != nil {
			tx.revert()
			return nil, fmt.Errorf("failed to commit transaction %d: %w", rec.Seq, err)
		}
	}

	c.height = rec.Seq

	return &Receipt{Record: *rec, Result: result, Events: tx.events}, nil
}

// Replay re-executes a committed record without committing it again.
func (c *Chain) Replay(rec *Record) (*Receipt, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if rec.Seq != c.height+1 {
		return nil, fmt.Errorf("%w: have height %d, got seq %d", ErrOutOfOrder, c.height, rec.Seq)
	}
	if Hash(rec) != rec.Hash {
		return nil, fmt.Errorf("%w: seq %d", ErrHashMismatch, rec.Seq)
	}

	h, ok := c.handlers[rec.Method]
	if !ok {
		return nil, fmt.Errorf("seq %d: %w: %s", rec.Seq, ErrUnknownMethod, rec.Method)
	}

	tx := newTx(rec)
	result, err := run(tx, h, rec.Args)
	if err != nil {
		tx.revert()
		return nil, fmt.Errorf("failed to replay seq %d (%s): %w", rec.Seq, rec.Method, err)
	}

	c.height = rec.Seq

	return &Receipt{Record: *rec, Result: result, Events: tx.events}, nil
}

func run(tx *Tx, h Handler, args json.RawMessage) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{Method: tx.Method, Value: r}
		}
	}()
	return h(tx, args)
}

// Hash is the keccak256 digest identifying a record.
func Hash(rec *Record) common.Hash {
	var seq, ts [8]byte
	binary.BigEndian.PutUint64(seq[:], rec.Seq)
	binary.BigEndian.PutUint64(ts[:], uint64(rec.Time.UnixMicro()))
	return crypto.Keccak256Hash(seq[:], rec.From.Bytes(), []byte(rec.Method), rec.Args, ts[:])
}

// DecodeArgs unmarshals call arguments, reporting failures as validation reverts.
func DecodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	if err := json.Unmarshal(args, v); err != nil {
		return Validation(fmt.Sprintf("invalid arguments: %v", err))
	}
	return nil
}
