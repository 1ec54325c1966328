// Package node deploys the token, badge ledger and core ledger onto one
// chain, rebuilds their state from the transaction log and fans committed
// events out to subscribers.
package node

import (
	"context"
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	"dadchain/internal/badge"
	"dadchain/internal/chain"
	"dadchain/internal/ledger"
	"dadchain/internal/models"
	"dadchain/internal/queue"
	"dadchain/internal/token"
	"dadchain/pkg/logger"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Log is the durable, ordered transaction log the node commits to.
type Log interface {
	chain.Committer
	Each(ctx context.Context, fn func(*chain.Record) error) error
}

type Publisher interface {
	PublishEvent(ctx context.Context, msg *queue.EventMessage) error
}

type Broadcaster interface {
	Broadcast(v any) error
}

type Config struct {
	Owner            common.Address
	MaxContentLength int
	Tiers            []models.BadgeTier
	TokenName        string
	TokenSymbol      string
	TokenDecimals    uint8
	BadgeBaseURI     string
}

// Contracts are the deployed addresses, derived from the owner so they are
// stable across restarts.
type Contracts struct {
	Owner common.Address `json:"owner"`
	Core  common.Address `json:"core"`
	Token common.Address `json:"token"`
	NFT   common.Address `json:"nft"`
}

func Addresses(owner common.Address) Contracts {
	return Contracts{
		Owner: owner,
		Token: crypto.CreateAddress(owner, 0),
		NFT:   crypto.CreateAddress(owner, 1),
		Core:  crypto.CreateAddress(owner, 2),
	}
}

type Node struct {
	chain     *chain.Chain
	contracts Contracts

	token  *token.Token
	badges *badge.Ledger
	core   *ledger.Ledger

	// submitMu spans commit and publication so subscribers see events in
	// seq order.
	submitMu    sync.Mutex
	publisher   Publisher
	broadcaster Broadcaster
	clock       func() time.Time
}

type Option func(*Node)

func WithPublisher(p Publisher) Option {
	return func(n *Node) {
		n.publisher = p
	}
}

func WithBroadcaster(b Broadcaster) Option {
	return func(n *Node) {
		n.broadcaster = b
	}
}

func WithClock(clock func() time.Time) Option {
	return func(n *Node) {
		n.clock = clock
	}
}

// New deploys the contracts, replays log and, when the log is empty,
// submits the owner's wiring transactions.
func New(ctx context.Context, cfg Config, log Log, opts ...Option) (*Node, error) {
	if cfg.Owner == (common.Address{}) {
		return nil, fmt.Errorf("node owner must not be the zero address")
	}

	n := &Node{
		contracts: Addresses(cfg.Owner),
		clock:     time.Now,
	}
	for _, opt := range opts {
		opt(n)
	}

	n.token = token.New(n.contracts.Token, cfg.Owner, cfg.TokenName, cfg.TokenSymbol, cfg.TokenDecimals)
	n.badges = badge.New(n.contracts.NFT, cfg.Owner, cfg.BadgeBaseURI)

	core, err := ledger.New(n.contracts.Core, cfg.Owner, n.contracts.Token, n.token, n.resolve, ledger.Config{
		MaxContentLength: cfg.MaxContentLength,
		Tiers:            cfg.Tiers,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to deploy core ledger: %w", err)
	}
	n.core = core

	n.chain = chain.New(log, chain.WithClock(n.clock))
	for _, methods := range []map[string]chain.Handler{n.token.Methods(), n.badges.Methods(), n.core.Methods()} {
		for name, h := range methods {
			n.chain.Register(name, h)
		}
	}

	start := time.Now()
	if err := log.Each(ctx, func(rec *chain.Record) error {
		_, err := n.chain.Replay(rec)
		return err
	}); err != nil {
		return nil, fmt.Errorf("failed to replay transaction log: %w", err)
	}
	logger.Info("Transaction log replayed",
		logger.Uint64("height", n.chain.Height()),
		logger.Duration("took", time.Since(start)),
	)

	if n.chain.Height() == 0 {
		if err := n.bootstrap(ctx); err != nil {
			return nil, err
		}
	}

	return n, nil
}

func (n *Node) bootstrap(ctx context.Context) error {
	owner := n.contracts.Owner

	if _, err := n.Call(ctx, owner, ledger.MethodSetNFTContractAddress, ledger.SetNFTContractAddressArgs{Address: n.contracts.NFT}); err != nil {
		return fmt.Errorf("failed to configure badge ledger: %w", err)
	}
	if _, err := n.Call(ctx, owner, badge.MethodSetMinter, badge.SetMinterArgs{Minter: n.contracts.Core}); err != nil {
		return fmt.Errorf("failed to configure badge minter: %w", err)
	}

	logger.Info("Contracts deployed",
		logger.String("core", n.contracts.Core.Hex()),
		logger.String("token", n.contracts.Token.Hex()),
		logger.String("nft", n.contracts.NFT.Hex()),
	)
	return nil
}

func (n *Node) resolve(addr common.Address) (ledger.Minter, bool) {
	if addr == n.contracts.NFT {
		return n.badges, true
	}
	return nil, false
}

// Submit runs call and, once committed, publishes its events before the next
// call may commit. Publication failures are logged; the transaction stays
// committed.
func (n *Node) Submit(ctx context.Context, call chain.Call) (*chain.Receipt, error) {
	n.submitMu.Lock()
	defer n.submitMu.Unlock()

	rcpt, err := n.chain.Submit(ctx, call)
	if err != nil {
		return nil, err
	}

	logger.Info("Transaction committed",
		logger.Uint64("seq", rcpt.Seq),
		logger.String("method", rcpt.Method),
		logger.String("from", rcpt.From.Hex()),
		logger.String("hash", rcpt.Hash.Hex()),
	)

	n.publish(ctx, rcpt)
	return rcpt, nil
}

// Call marshals args and submits them as method from sender.
func (n *Node) Call(ctx context.Context, from common.Address, method string, args any) (*chain.Receipt, error) {
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s arguments: %w", method, err)
	}
	return n.Submit(ctx, chain.Call{From: from, Method: method, Args: raw})
}

func (n *Node) publish(ctx context.Context, rcpt *chain.Receipt) {
	if n.publisher == nil && n.broadcaster == nil {
		return
	}

	msgs, err := queue.Messages(rcpt)
	if err != nil {
		logger.Error("Failed to encode events", logger.Uint64("seq", rcpt.Seq), logger.Err(err))
		return
	}

	for _, msg := range msgs {
		if n.publisher != nil {
			if err := n.publisher.PublishEvent(ctx, msg); err != nil {
				logger.Error("Failed to publish event",
					logger.String("name", msg.Name),
					logger.Uint64("seq", msg.Seq),
					logger.Err(err),
				)
			}
		}
		if n.broadcaster != nil {
			if err := n.broadcaster.Broadcast(msg); err != nil {
				logger.Warn("Failed to broadcast event", logger.String("name", msg.Name), logger.Err(err))
			}
		}
	}
}

func (n *Node) Contracts() Contracts {
	return n.contracts
}

func (n *Node) Height() uint64 {
	return n.chain.Height()
}

func (n *Node) Joke(id uint64) (joke models.Joke, err error) {
	n.chain.View(func() { joke, err = n.core.Joke(id) })
	return joke, err
}

func (n *Node) Jokes(cursor, pageSize uint64) (jokes []models.Joke) {
	n.chain.View(func() { jokes = n.core.JokesPaginated(cursor, pageSize) })
	return jokes
}

func (n *Node) Stats() (stats models.Stats) {
	n.chain.View(func() { stats = n.core.Stats() })
	return stats
}

func (n *Node) UserProfile(account common.Address) (p models.UserProfile) {
	n.chain.View(func() { p = n.core.UserProfile(account) })
	return p
}

func (n *Node) HasUserClaimedBadge(account common.Address, badgeID uint64) (claimed bool) {
	n.chain.View(func() { claimed = n.core.HasUserClaimedBadge(account, badgeID) })
	return claimed
}

func (n *Node) HasLiked(account common.Address, jokeID uint64) (liked bool) {
	n.chain.View(func() { liked = n.core.HasLiked(account, jokeID) })
	return liked
}

func (n *Node) BadgeTiers() []models.BadgeTier {
	// tiers are fixed at deploy time
	return n.core.BadgeTiers()
}

func (n *Node) MaxContentLength() int {
	return n.core.MaxContentLength()
}

func (n *Node) BadgeToken(tokenID uint64) (tok *badge.Token, err error) {
	n.chain.View(func() { tok, err = n.badges.Token(tokenID) })
	return tok, err
}

func (n *Node) BadgeBalance(account common.Address) (balance uint64) {
	n.chain.View(func() { balance = n.badges.BalanceOf(account) })
	return balance
}

func (n *Node) BalanceOf(account common.Address) (balance *big.Int) {
	n.chain.View(func() { balance = n.token.BalanceOf(account) })
	return balance
}

func (n *Node) Allowance(owner, spender common.Address) (allowance *big.Int) {
	n.chain.View(func() { allowance = n.token.Allowance(owner, spender) })
	return allowance
}

// TokenInfo describes the stablecoin.
type TokenInfo struct {
	Address     common.Address `json:"address"`
	Name        string         `json:"name"`
	Symbol      string         `json:"symbol"`
	Decimals    uint8          `json:"decimals"`
	TotalSupply *models.Amount `json:"totalSupply"`
}

func (n *Node) TokenInfo() (info TokenInfo) {
	n.chain.View(func() {
		info = TokenInfo{
			Address:     n.token.Address(),
			Name:        n.token.Name(),
			Symbol:      n.token.Symbol(),
			Decimals:    n.token.Decimals(),
			TotalSupply: models.NewAmount(n.token.TotalSupply()),
		}
	})
	return info
}
