// Package ledger holds jokes, likes, tips, per-user stats and badge claims.
//
// All state lives in memory. Every mutation registers an undo callback on
// the transaction so a failed call, including a failed token pull or badge
// mint further down, leaves the ledger exactly as it was.
package ledger

import (
	"fmt"
	"math/big"
	"time"

	"dadchain/internal/chain"
	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

const DefaultMaxContentLength = 280

// Token is the stablecoin side of a tip.
type Token interface {
	TransferFrom(tx *chain.Tx, spender, from, to common.Address, amount *big.Int) error
}

// Minter is the badge ledger as seen by the core: a privileged mint that
// only succeeds when the caller is its configured minter.
type Minter interface {
	Mint(tx *chain.Tx, caller, to common.Address, badgeID uint64) (uint64, error)
}

// Resolver finds the badge ledger deployed at an address.
type Resolver func(addr common.Address) (Minter, bool)

type Config struct {
	MaxContentLength int
	Tiers            []models.BadgeTier
}

type joke struct {
	creator   common.Address
	content   string
	imageURI  string
	likeCount uint64
	tipAmount *big.Int
	createdAt time.Time
}

type profile struct {
	jokeCount          uint64
	totalLikesReceived uint64
	totalTipsReceived  *big.Int
}

type likeKey struct {
	jokeID uint64
	liker  common.Address
}

type claimKey struct {
	user    common.Address
	badgeID uint64
}

type Ledger struct {
	address      common.Address
	owner        common.Address
	tokenAddress common.Address
	token        Token
	resolve      Resolver

	nftAddress common.Address
	minter     Minter

	maxContentLength int
	tiers            map[uint64]models.BadgeTier
	tierOrder        []models.BadgeTier

	jokes     []joke // joke id N lives at index N-1
	profiles  map[common.Address]*profile
	likes     map[likeKey]struct{}
	claims    map[claimKey]struct{}
	users     map[common.Address]struct{}
	totalTips *big.Int
}

func New(address, owner, tokenAddress common.Address, token Token, resolve Resolver, cfg Config) (*Ledger, error) {
	if cfg.MaxContentLength <= 0 {
		cfg.MaxContentLength = DefaultMaxContentLength
	}
	if len(cfg.Tiers) == 0 {
		cfg.Tiers = models.DefaultBadgeTiers()
	}

	tiers := make(map[uint64]models.BadgeTier, len(cfg.Tiers))
	for _, tier := range cfg.Tiers {
		if tier.ID == 0 {
			return nil, fmt.Errorf("%w: badge id must be positive", ErrInvalidTiers)
		}
		if _, dup := tiers[tier.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate badge id %d", ErrInvalidTiers, tier.ID)
		}
		tiers[tier.ID] = tier
	}

	return &Ledger{
		address:          address,
		owner:            owner,
		tokenAddress:     tokenAddress,
		token:            token,
		resolve:          resolve,
		maxContentLength: cfg.MaxContentLength,
		tiers:            tiers,
		tierOrder:        append([]models.BadgeTier(nil), cfg.Tiers...),
		profiles:         make(map[common.Address]*profile),
		likes:            make(map[likeKey]struct{}),
		claims:           make(map[claimKey]struct{}),
		users:            make(map[common.Address]struct{}),
		totalTips:        new(big.Int),
	}, nil
}

func (l *Ledger) Address() common.Address      { return l.address }
func (l *Ledger) Owner() common.Address        { return l.owner }
func (l *Ledger) TokenAddress() common.Address { return l.tokenAddress }
func (l *Ledger) NFTAddress() common.Address   { return l.nftAddress }
func (l *Ledger) MaxContentLength() int        { return l.maxContentLength }

// SetNFTContractAddress points the ledger at its badge ledger. It can be
// done once, by the owner.
func (l *Ledger) SetNFTContractAddress(tx *chain.Tx, caller, addr common.Address) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if addr == (common.Address{}) {
		return ErrZeroAddress
	}
	if l.minter != nil {
		return ErrBadgeLedgerSet
	}

	m, ok := l.resolve(addr)
	if !ok {
		return ErrNoBadgeLedger
	}

	l.nftAddress, l.minter = addr, m
	tx.OnRevert(func() {
		l.nftAddress, l.minter = common.Address{}, nil
	})
	return nil
}

func (l *Ledger) registerUser(tx *chain.Tx, account common.Address) {
	if _, ok := l.users[account]; ok {
		return
	}
	l.users[account] = struct{}{}
	tx.OnRevert(func() { delete(l.users, account) })
}

func (l *Ledger) profileFor(tx *chain.Tx, account common.Address) *profile {
	if p, ok := l.profiles[account]; ok {
		return p
	}
	p := &profile{totalTipsReceived: new(big.Int)}
	l.profiles[account] = p
	tx.OnRevert(func() { delete(l.profiles, account) })
	return p
}

func (l *Ledger) jokeAt(id uint64) (*joke, error) {
	if id == 0 || id > uint64(len(l.jokes)) {
		return nil, ErrJokeNotFound
	}
	return &l.jokes[id-1], nil
}

func (l *Ledger) view(id uint64) models.Joke {
	j := &l.jokes[id-1]
	return models.Joke{
		ID:        id,
		Creator:   j.creator,
		Content:   j.content,
		ImageURI:  j.imageURI,
		LikeCount: j.likeCount,
		TipAmount: models.NewAmount(j.tipAmount),
		CreatedAt: j.createdAt,
	}
}
