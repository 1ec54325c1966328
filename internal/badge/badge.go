// Package badge implements the non-fungible milestone badges. Minting is
// restricted to a single configured minter, normally the core ledger, which
// alone decides who is eligible; this package does not re-check eligibility.
package badge

import (
	"strconv"

	"dadchain/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner         = chain.Unauthorized("caller is not the owner")
	ErrNotMinter        = chain.Unauthorized("caller is not the minter")
	ErrNotTokenOwner    = chain.Unauthorized("caller is not the token owner")
	ErrZeroAddress      = chain.Validation("zero address")
	ErrNonexistentToken = chain.Validation("nonexistent token")
)

type Minted struct {
	To      common.Address `json:"to"`
	TokenID uint64         `json:"tokenId"`
	BadgeID uint64         `json:"badgeId"`
}

type Transferred struct {
	From    common.Address `json:"from"`
	To      common.Address `json:"to"`
	TokenID uint64         `json:"tokenId"`
}

type BaseURIUpdated struct {
	BaseURI string `json:"baseURI"`
}

type MinterUpdated struct {
	Minter common.Address `json:"minter"`
}

type Token struct {
	ID      uint64         `json:"tokenId"`
	Owner   common.Address `json:"owner"`
	BadgeID uint64         `json:"badgeId"`
	URI     string         `json:"tokenURI"`
}

type record struct {
	owner   common.Address
	badgeID uint64
}

type Ledger struct {
	address common.Address
	owner   common.Address
	minter  common.Address
	baseURI string

	tokens   []record // token id N lives at index N-1
	balances map[common.Address]uint64
}

func New(address, owner common.Address, baseURI string) *Ledger {
	return &Ledger{
		address:  address,
		owner:    owner,
		baseURI:  baseURI,
		balances: make(map[common.Address]uint64),
	}
}

func (l *Ledger) Address() common.Address { return l.address }
func (l *Ledger) Owner() common.Address   { return l.owner }
func (l *Ledger) Minter() common.Address  { return l.minter }
func (l *Ledger) BaseURI() string         { return l.baseURI }

func (l *Ledger) TotalSupply() uint64 {
	return uint64(len(l.tokens))
}

func (l *Ledger) BalanceOf(account common.Address) uint64 {
	return l.balances[account]
}

func (l *Ledger) OwnerOf(tokenID uint64) (common.Address, error) {
	rec, err := l.lookup(tokenID)
	if err != nil {
		return common.Address{}, err
	}
	return rec.owner, nil
}

func (l *Ledger) BadgeOf(tokenID uint64) (uint64, error) {
	rec, err := l.lookup(tokenID)
	if err != nil {
		return 0, err
	}
	return rec.badgeID, nil
}

// TokenURI is the base URI followed by the decimal token id.
func (l *Ledger) TokenURI(tokenID uint64) (string, error) {
	if _, err := l.lookup(tokenID); err != nil {
		return "", err
	}
	return l.baseURI + strconv.FormatUint(tokenID, 10), nil
}

func (l *Ledger) Token(tokenID uint64) (*Token, error) {
	rec, err := l.lookup(tokenID)
	if err != nil {
		return nil, err
	}
	uri, _ := l.TokenURI(tokenID)
	return &Token{ID: tokenID, Owner: rec.owner, BadgeID: rec.badgeID, URI: uri}, nil
}

func (l *Ledger) lookup(tokenID uint64) (*record, error) {
	if tokenID == 0 || tokenID > uint64(len(l.tokens)) {
		return nil, ErrNonexistentToken
	}
	return &l.tokens[tokenID-1], nil
}

// Mint assigns the next token id to to, tagged with badgeID.
func (l *Ledger) Mint(tx *chain.Tx, caller, to common.Address, badgeID uint64) (uint64, error) {
	if caller != l.minter || l.minter == (common.Address{}) {
		return 0, ErrNotMinter
	}
	if to == (common.Address{}) {
		return 0, ErrZeroAddress
	}

	l.tokens = append(l.tokens, record{owner: to, badgeID: badgeID})
	tokenID := uint64(len(l.tokens))
	tx.OnRevert(func() { l.tokens = l.tokens[:tokenID-1] })

	l.addBalance(tx, to, 1)

	tx.Emit(l.address, "BadgeMinted", Minted{To: to, TokenID: tokenID, BadgeID: badgeID})
	return tokenID, nil
}

func (l *Ledger) Transfer(tx *chain.Tx, caller, to common.Address, tokenID uint64) error {
	rec, err := l.lookup(tokenID)
	if err != nil {
		return err
	}
	if rec.owner != caller {
		return ErrNotTokenOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}

	rec.owner = to
	tx.OnRevert(func() { l.tokens[tokenID-1].owner = caller })

	l.addBalance(tx, caller, -1)
	l.addBalance(tx, to, 1)

	tx.Emit(l.address, "Transfer", Transferred{From: caller, To: to, TokenID: tokenID})
	return nil
}

func (l *Ledger) SetBaseURI(tx *chain.Tx, caller common.Address, baseURI string) error {
	if caller != l.owner {
		return ErrNotOwner
	}

	prev := l.baseURI
	l.baseURI = baseURI
	tx.OnRevert(func() { l.baseURI = prev })

	tx.Emit(l.address, "BaseURIUpdated", BaseURIUpdated{BaseURI: baseURI})
	return nil
}

func (l *Ledger) SetMinter(tx *chain.Tx, caller, minter common.Address) error {
	if caller != l.owner {
		return ErrNotOwner
	}
	if minter == (common.Address{}) {
		return ErrZeroAddress
	}

	prev := l.minter
	l.minter = minter
	tx.OnRevert(func() { l.minter = prev })

	tx.Emit(l.address, "MinterUpdated", MinterUpdated{Minter: minter})
	return nil
}

func (l *Ledger) addBalance(tx *chain.Tx, account common.Address, delta int) {
	prev, had := l.balances[account]
	l.balances[account] = uint64(int(prev) + delta)
	tx.OnRevert(func() {
		if had {
			l.balances[account] = prev
		} else {
			delete(l.balances, account)
		}
	})
}
