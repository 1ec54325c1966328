// Package token implements the fungible stablecoin used for tips. Balances
// move only through Transfer and TransferFrom; the latter spends an
// allowance previously granted with Approve.
package token

import (
	"math/big"

	"dadchain/internal/chain"
	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

var (
	ErrNotOwner              = chain.Unauthorized("caller is not the owner")
	ErrZeroAddress           = chain.Validation("zero address")
	ErrNegativeAmount        = chain.Validation("amount must not be negative")
	ErrInsufficientBalance   = chain.Rule("insufficient balance")
	ErrInsufficientAllowance = chain.Rule("insufficient allowance")
)

type Transfer struct {
	From  common.Address `json:"from"`
	To    common.Address `json:"to"`
	Value *models.Amount `json:"value"`
}

type Approval struct {
	Owner   common.Address `json:"owner"`
	Spender common.Address `json:"spender"`
	Value   *models.Amount `json:"value"`
}

type Token struct {
	address  common.Address
	owner    common.Address
	name     string
	symbol   string
	decimals uint8

	totalSupply *big.Int
	balances    map[common.Address]*big.Int
	allowances  map[common.Address]map[common.Address]*big.Int
}

func New(address, owner common.Address, name, symbol string, decimals uint8) *Token {
	return &Token{
		address:     address,
		owner:       owner,
		name:        name,
		symbol:      symbol,
		decimals:    decimals,
		totalSupply: new(big.Int),
		balances:    make(map[common.Address]*big.Int),
		allowances:  make(map[common.Address]map[common.Address]*big.Int),
	}
}

func (t *Token) Address() common.Address { return t.address }
func (t *Token) Owner() common.Address   { return t.owner }
func (t *Token) Name() string            { return t.name }
func (t *Token) Symbol() string          { return t.symbol }
func (t *Token) Decimals() uint8         { return t.decimals }

func (t *Token) TotalSupply() *big.Int {
	return new(big.Int).Set(t.totalSupply)
}

func (t *Token) BalanceOf(account common.Address) *big.Int {
	if b, ok := t.balances[account]; ok {
		return new(big.Int).Set(b)
	}
	return new(big.Int)
}

func (t *Token) Allowance(owner, spender common.Address) *big.Int {
	if a, ok := t.allowances[owner][spender]; ok {
		return new(big.Int).Set(a)
	}
	return new(big.Int)
}

// Mint creates amount new tokens for to. Only the deployer may mint.
func (t *Token) Mint(tx *chain.Tx, caller, to common.Address, amount *big.Int) error {
	if caller != t.owner {
		return ErrNotOwner
	}
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	t.setBalance(tx, to, new(big.Int).Add(t.BalanceOf(to), amount))
	t.setTotalSupply(tx, new(big.Int).Add(t.totalSupply, amount))

	tx.Emit(t.address, "Transfer", Transfer{To: to, Value: models.NewAmount(amount)})
	return nil
}

func (t *Token) Approve(tx *chain.Tx, caller, spender common.Address, amount *big.Int) error {
	if spender == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	t.setAllowance(tx, caller, spender, new(big.Int).Set(amount))

	tx.Emit(t.address, "Approval", Approval{Owner: caller, Spender: spender, Value: models.NewAmount(amount)})
	return nil
}

func (t *Token) Transfer(tx *chain.Tx, caller, to common.Address, amount *big.Int) error {
	return t.move(tx, caller, to, amount)
}

// TransferFrom moves amount from from to to on behalf of spender, consuming
// spender's allowance.
func (t *Token) TransferFrom(tx *chain.Tx, spender, from, to common.Address, amount *big.Int) error {
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	allowed := t.Allowance(from, spender)
	if allowed.Cmp(amount) < 0 {
		return ErrInsufficientAllowance
	}
	if t.BalanceOf(from).Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	t.setAllowance(tx, from, spender, allowed.Sub(allowed, amount))
	return t.move(tx, from, to, amount)
}

func (t *Token) move(tx *chain.Tx, from, to common.Address, amount *big.Int) error {
	if to == (common.Address{}) {
		return ErrZeroAddress
	}
	if amount.Sign() < 0 {
		return ErrNegativeAmount
	}

	balance := t.BalanceOf(from)
	if balance.Cmp(amount) < 0 {
		return ErrInsufficientBalance
	}

	t.setBalance(tx, from, balance.Sub(balance, amount))
	t.setBalance(tx, to, new(big.Int).Add(t.BalanceOf(to), amount))

	tx.Emit(t.address, "Transfer", Transfer{From: from, To: to, Value: models.NewAmount(amount)})
	return nil
}

func (t *Token) setBalance(tx *chain.Tx, account common.Address, v *big.Int) {
	prev, had := t.balances[account]
	t.balances[account] = v
	tx.OnRevert(func() {
		if had {
			t.balances[account] = prev
		} else {
			delete(t.balances, account)
		}
	})
}

func (t *Token) setAllowance(tx *chain.Tx, owner, spender common.Address, v *big.Int) {
	spenders, ok := t.allowances[owner]
	if !ok {
		spenders = make(map[common.Address]*big.Int)
		t.allowances[owner] = spenders
	}
	prev, had := spenders[spender]
	spenders[spender] = v
	tx.OnRevert(func() {
		if had {
			spenders[spender] = prev
		} else {
			delete(spenders, spender)
		}
	})
}

func (t *Token) setTotalSupply(tx *chain.Tx, v *big.Int) {
	prev := t.totalSupply
	t.totalSupply = v
	tx.OnRevert(func() { t.totalSupply = prev })
}
