package badge

import (
	"encoding/json"

	"dadchain/internal/chain"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodMint       = "badge.mint"
	MethodTransfer   = "badge.transfer"
	MethodSetBaseURI = "badge.setBaseURI"
	MethodSetMinter  = "badge.setMinter"
)

type MintArgs struct {
	To      common.Address `json:"to"`
	BadgeID uint64         `json:"badgeId"`
}

type TransferArgs struct {
	To      common.Address `json:"to"`
	TokenID uint64         `json:"tokenId"`
}

type SetBaseURIArgs struct {
	BaseURI string `json:"baseURI"`
}

type SetMinterArgs struct {
	Minter common.Address `json:"minter"`
}

type MintResult struct {
	TokenID uint64 `json:"tokenId"`
}

func (l *Ledger) Methods() map[string]chain.Handler {
	return map[string]chain.Handler{
		MethodMint: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args MintArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			id, err := l.Mint(tx, tx.From, args.To, args.BadgeID)
			if err != nil {
				return nil, err
			}
			return MintResult{TokenID: id}, nil
		},
		MethodTransfer: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args TransferArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.Transfer(tx, tx.From, args.To, args.TokenID)
		},
		MethodSetBaseURI: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args SetBaseURIArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.SetBaseURI(tx, tx.From, args.BaseURI)
		},
		MethodSetMinter: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args SetMinterArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.SetMinter(tx, tx.From, args.Minter)
		},
	}
}
