package token

import (
	"encoding/json"

	"dadchain/internal/chain"
	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodApprove  = "token.approve"
	MethodTransfer = "token.transfer"
	MethodMint     = "token.mint"
)

type ApproveArgs struct {
	Spender common.Address `json:"spender"`
	Amount  *models.Amount `json:"amount"`
}

type TransferArgs struct {
	To     common.Address `json:"to"`
	Amount *models.Amount `json:"amount"`
}

// Methods returns the write entry points keyed by method name.
func (t *Token) Methods() map[string]chain.Handler {
	return map[string]chain.Handler{
		MethodApprove: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args ApproveArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, t.Approve(tx, tx.From, args.Spender, args.Amount.Big())
		},
		MethodTransfer: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args TransferArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, t.Transfer(tx, tx.From, args.To, args.Amount.Big())
		},
		MethodMint: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args TransferArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, t.Mint(tx, tx.From, args.To, args.Amount.Big())
		},
	}
}
