package ledger

import (
	"encoding/json"

	"dadchain/internal/chain"
	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

const (
	MethodSubmitJoke            = "ledger.submitJoke"
	MethodLikeJoke              = "ledger.likeJoke"
	MethodTipJoke               = "ledger.tipJoke"
	MethodClaimBadge            = "ledger.claimBadge"
	MethodSetNFTContractAddress = "ledger.setNftContractAddress"
)

type SubmitJokeArgs struct {
	Content  string `json:"content"`
	ImageURI string `json:"imageURI"`
}

type JokeArgs struct {
	JokeID uint64 `json:"jokeId"`
}

type TipJokeArgs struct {
	JokeID uint64         `json:"jokeId"`
	Amount *models.Amount `json:"amount"`
}

type ClaimBadgeArgs struct {
	BadgeID uint64 `json:"badgeId"`
}

type SetNFTContractAddressArgs struct {
	Address common.Address `json:"address"`
}

type SubmitJokeResult struct {
	JokeID uint64 `json:"jokeId"`
}

type ClaimBadgeResult struct {
	BadgeID uint64 `json:"badgeId"`
	TokenID uint64 `json:"tokenId"`
}

func (l *Ledger) Methods() map[string]chain.Handler {
	return map[string]chain.Handler{
		MethodSubmitJoke: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args SubmitJokeArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			id, err := l.SubmitJoke(tx, tx.From, args.Content, args.ImageURI)
			if err != nil {
				return nil, err
			}
			return SubmitJokeResult{JokeID: id}, nil
		},
		MethodLikeJoke: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args JokeArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.LikeJoke(tx, tx.From, args.JokeID)
		},
		MethodTipJoke: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args TipJokeArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.TipJoke(tx, tx.From, args.JokeID, args.Amount.Big())
		},
		MethodClaimBadge: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args ClaimBadgeArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			tokenID, err := l.ClaimBadge(tx, tx.From, args.BadgeID)
			if err != nil {
				return nil, err
			}
			return ClaimBadgeResult{BadgeID: args.BadgeID, TokenID: tokenID}, nil
		},
		MethodSetNFTContractAddress: func(tx *chain.Tx, raw json.RawMessage) (any, error) {
			var args SetNFTContractAddressArgs
			if err := chain.DecodeArgs(raw, &args); err != nil {
				return nil, err
			}
			return nil, l.SetNFTContractAddress(tx, tx.From, args.Address)
		},
	}
}
