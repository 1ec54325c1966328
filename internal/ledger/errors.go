package ledger

import (
	"errors"

	"dadchain/internal/chain"
)

var (
	ErrEmptyContent   = chain.Validation("joke content cannot be empty")
	ErrContentTooLong = chain.Validation("joke content is too long")
	ErrJokeNotFound   = chain.Validation("joke does not exist")
	ErrZeroTip        = chain.Validation("tip amount must be greater than zero")
	ErrUnknownBadge   = chain.Validation("unknown badge")
	ErrZeroAddress    = chain.Validation("zero address")
	ErrNoBadgeLedger  = chain.Validation("no badge ledger at address")

	ErrNotOwner = chain.Unauthorized("caller is not the owner")

	ErrOwnJoke           = chain.Rule("cannot like your own joke")
	ErrAlreadyLiked      = chain.Rule("already liked")
	ErrBadgeClaimed      = chain.Rule("badge already claimed")
	ErrNotEligible       = chain.Rule("not eligible for this badge")
	ErrBadgeLedgerSet    = chain.Rule("badge ledger already configured")
	ErrBadgeLedgerNotSet = chain.Rule("badge ledger not configured")

	ErrInvalidTiers = errors.New("invalid badge tiers")
)
