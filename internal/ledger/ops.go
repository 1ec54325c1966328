package ledger

import (
	"math/big"
	"unicode/utf8"

	"dadchain/internal/chain"
	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

type JokeSubmitted struct {
	ID       uint64         `json:"id"`
	Creator  common.Address `json:"creator"`
	Content  string         `json:"content"`
	ImageURI string         `json:"imageURI"`
}

type JokeLiked struct {
	JokeID uint64         `json:"jokeId"`
	Liker  common.Address `json:"liker"`
}

type JokeTipped struct {
	JokeID  uint64         `json:"jokeId"`
	Tipper  common.Address `json:"tipper"`
	Creator common.Address `json:"creator"`
	Amount  *models.Amount `json:"amount"`
}

type BadgeClaimed struct {
	User    common.Address `json:"user"`
	BadgeID uint64         `json:"badgeId"`
}

func (l *Ledger) SubmitJoke(tx *chain.Tx, caller common.Address, content, imageURI string) (uint64, error) {
	if content == "" {
		return 0, ErrEmptyContent
	}
	if utf8.RuneCountInString(content) > l.maxContentLength {
		return 0, ErrContentTooLong
	}

	l.jokes = append(l.jokes, joke{
		creator:   caller,
		content:   content,
		imageURI:  imageURI,
		tipAmount: new(big.Int),
		createdAt: tx.Time,
	})
	id := uint64(len(l.jokes))
	tx.OnRevert(func() { l.jokes = l.jokes[:id-1] })

	p := l.profileFor(tx, caller)
	p.jokeCount++
	tx.OnRevert(func() { p.jokeCount-- })

	l.registerUser(tx, caller)

	tx.Emit(l.address, "JokeSubmitted", JokeSubmitted{ID: id, Creator: caller, Content: content, ImageURI: imageURI})
	return id, nil
}

func (l *Ledger) LikeJoke(tx *chain.Tx, caller common.Address, jokeID uint64) error {
	j, err := l.jokeAt(jokeID)
	if err != nil {
		return err
	}
	if j.creator == caller {
		return ErrOwnJoke
	}
	key := likeKey{jokeID: jokeID, liker: caller}
	if _, ok := l.likes[key]; ok {
		return ErrAlreadyLiked
	}

	l.likes[key] = struct{}{}
	tx.OnRevert(func() { delete(l.likes, key) })

	j.likeCount++
	tx.OnRevert(func() { l.jokes[jokeID-1].likeCount-- })

	p := l.profileFor(tx, j.creator)
	p.totalLikesReceived++
	tx.OnRevert(func() { p.totalLikesReceived-- })

	l.registerUser(tx, caller)

	tx.Emit(l.address, "JokeLiked", JokeLiked{JokeID: jokeID, Liker: caller})
	return nil
}

// TipJoke pulls amount from caller straight to the joke's creator. The
// ledger never holds the tokens. Tipping one's own joke is permitted.
func (l *Ledger) TipJoke(tx *chain.Tx, caller common.Address, jokeID uint64, amount *big.Int) error {
	j, err := l.jokeAt(jokeID)
	if err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroTip
	}

	creator := j.creator
	if err := l.token.TransferFrom(tx, l.address, caller, creator, amount); err != nil {
		return err
	}

	prevTip := j.tipAmount
	j.tipAmount = new(big.Int).Add(prevTip, amount)
	tx.OnRevert(func() { l.jokes[jokeID-1].tipAmount = prevTip })

	p := l.profileFor(tx, creator)
	prevReceived := p.totalTipsReceived
	p.totalTipsReceived = new(big.Int).Add(prevReceived, amount)
	tx.OnRevert(func() { p.totalTipsReceived = prevReceived })

	prevTotal := l.totalTips
	l.totalTips = new(big.Int).Add(prevTotal, amount)
	tx.OnRevert(func() { l.totalTips = prevTotal })

	l.registerUser(tx, caller)

	tx.Emit(l.address, "JokeTipped", JokeTipped{
		JokeID:  jokeID,
		Tipper:  caller,
		Creator: creator,
		Amount:  models.NewAmount(amount),
	})
	return nil
}

// ClaimBadge records the claim and mints the badge token to caller,
// returning the minted token id.
func (l *Ledger) ClaimBadge(tx *chain.Tx, caller common.Address, badgeID uint64) (uint64, error) {
	tier, ok := l.tiers[badgeID]
	if !ok {
		return 0, ErrUnknownBadge
	}
	key := claimKey{user: caller, badgeID: badgeID}
	if _, claimed := l.claims[key]; claimed {
		return 0, ErrBadgeClaimed
	}
	if l.UserProfile(caller).JokeCount < tier.MinJokes {
		return 0, ErrNotEligible
	}
	if l.minter == nil {
		return 0, ErrBadgeLedgerNotSet
	}

	l.claims[key] = struct{}{}
	tx.OnRevert(func() { delete(l.claims, key) })

	tokenID, err := l.minter.Mint(tx, l.address, caller, badgeID)
	if err != nil {
		return 0, err
	}

	tx.Emit(l.address, "BadgeClaimed", BadgeClaimed{User: caller, BadgeID: badgeID})
	return tokenID, nil
}
