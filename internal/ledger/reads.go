package ledger

import (
	"math/big"

	"dadchain/internal/models"

	"github.com/ethereum/go-ethereum/common"
)

func (l *Ledger) Joke(id uint64) (models.Joke, error) {
	if _, err := l.jokeAt(id); err != nil {
		return models.Joke{}, err
	}
	return l.view(id), nil
}

func (l *Ledger) TotalJokes() uint64 {
	return uint64(len(l.jokes))
}

func (l *Ledger) TotalUsers() uint64 {
	return uint64(len(l.users))
}

func (l *Ledger) TotalTips() *big.Int {
	return new(big.Int).Set(l.totalTips)
}

func (l *Ledger) Stats() models.Stats {
	return models.Stats{
		TotalJokes: l.TotalJokes(),
		TotalUsers: l.TotalUsers(),
		TotalTips:  models.NewAmount(l.totalTips),
	}
}

// UserProfile returns zeros for accounts that never interacted.
func (l *Ledger) UserProfile(account common.Address) models.UserProfile {
	p, ok := l.profiles[account]
	if !ok {
		return models.UserProfile{TotalTipsReceived: models.NewAmount(nil)}
	}
	return models.UserProfile{
		JokeCount:          p.jokeCount,
		TotalLikesReceived: p.totalLikesReceived,
		TotalTipsReceived:  models.NewAmount(p.totalTipsReceived),
	}
}

// JokesPaginated walks ids downward starting just below cursor. A zero
// cursor, or one past the newest joke, starts from the newest.
func (l *Ledger) JokesPaginated(cursor, pageSize uint64) []models.Joke {
	total := l.TotalJokes()

	next := total
	if cursor != 0 && cursor-1 < total {
		next = cursor - 1
	}

	page := make([]models.Joke, 0, min(pageSize, next))
	for id := next; id >= 1 && uint64(len(page)) < pageSize; id-- {
		page = append(page, l.view(id))
	}
	return page
}

func (l *Ledger) HasUserClaimedBadge(account common.Address, badgeID uint64) bool {
	_, ok := l.claims[claimKey{user: account, badgeID: badgeID}]
	return ok
}

func (l *Ledger) HasLiked(account common.Address, jokeID uint64) bool {
	_, ok := l.likes[likeKey{jokeID: jokeID, liker: account}]
	return ok
}

func (l *Ledger) BadgeTiers() []models.BadgeTier {
	return append([]models.BadgeTier(nil), l.tierOrder...)
}

func (l *Ledger) BadgeTier(badgeID uint64) (models.BadgeTier, bool) {
	tier, ok := l.tiers[badgeID]
	return tier, ok
}
