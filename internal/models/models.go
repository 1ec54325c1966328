package models

import (
	"time"

	"github.com/ethereum/go-ethereum/common"
)

type Joke struct {
	ID        uint64         `json:"id"`
	Creator   common.Address `json:"creator"`
	Content   string         `json:"content"`
	ImageURI  string         `json:"imageURI"`
	LikeCount uint64         `json:"likeCount"`
	TipAmount *Amount        `json:"tipAmount"`
	CreatedAt time.Time      `json:"createdAt"`
}

type UserProfile struct {
	JokeCount          uint64  `json:"jokeCount"`
	TotalLikesReceived uint64  `json:"totalLikesReceived"`
	TotalTipsReceived  *Amount `json:"totalTipsReceived"`
}

// BadgeTier gates a badge on the number of jokes a user has submitted.
type BadgeTier struct {
	ID       uint64 `json:"id" yaml:"id"`
	Name     string `json:"name" yaml:"name"`
	MinJokes uint64 `json:"minJokes" yaml:"min_jokes"`
}

type Stats struct {
	TotalJokes uint64  `json:"totalJokes"`
	TotalUsers uint64  `json:"totalUsers"`
	TotalTips  *Amount `json:"totalTips"`
}

// DefaultBadgeTiers are the milestone tiers used when none are configured.
func DefaultBadgeTiers() []BadgeTier {
	return []BadgeTier{
		{ID: 1, Name: "Bronze", MinJokes: 1},
		{ID: 2, Name: "Silver", MinJokes: 5},
		{ID: 3, Name: "Gold", MinJokes: 10},
	}
}
