// Package moments is the shared feed of call moments and their reactions.
package moments

import (
	"errors"
	"time"
)

// Moment is a screenshot posted after a call.
type Moment struct {
	ID           string    `json:"id" db:"id"`
	UserPhone    string    `json:"userPhone" db:"user_phone"`
	UserName     string    `json:"userName" db:"user_name"`
	TargetPhone  string    `json:"targetPhone" db:"target_phone"`
	TargetName   string    `json:"targetName" db:"target_name"`
	Screenshot   string    `json:"screenshot" db:"screenshot"`
	Note         string    `json:"note" db:"note"`
	Mood         string    `json:"mood" db:"mood"`
	CallDuration string    `json:"callDuration" db:"call_duration"`
	Timestamp    time.Time `json:"timestamp" db:"created_at"`

	Reactions      []ReactionSummary `json:"reactions"`
	TotalReactions int               `json:"totalReactions"`
}

// ReactionSummary is one emoji group as seen by a particular viewer.
type ReactionSummary struct {
	Emoji       string `json:"emoji"`
	Count       int    `json:"count"`
	UserReacted bool   `json:"userReacted"`
}

// Reaction is a single user's emoji on a moment.
type Reaction struct {
	MomentID  string    `db:"moment_id"`
	Emoji     string    `db:"emoji"`
	Phone     string    `db:"phone"`
	CreatedAt time.Time `db:"created_at"`
}

// Emojis lists accepted reactions in display order.
var Emojis = []string{"❤️", "😂", "😮", "😢", "😍", "👏"}

func ValidEmoji(e string) bool {
	for _, v := range Emojis {
		if v == e {
			return true
		}
	}
	return false
}

var (
	ErrInvalidArgument = errors.New("moments: invalid argument")
	ErrInvalidEmoji    = errors.New("moments: invalid emoji")
	ErrNotFound        = errors.New("moments: not found")
)
