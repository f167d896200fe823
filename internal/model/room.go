package model

import "time"

type RoomType string

const (
	RoomPublic  RoomType = "public"
	RoomPrivate RoomType = "private"
)

type RoomStatus string

const (
	RoomWaiting RoomStatus = "waiting"
	RoomActive  RoomStatus = "active"
	RoomClosed  RoomStatus = "closed"
)

type Room struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	Type              RoomType   `json:"type"`
	MinBet            float64    `json:"min_bet"`
	MaxBet            float64    `json:"max_bet"`
	MaxBetters        int        `json:"max_betters"`
	RoundDurationMs   int64      `json:"round_duration_ms"`
	CommissionPercent float64    `json:"commission_percent"`
	InviteCode        string     `json:"invite_code,omitempty"`
	CreatorID         string     `json:"creator_id"`
	Seeded            bool       `json:"seeded"`
	Status            RoomStatus `json:"status"`
	Audience          []string   `json:"audience"`
	CurrentRoundID    string     `json:"current_round_id,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

func (r *Room) RoundDuration() time.Duration {
	return time.Duration(r.RoundDurationMs) * time.Millisecond
}

func (r *Room) HasMember(playerID string) bool {
	for _, id := range r.Audience {
		if id == playerID {
			return true
		}
	}

	return false
}

// AddMember is idempotent: re-adding a joined player is a no-op.
func (r *Room) AddMember(playerID string) {
	if r.HasMember(playerID) {
		return
	}

	r.Audience = append(r.Audience, playerID)
}

// RemoveMember reports whether the player was a member.
func (r *Room) RemoveMember(playerID string) bool {
	for i, id := range r.Audience {
		if id == playerID {
			r.Audience = append(r.Audience[:i], r.Audience[i+1:]...)
			return true
		}
	}

	return false
}
