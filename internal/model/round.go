package model

import "time"

type RoundStatus string

const (
	RoundWaiting  RoundStatus = "waiting"
	RoundActive   RoundStatus = "active"
	RoundFinished RoundStatus = "finished"
)

// roundTransitions is the single transition table for a round. Anything
// not listed here is an invalid transition and is rejected structurally.
var roundTransitions = map[RoundStatus]RoundStatus{
	RoundWaiting: RoundActive,
	RoundActive:  RoundFinished,
}

func (s RoundStatus) CanTransition(to RoundStatus) bool {
	next, ok := roundTransitions[s]

	return ok && next == to
}

type Bet struct {
	PlayerID string    `json:"player_id"`
	Username string    `json:"username"`
	Amount   float64   `json:"amount"`
	PlacedAt time.Time `json:"placed_at"`
}

type Round struct {
	ID             string      `json:"id"`
	RoomID         string      `json:"room_id"`
	Status         RoundStatus `json:"status"`
	StartTime      *time.Time  `json:"start_time"`
	EndTime        *time.Time  `json:"end_time"`
	Bets           []Bet       `json:"bets"`
	TotalPool      float64     `json:"total_pool"`
	WinnerID       string      `json:"winner_id,omitempty"`
	WinnerUsername string      `json:"winner_username,omitempty"`
	WinnerAmount   float64     `json:"winner_amount,omitempty"`
	Commission     float64     `json:"commission,omitempty"`
	DrawValue      float64     `json:"draw_value,omitempty"`
}

// DistinctBettors counts the players that placed at least one bet,
// not the number of bets.
func (r *Round) DistinctBettors() int {
	seen := make(map[string]struct{}, len(r.Bets))
	for _, b := range r.Bets {
		seen[b.PlayerID] = struct{}{}
	}

	return len(seen)
}

// BettorTotal is the player's cumulative bet amount this round.
func (r *Round) BettorTotal(playerID string) float64 {
	var total float64
	for _, b := range r.Bets {
		if b.PlayerID == playerID {
			total += b.Amount
		}
	}

	return total
}

// HasBettor reports whether the player already placed a bet this round.
func (r *Round) HasBettor(playerID string) bool {
	for _, b := range r.Bets {
		if b.PlayerID == playerID {
			return true
		}
	}

	return false
}

// Snapshot returns a copy safe to hand to event consumers while the
// round is still being mutated by its room.
func (r *Round) Snapshot() Round {
	cp := *r
	cp.Bets = append([]Bet(nil), r.Bets...)

	return cp
}
