package model

import (
	"errors"
	"time"
)

// ErrInsufficientBalance is the sentinel every ledger implementation
// returns, possibly wrapped, when a debit would take the player's balance
// below zero. Callers distinguish it from ledger outages with errors.Is.
var ErrInsufficientBalance = errors.New("insufficient balance")

type Player struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	Balance   float64   `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
}
