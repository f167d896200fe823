package engine

import "go-grandwager/internal/model"

// PlayerLedger is the external balance store. AdjustBalance must be atomic
// per player: a debit that would take the balance below zero fails with
// model.ErrInsufficientBalance (possibly wrapped) and two racing
// adjustments for one player cannot both pass the check. Any other error
// means the ledger itself failed.
type PlayerLedger interface {
	GetByID(id string) (*model.Player, error)
	GetByUsername(username string) (*model.Player, error)
	Create(player *model.Player) error
	AdjustBalance(id string, delta float64) (float64, error)
}

type RoomStore interface {
	Save(room *model.Room) error
	FindByID(id string) (*model.Room, error)
	FindByName(name string) (*model.Room, error)
}

// RoundStore persists round documents. The document is append-then-seal:
// the bet list grows only while the round is waiting or active and a
// finished round is never mutated again.
type RoundStore interface {
	Save(round *model.Round) error
	FindByID(id string) (*model.Round, error)
}
