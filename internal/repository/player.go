package repository

import (
	"database/sql"
	"fmt"
	"time"

	"go-grandwager/internal/model"
	"go-grandwager/internal/repository/mysql"
)

// ErrInsufficientBalance is returned by AdjustBalance when a debit would
// take the player below zero. The adjustment is a single conditional
// UPDATE, so two racing debits for the same player cannot both succeed.
var ErrInsufficientBalance = model.ErrInsufficientBalance

type PlayerRepository struct {
	dbhandler *mysql.Handler
}

func NewPlayerRepository(dbhandler *mysql.Handler) *PlayerRepository {
	return &PlayerRepository{dbhandler: dbhandler}
}

func (repo *PlayerRepository) GetByID(id string) (*model.Player, error) {
	const op = "repository.player.GetByID"

	const query = "SELECT id, username, balance, created_at FROM players WHERE id = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	player := &model.Player{}

	err = row.Scan(&player.ID, &player.Username, &player.Balance, &player.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return player, nil
}

func (repo *PlayerRepository) GetByUsername(username string) (*model.Player, error) {
	const op = "repository.player.GetByUsername"

	const query = "SELECT id, username, balance, created_at FROM players WHERE username = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	player := &model.Player{}

	err = row.Scan(&player.ID, &player.Username, &player.Balance, &player.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return player, nil
}

func (repo *PlayerRepository) Create(player *model.Player) error {
	const op = "repository.player.Create"

	now := time.Now()
	if player.CreatedAt.IsZero() {
		player.CreatedAt = now
	}

	const query = "INSERT INTO players(id, username, balance, created_at) VALUES(?, ?, ?, ?)"
	_, err := repo.dbhandler.PrepareAndExecute(query, player.ID, player.Username, player.Balance, player.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *PlayerRepository) AdjustBalance(id string, delta float64) (float64, error) {
	const op = "repository.player.AdjustBalance"

	const query = "UPDATE players SET balance = balance + ? WHERE id = ? AND balance + ? >= 0"
	res, err := repo.dbhandler.PrepareAndExecute(query, delta, id, delta)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if affected == 0 {
		return 0, fmt.Errorf("%s: %w", op, ErrInsufficientBalance)
	}

	player, err := repo.GetByID(id)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return player.Balance, nil
}
