package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go-grandwager/internal/model"
	"go-grandwager/internal/repository/mysql"
)

type RoundRepository struct {
	dbhandler *mysql.Handler
}

func NewRoundRepository(dbhandler *mysql.Handler) *RoundRepository {
	return &RoundRepository{dbhandler: dbhandler}
}

// Save upserts the round document. The bet list only grows while the
// round is waiting or active; a finished round is written once and the
// update guard refuses to touch a row already sealed.
func (repo *RoundRepository) Save(round *model.Round) error {
	const op = "repository.round.Save"

	bets, err := json.Marshal(round.Bets)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	const query = "INSERT INTO rounds(id, room_id, status, start_time, end_time, bets, total_pool, " +
		"winner_id, winner_username, winner_amount, commission, draw_value) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE " +
		"status = IF(status = 'finished', status, VALUES(status)), " +
		"start_time = IF(status = 'finished', start_time, VALUES(start_time)), " +
		"end_time = IF(status = 'finished', end_time, VALUES(end_time)), " +
		"bets = IF(status = 'finished', bets, VALUES(bets)), " +
		"total_pool = IF(status = 'finished', total_pool, VALUES(total_pool)), " +
		"winner_id = IF(status = 'finished', winner_id, VALUES(winner_id)), " +
		"winner_username = IF(status = 'finished', winner_username, VALUES(winner_username)), " +
		"winner_amount = IF(status = 'finished', winner_amount, VALUES(winner_amount)), " +
		"commission = IF(status = 'finished', commission, VALUES(commission)), " +
		"draw_value = IF(status = 'finished', draw_value, VALUES(draw_value))"
	_, err = repo.dbhandler.PrepareAndExecute(query,
		round.ID, round.RoomID, string(round.Status), round.StartTime, round.EndTime,
		string(bets), round.TotalPool, round.WinnerID, round.WinnerUsername,
		round.WinnerAmount, round.Commission, round.DrawValue)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *RoundRepository) FindByID(id string) (*model.Round, error) {
	const op = "repository.round.FindByID"

	const query = "SELECT id, room_id, status, start_time, end_time, bets, total_pool, " +
		"winner_id, winner_username, winner_amount, commission, draw_value FROM rounds WHERE id = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var (
		round  model.Round
		status string
		bets   []byte
	)

	err = row.Scan(&round.ID, &round.RoomID, &status, &round.StartTime, &round.EndTime,
		&bets, &round.TotalPool, &round.WinnerID, &round.WinnerUsername,
		&round.WinnerAmount, &round.Commission, &round.DrawValue)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	round.Status = model.RoundStatus(status)

	if len(bets) > 0 {
		if err = json.Unmarshal(bets, &round.Bets); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &round, nil
}
