package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"go-grandwager/internal/model"
	"go-grandwager/internal/repository/mysql"
)

type RoomRepository struct {
	dbhandler *mysql.Handler
}

func NewRoomRepository(dbhandler *mysql.Handler) *RoomRepository {
	return &RoomRepository{dbhandler: dbhandler}
}

func (repo *RoomRepository) Save(room *model.Room) error {
	const op = "repository.room.Save"

	audience, err := json.Marshal(room.Audience)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	const query = "INSERT INTO rooms(id, name, type, min_bet, max_bet, max_betters, round_duration_ms, " +
		"commission_percent, invite_code, creator_id, seeded, status, audience, current_round_id, created_at) " +
		"VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?) " +
		"ON DUPLICATE KEY UPDATE status = VALUES(status), audience = VALUES(audience), " +
		"current_round_id = VALUES(current_round_id)"
	_, err = repo.dbhandler.PrepareAndExecute(query,
		room.ID, room.Name, string(room.Type), room.MinBet, room.MaxBet, room.MaxBetters,
		room.RoundDurationMs, room.CommissionPercent, room.InviteCode, room.CreatorID,
		room.Seeded, string(room.Status), string(audience), room.CurrentRoundID, room.CreatedAt)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (repo *RoomRepository) FindByID(id string) (*model.Room, error) {
	const op = "repository.room.FindByID"

	const query = "SELECT id, name, type, min_bet, max_bet, max_betters, round_duration_ms, " +
		"commission_percent, invite_code, creator_id, seeded, status, audience, current_round_id, created_at " +
		"FROM rooms WHERE id = ?"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, id)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return scanRoom(row)
}

func (repo *RoomRepository) FindByName(name string) (*model.Room, error) {
	const op = "repository.room.FindByName"

	const query = "SELECT id, name, type, min_bet, max_bet, max_betters, round_duration_ms, " +
		"commission_percent, invite_code, creator_id, seeded, status, audience, current_round_id, created_at " +
		"FROM rooms WHERE name = ? ORDER BY created_at DESC LIMIT 1"
	row, err := repo.dbhandler.PrepareAndQueryRow(query, name)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return scanRoom(row)
}

func scanRoom(row *sql.Row) (*model.Room, error) {
	const op = "repository.room.scanRoom"

	var (
		room     model.Room
		roomType string
		status   string
		audience []byte
	)

	err := row.Scan(&room.ID, &room.Name, &roomType, &room.MinBet, &room.MaxBet, &room.MaxBetters,
		&room.RoundDurationMs, &room.CommissionPercent, &room.InviteCode, &room.CreatorID,
		&room.Seeded, &status, &audience, &room.CurrentRoundID, &room.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	room.Type = model.RoomType(roomType)
	room.Status = model.RoomStatus(status)

	if len(audience) > 0 {
		if err = json.Unmarshal(audience, &room.Audience); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}

	return &room, nil
}
