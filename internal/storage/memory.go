package storage

import (
	"errors"
	"sync"

	"go-grandwager/internal/model"
)

var (
	ErrInsufficientBalance = model.ErrInsufficientBalance
	ErrPlayerNotFound      = errors.New("player not found")
	ErrDuplicateUsername   = errors.New("username already taken")
)

// MemoryLedger keeps player balances in memory. Balance adjustment is
// serialized per player under the store lock, so two racing debits for
// the same player can never both pass the balance check.
type MemoryLedger struct {
	mu      sync.RWMutex
	players map[string]*model.Player
	names   map[string]string
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		players: make(map[string]*model.Player),
		names:   make(map[string]string),
	}
}

func (l *MemoryLedger) GetByID(id string) (*model.Player, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	player, ok := l.players[id]
	if !ok {
		return nil, nil
	}

	cp := *player

	return &cp, nil
}

func (l *MemoryLedger) GetByUsername(username string) (*model.Player, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	id, ok := l.names[username]
	if !ok {
		return nil, nil
	}

	cp := *l.players[id]

	return &cp, nil
}

func (l *MemoryLedger) Create(player *model.Player) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.names[player.Username]; ok {
		return ErrDuplicateUsername
	}

	cp := *player
	l.players[cp.ID] = &cp
	l.names[cp.Username] = cp.ID

	return nil
}

func (l *MemoryLedger) AdjustBalance(id string, delta float64) (float64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	player, ok := l.players[id]
	if !ok {
		return 0, ErrPlayerNotFound
	}

	if player.Balance+delta < 0 {
		return player.Balance, ErrInsufficientBalance
	}

	player.Balance += delta

	return player.Balance, nil
}

// MemoryRoomStore is a map-backed room store for running without MySQL.
type MemoryRoomStore struct {
	mu    sync.RWMutex
	rooms map[string]*model.Room
}

func NewMemoryRoomStore() *MemoryRoomStore {
	return &MemoryRoomStore{rooms: make(map[string]*model.Room)}
}

func (s *MemoryRoomStore) Save(room *model.Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := *room
	cp.Audience = append([]string(nil), room.Audience...)
	s.rooms[cp.ID] = &cp

	return nil
}

func (s *MemoryRoomStore) FindByID(id string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	room, ok := s.rooms[id]
	if !ok {
		return nil, nil
	}

	cp := *room
	cp.Audience = append([]string(nil), room.Audience...)

	return &cp, nil
}

func (s *MemoryRoomStore) FindByName(name string) (*model.Room, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *model.Room
	for _, room := range s.rooms {
		if room.Name != name {
			continue
		}
		if newest == nil || room.CreatedAt.After(newest.CreatedAt) {
			newest = room
		}
	}

	if newest == nil {
		return nil, nil
	}

	cp := *newest
	cp.Audience = append([]string(nil), newest.Audience...)

	return &cp, nil
}

// MemoryRoundStore keeps round documents. A round already finished is
// never overwritten; the late write is dropped.
type MemoryRoundStore struct {
	mu     sync.RWMutex
	rounds map[string]*model.Round
}

func NewMemoryRoundStore() *MemoryRoundStore {
	return &MemoryRoundStore{rounds: make(map[string]*model.Round)}
}

func (s *MemoryRoundStore) Save(round *model.Round) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.rounds[round.ID]; ok && existing.Status == model.RoundFinished {
		return nil
	}

	cp := round.Snapshot()
	s.rounds[round.ID] = &cp

	return nil
}

func (s *MemoryRoundStore) FindByID(id string) (*model.Round, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	round, ok := s.rounds[id]
	if !ok {
		return nil, nil
	}

	cp := round.Snapshot()

	return &cp, nil
}
