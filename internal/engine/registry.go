package engine

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go-grandwager/internal/config"
	"go-grandwager/internal/event"
	"go-grandwager/internal/job"
	"go-grandwager/internal/lib/logger/sl"
	"go-grandwager/internal/lib/random"
	"go-grandwager/internal/model"
	"golang.org/x/exp/slog"
)

// SystemCreatorID owns the seeded default rooms.
const SystemCreatorID = "system"

// Registry creates and tracks rooms. It owns one roomRuntime per open
// room, indexed by room id; the entry is created when the room opens and
// dropped when it closes, so no timer or round state ever outlives its
// room.
type Registry struct {
	log      *slog.Logger
	cfg      config.GameConfig
	players  PlayerLedger
	rooms    RoomStore
	rounds   RoundStore
	sink     event.Sink
	validate *validator.Validate
	roller   *Roller
	jobs     job.Queue
	sealed   *cache.Cache

	mu       sync.RWMutex
	runtimes map[string]*roomRuntime
}

func NewRegistry(
	log *slog.Logger,
	cfg config.GameConfig,
	players PlayerLedger,
	rooms RoomStore,
	rounds RoundStore,
	sink event.Sink,
	workers int,
) *Registry {
	jobs := job.NewQueue(64)
	job.NewWorkerPool(workers, jobs).Start()

	return &Registry{
		log:      log,
		cfg:      cfg,
		players:  players,
		rooms:    rooms,
		rounds:   rounds,
		sink:     sink,
		validate: validator.New(),
		roller:   NewRoller(),
		jobs:     jobs,
		sealed:   cache.New(5*time.Minute, 10*time.Minute),
		runtimes: make(map[string]*roomRuntime),
	}
}

// Stop halts every room runtime. Pending timers are cancelled; no
// callback mutates a stale round afterwards.
func (r *Registry) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for id, rt := range r.runtimes {
		rt.stop()
		delete(r.runtimes, id)
	}
}

// ---- players ----

func (r *Registry) CreatePlayer(username string) (*model.Player, error) {
	const op = "engine.registry.CreatePlayer"

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, ErrInvalidUsername
	}

	existing, err := r.players.GetByUsername(username)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if existing != nil {
		return nil, ErrDuplicateUsername
	}

	player := &model.Player{
		ID:        uuid.New().String(),
		Username:  username,
		Balance:   r.cfg.StartingBalance,
		CreatedAt: time.Now(),
	}

	if err = r.players.Create(player); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return player, nil
}

func (r *Registry) Player(id string) (*model.Player, error) {
	return r.players.GetByID(id)
}

func (r *Registry) PlayerByUsername(username string) (*model.Player, error) {
	return r.players.GetByUsername(username)
}

// ---- room creation ----

type CreateRoomInput struct {
	Name            string         `validate:"required"`
	Type            model.RoomType `validate:"required,oneof=public private"`
	MinBet          float64        `validate:"min=1"`
	MaxBet          float64        `validate:"min=1"`
	MaxBetters      int            `validate:"min=2,max=100"`
	RoundDurationMs int64          `validate:"min=10000"`
	CreatorID       string         `validate:"required"`
}

func (r *Registry) CreateRoom(in CreateRoomInput) (*model.Room, error) {
	const op = "engine.registry.CreateRoom"

	r.applyDefaults(&in)

	if err := r.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRoomSpec, validationReason(err))
	}

	if in.MinBet > in.MaxBet {
		return nil, fmt.Errorf("%w: minBet must not exceed maxBet", ErrInvalidRoomSpec)
	}

	if in.Type == model.RoomPrivate {
		// Private rooms are head-to-head regardless of what was asked for.
		in.MaxBetters = 2

		if r.openPrivateRooms(in.CreatorID) >= r.cfg.MaxPrivateRoomsPerPlayer {
			return nil, fmt.Errorf("%w: at most %d open private rooms per player",
				ErrPrivateRoomQuota, r.cfg.MaxPrivateRoomsPerPlayer)
		}
	}

	room := &model.Room{
		ID:                uuid.New().String(),
		Name:              in.Name,
		Type:              in.Type,
		MinBet:            in.MinBet,
		MaxBet:            in.MaxBet,
		MaxBetters:        in.MaxBetters,
		RoundDurationMs:   in.RoundDurationMs,
		CommissionPercent: r.cfg.CommissionPercent,
		CreatorID:         in.CreatorID,
		Status:            model.RoomWaiting,
		Audience:          []string{in.CreatorID},
		CreatedAt:         time.Now(),
	}

	if in.Type == model.RoomPrivate {
		room.InviteCode = random.NewInviteCode()
	}

	if err := r.rooms.Save(room); err != nil {
		r.log.Warn("failed to persist new room", sl.Room(room.ID), sl.Err(err))
	}

	rt := r.openRuntime(room)
	r.awaitWaitingRound(rt)

	r.log.Info("room created",
		sl.Room(room.ID), slog.String("name", room.Name), slog.String("type", string(room.Type)))

	return r.snapshotRoom(rt), nil
}

// DefaultRoomSpec describes one system-seeded public room.
type DefaultRoomSpec struct {
	Name            string
	MinBet          float64
	MaxBet          float64
	MaxBetters      int
	RoundDurationMs int64
}

// EnsureDefaultRooms seeds the default public rooms idempotently: an open
// room with the same name is reused, a previously closed one is reopened,
// and otherwise a fresh room is created. Each seeded room ends up with
// its own waiting round.
func (r *Registry) EnsureDefaultRooms(specs []DefaultRoomSpec) error {
	const op = "engine.registry.EnsureDefaultRooms"

	for _, spec := range specs {
		if r.runtimeByName(spec.Name) != nil {
			continue
		}

		room, err := r.rooms.FindByName(spec.Name)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		if room == nil {
			room = &model.Room{
				ID:                uuid.New().String(),
				Name:              spec.Name,
				Type:              model.RoomPublic,
				MinBet:            spec.MinBet,
				MaxBet:            spec.MaxBet,
				MaxBetters:        spec.MaxBetters,
				RoundDurationMs:   spec.RoundDurationMs,
				CommissionPercent: r.cfg.CommissionPercent,
				CreatorID:         SystemCreatorID,
				Seeded:            true,
				Status:            model.RoomWaiting,
				Audience:          []string{},
				CreatedAt:         time.Now(),
			}
		} else {
			room.Status = model.RoomWaiting
			room.Seeded = true
			room.CurrentRoundID = ""
		}

		if err = r.rooms.Save(room); err != nil {
			r.log.Warn("failed to persist seeded room", sl.Room(room.ID), sl.Err(err))
		}

		rt := r.openRuntime(room)
		r.awaitWaitingRound(rt)

		r.log.Info("default room ready", sl.Room(room.ID), slog.String("name", room.Name))
	}

	return nil
}

// ---- membership ----

func (r *Registry) JoinRoom(roomID, playerID string) (*model.Room, error) {
	rt, ok := r.runtime(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	reply := make(chan roomReply, 1)
	if !rt.enqueue(joinCmd{playerID: playerID, reply: reply}) {
		return nil, ErrRoomClosed
	}

	res := <-reply
	if res.err != nil {
		return nil, res.err
	}

	return &res.room, nil
}

func (r *Registry) JoinRoomByInviteCode(inviteCode, playerID string) (*model.Room, error) {
	rt := r.runtimeByInvite(inviteCode)
	if rt == nil {
		return nil, ErrInvalidInvite
	}

	return r.JoinRoom(rt.room.ID, playerID)
}

func (r *Registry) LeaveRoom(roomID, playerID string) error {
	rt, ok := r.runtime(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	reply := make(chan leaveReply, 1)
	if !rt.enqueue(leaveCmd{playerID: playerID, reply: reply}) {
		return ErrRoomClosed
	}

	res := <-reply
	if res.err != nil {
		return res.err
	}

	if res.closed {
		r.release(roomID)
	}

	return nil
}

func (r *Registry) CloseRoom(roomID, requesterID string) error {
	rt, ok := r.runtime(roomID)
	if !ok {
		return ErrRoomNotFound
	}

	reply := make(chan error, 1)
	if !rt.enqueue(closeCmd{requesterID: requesterID, reply: reply}) {
		return ErrRoomClosed
	}

	if err := <-reply; err != nil {
		return err
	}

	r.release(roomID)

	return nil
}

// ---- betting ----

// PlaceBet validates and admits a bet into the room's current round,
// activating the round when the second distinct bettor arrives. It
// returns the updated round snapshot, or a rejection that caused no
// mutation at all.
func (r *Registry) PlaceBet(roomID, playerID string, amount float64) (*model.Round, error) {
	rt, ok := r.runtime(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	reply := make(chan betReply, 1)
	if !rt.enqueue(placeBetCmd{playerID: playerID, amount: amount, reply: reply}) {
		return nil, ErrRoomClosed
	}

	res := <-reply
	if res.err != nil {
		return nil, res.err
	}

	return &res.round, nil
}

// ---- queries ----

func (r *Registry) Room(roomID string) (*model.Room, error) {
	rt, ok := r.runtime(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	return r.snapshotRoom(rt), nil
}

func (r *Registry) CurrentRound(roomID string) (*model.Round, error) {
	rt, ok := r.runtime(roomID)
	if !ok {
		return nil, ErrRoomNotFound
	}

	reply := make(chan snapshot, 1)
	if !rt.enqueue(snapshotCmd{reply: reply}) {
		return nil, ErrRoomClosed
	}

	return (<-reply).round, nil
}

// SealedRound returns a finished round for client-side replay, served
// from the cache when it is still warm.
func (r *Registry) SealedRound(roundID string) (*model.Round, error) {
	const op = "engine.registry.SealedRound"

	if cached, ok := r.sealed.Get(roundID); ok {
		round := cached.(model.Round)
		return &round, nil
	}

	round, err := r.rounds.FindByID(roundID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if round == nil || round.Status != model.RoundFinished {
		return nil, nil
	}

	r.sealed.Set(round.ID, round.Snapshot(), cache.DefaultExpiration)

	return round, nil
}

func (r *Registry) PublicRooms() []model.Room {
	return r.listRooms(func(room model.Room) bool {
		return room.Type == model.RoomPublic
	})
}

func (r *Registry) ActiveRooms() []model.Room {
	return r.listRooms(func(model.Room) bool { return true })
}

func (r *Registry) RoomByInviteCode(inviteCode string) (*model.Room, error) {
	rt := r.runtimeByInvite(inviteCode)
	if rt == nil {
		return nil, ErrInvalidInvite
	}

	return r.snapshotRoom(rt), nil
}

// ---- internals ----

func (r *Registry) applyDefaults(in *CreateRoomInput) {
	if in.MinBet == 0 {
		in.MinBet = r.cfg.MinBet
	}
	if in.MaxBet == 0 {
		in.MaxBet = r.cfg.MaxBet
	}
	if in.MaxBetters == 0 {
		in.MaxBetters = 2
	}
	if in.RoundDurationMs == 0 {
		in.RoundDurationMs = r.cfg.RoundDurationMs
	}
}

func (r *Registry) openRuntime(room *model.Room) *roomRuntime {
	rt := &roomRuntime{
		log:     r.log.With(sl.Room(room.ID)),
		room:    room,
		players: r.players,
		rooms:   r.rooms,
		rounds:  r.rounds,
		sink:    r.sink,
		roller:  r.roller,
		jobs:    r.jobs,
		sealed:  r.sealed,
		delay:   r.cfg.RoundDelay(),
		mailbox: make(chan command, 32),
		quit:    make(chan struct{}),
	}

	r.mu.Lock()
	r.runtimes[room.ID] = rt
	r.mu.Unlock()

	go rt.run()

	return rt
}

func (r *Registry) awaitWaitingRound(rt *roomRuntime) {
	reply := make(chan model.Round, 1)
	if rt.enqueue(openRoundCmd{reply: reply}) {
		<-reply
	}
}

func (r *Registry) release(roomID string) {
	r.mu.Lock()
	rt, ok := r.runtimes[roomID]
	if ok {
		delete(r.runtimes, roomID)
	}
	r.mu.Unlock()

	if ok {
		rt.stop()
	}
}

func (r *Registry) runtime(roomID string) (*roomRuntime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rt, ok := r.runtimes[roomID]

	return rt, ok
}

// runtimeByName matches on the immutable name field, so no actor
// round-trip is needed.
func (r *Registry) runtimeByName(name string) *roomRuntime {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, rt := range r.runtimes {
		if rt.room.Name == name {
			return rt
		}
	}

	return nil
}

// runtimeByInvite prefers the newest open room when codes collide; codes
// are deliberately not globally unique.
func (r *Registry) runtimeByInvite(inviteCode string) *roomRuntime {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var newest *roomRuntime
	for _, rt := range r.runtimes {
		if rt.room.Type != model.RoomPrivate || rt.room.InviteCode != inviteCode {
			continue
		}
		if newest == nil || rt.room.CreatedAt.After(newest.room.CreatedAt) {
			newest = rt
		}
	}

	return newest
}

func (r *Registry) openPrivateRooms(creatorID string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	count := 0
	for _, rt := range r.runtimes {
		if rt.room.Type == model.RoomPrivate && rt.room.CreatorID == creatorID {
			count++
		}
	}

	return count
}

func (r *Registry) snapshotRoom(rt *roomRuntime) *model.Room {
	reply := make(chan snapshot, 1)
	if !rt.enqueue(snapshotCmd{reply: reply}) {
		return nil
	}

	s := <-reply

	return &s.room
}

func (r *Registry) listRooms(keep func(model.Room) bool) []model.Room {
	r.mu.RLock()
	runtimes := make([]*roomRuntime, 0, len(r.runtimes))
	for _, rt := range r.runtimes {
		runtimes = append(runtimes, rt)
	}
	r.mu.RUnlock()

	var out []model.Room
	for _, rt := range runtimes {
		if room := r.snapshotRoom(rt); room != nil && keep(*room) {
			out = append(out, *room)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	return out
}

func validationReason(err error) string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return err.Error()
	}

	var msgs []string
	for _, fe := range errs {
		switch fe.Field() {
		case "MaxBetters":
			msgs = append(msgs, "maxBetters must be between 2 and 100")
		case "MinBet":
			msgs = append(msgs, "minBet must be at least 1")
		case "RoundDurationMs":
			msgs = append(msgs, "round duration must be at least 10000 ms")
		default:
			msgs = append(msgs, fmt.Sprintf("field %s is invalid", fe.Field()))
		}
	}

	return strings.Join(msgs, ", ")
}
