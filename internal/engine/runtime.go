package engine

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"
	"go-grandwager/internal/event"
	"go-grandwager/internal/job"
	"go-grandwager/internal/lib/logger/sl"
	"go-grandwager/internal/model"
	"golang.org/x/exp/slog"
)

// roomRuntime is the single writer for one room. All round mutation
// (bet admission, timer firing, audience changes) flows through its
// mailbox and is handled by one goroutine; timer callbacks only enqueue
// commands and never touch state they do not own. Rooms never lock each
// other.
type roomRuntime struct {
	log     *slog.Logger
	room    *model.Room
	current *model.Round

	players PlayerLedger
	rooms   RoomStore
	rounds  RoundStore
	sink    event.Sink
	roller  *Roller
	jobs    job.Queue
	sealed  *cache.Cache
	delay   time.Duration

	mailbox  chan command
	quit     chan struct{}
	stopOnce sync.Once
	stopMu   sync.RWMutex
	stopped  bool

	deadline *time.Timer
	tick     *time.Ticker
	tickDone chan struct{}
}

type command interface{}

type placeBetCmd struct {
	playerID string
	amount   float64
	reply    chan betReply
}

type betReply struct {
	round model.Round
	err   error
}

type joinCmd struct {
	playerID string
	reply    chan roomReply
}

type roomReply struct {
	room model.Room
	err  error
}

type leaveCmd struct {
	playerID string
	reply    chan leaveReply
}

type leaveReply struct {
	closed bool
	err    error
}

type closeCmd struct {
	requesterID string
	reply       chan error
}

type openRoundCmd struct {
	reply chan model.Round
}

type deadlineCmd struct {
	roundID string
}

type tickCmd struct{}

type snapshotCmd struct {
	reply chan snapshot
}

type snapshot struct {
	room  model.Room
	round *model.Round
}

func (rt *roomRuntime) run() {
	for {
		select {
		case cmd := <-rt.mailbox:
			rt.handle(cmd)
		case <-rt.quit:
			rt.cancelTimers()
			rt.drain()
			return
		}
	}
}

// drain answers every command still queued at shutdown so no caller is
// left blocked on a reply. Deliveries cannot race past it: stop flips the
// stopped flag before closing quit, so once the actor sees quit the
// mailbox only shrinks.
func (rt *roomRuntime) drain() {
	for {
		select {
		case cmd := <-rt.mailbox:
			rt.refuse(cmd)
		default:
			return
		}
	}
}

// refuse rejects a queued command without touching room state.
func (rt *roomRuntime) refuse(cmd command) {
	switch c := cmd.(type) {
	case placeBetCmd:
		c.reply <- betReply{err: ErrRoomClosed}
	case joinCmd:
		c.reply <- roomReply{err: ErrRoomClosed}
	case leaveCmd:
		c.reply <- leaveReply{err: ErrRoomClosed}
	case closeCmd:
		c.reply <- ErrRoomClosed
	case openRoundCmd:
		if c.reply != nil {
			c.reply <- model.Round{}
		}
	case snapshotCmd:
		c.reply <- snapshot{room: rt.roomSnapshot()}
	}
}

func (rt *roomRuntime) handle(cmd command) {
	switch c := cmd.(type) {
	case placeBetCmd:
		rt.handlePlaceBet(c)
	case joinCmd:
		rt.handleJoin(c)
	case leaveCmd:
		rt.handleLeave(c)
	case closeCmd:
		rt.handleClose(c)
	case openRoundCmd:
		rt.handleOpenRound(c)
	case deadlineCmd:
		rt.handleDeadline(c)
	case tickCmd:
		rt.handleTick()
	case snapshotCmd:
		rt.handleSnapshot(c)
	}
}

// enqueue delivers a command to the actor, failing fast once the runtime
// has stopped so late timer callbacks cannot block forever. The read lock
// is held across the send: stop cannot close quit while a delivery is in
// flight, so every accepted command is answered, either by handle or by
// the shutdown drain.
func (rt *roomRuntime) enqueue(cmd command) bool {
	rt.stopMu.RLock()
	defer rt.stopMu.RUnlock()

	if rt.stopped {
		return false
	}

	rt.mailbox <- cmd

	return true
}

func (rt *roomRuntime) stop() {
	rt.stopOnce.Do(func() {
		rt.stopMu.Lock()
		rt.stopped = true
		rt.stopMu.Unlock()

		close(rt.quit)
	})
}

// ---- bet admission ----

func (rt *roomRuntime) handlePlaceBet(c placeBetCmd) {
	round, err := rt.admitBet(c.playerID, c.amount)
	if err != nil {
		c.reply <- betReply{err: err}
		return
	}

	c.reply <- betReply{round: round}
}

// admitBet runs the admission checks in order; the first failure wins and
// nothing is mutated on any rejection.
func (rt *roomRuntime) admitBet(playerID string, amount float64) (model.Round, error) {
	if rt.room.Status == model.RoomClosed {
		return model.Round{}, ErrRoomClosed
	}

	if !rt.room.HasMember(playerID) {
		return model.Round{}, ErrNotInRoom
	}

	round := rt.current
	if round == nil || round.Status == model.RoundFinished {
		return model.Round{}, ErrNoOpenRound
	}

	if !round.HasBettor(playerID) && round.DistinctBettors() >= rt.room.MaxBetters {
		return model.Round{}, ErrRoomFullForRound
	}

	if amount < rt.room.MinBet {
		return model.Round{}, fmt.Errorf("%w: minimum bet is %v", ErrBetBelowMinimum, rt.room.MinBet)
	}

	total := round.BettorTotal(playerID)
	if total+amount > rt.room.MaxBet {
		remaining := rt.room.MaxBet - total
		if remaining < 0 {
			remaining = 0
		}

		return model.Round{}, fmt.Errorf("%w: you can bet up to %v more this round", ErrBetAboveRoomCap, remaining)
	}

	player, err := rt.players.GetByID(playerID)
	if err != nil {
		return model.Round{}, fmt.Errorf("engine.runtime.admitBet: %w", err)
	}
	if player == nil {
		return model.Round{}, ErrPlayerNotFound
	}
	if player.Balance < amount {
		return model.Round{}, ErrInsufficientFunds
	}

	// The ledger re-checks atomically; a concurrent bet by the same
	// player in another room may have won the race since the read above.
	// Only a genuine below-zero refusal maps to the user rejection; a
	// ledger outage is an internal failure, not "insufficient balance".
	if _, err = rt.players.AdjustBalance(playerID, -amount); err != nil {
		if errors.Is(err, model.ErrInsufficientBalance) {
			return model.Round{}, ErrInsufficientFunds
		}

		rt.log.Warn("ledger debit failed", sl.Player(playerID), sl.Err(err))

		return model.Round{}, fmt.Errorf("engine.runtime.admitBet: %w", err)
	}

	bet := model.Bet{
		PlayerID: playerID,
		Username: player.Username,
		Amount:   amount,
		PlacedAt: time.Now(),
	}

	round.Bets = append(round.Bets, bet)
	round.TotalPool += amount

	rt.persistRound()

	rt.emit(event.BetAccepted, map[string]interface{}{
		"room_id": rt.room.ID,
		"bet":     bet,
		"round":   round.Snapshot(),
	})

	rt.log.Info("bet accepted",
		sl.Round(round.ID), sl.Player(playerID), slog.Float64("amount", amount))

	if round.Status == model.RoundWaiting && round.DistinctBettors() >= 2 {
		rt.activate()
	}

	return round.Snapshot(), nil
}

// ---- lifecycle ----

func (rt *roomRuntime) activate() {
	round := rt.current
	if !round.Status.CanTransition(model.RoundActive) {
		return
	}

	now := time.Now()
	end := now.Add(rt.room.RoundDuration())

	round.StartTime = &now
	round.EndTime = &end
	round.Status = model.RoundActive
	rt.room.Status = model.RoomActive

	rt.persistRound()
	rt.persistRoom()

	rt.emit(event.RoundStart, map[string]interface{}{
		"room_id":        rt.room.ID,
		"round":          round.Snapshot(),
		"time_remaining": rt.room.RoundDurationMs,
	})

	roundID := round.ID
	rt.deadline = time.AfterFunc(rt.room.RoundDuration(), func() {
		rt.enqueue(deadlineCmd{roundID: roundID})
	})
	rt.startTick()

	rt.log.Info("round activated", sl.Room(rt.room.ID), sl.Round(round.ID))
}

func (rt *roomRuntime) handleDeadline(c deadlineCmd) {
	round := rt.current
	// A deadline firing against a round no longer active is a no-op, not
	// an error: double fires and stale timers land here.
	if round == nil || round.ID != c.roundID || !round.Status.CanTransition(model.RoundFinished) {
		return
	}

	rt.cancelTimers()

	var winner map[string]interface{}

	if len(round.Bets) > 0 {
		draw := rt.roller.Draw(round.TotalPool)
		winBet, _ := SelectWinningBet(round.Bets, draw.Value)
		commission, winnerAmount := ComputePayout(round.TotalPool, rt.room.CommissionPercent)

		round.WinnerID = winBet.PlayerID
		round.WinnerUsername = winBet.Username
		round.WinnerAmount = winnerAmount
		round.Commission = commission
		round.DrawValue = draw.Value

		if _, err := rt.players.AdjustBalance(winBet.PlayerID, winnerAmount); err != nil {
			rt.log.Warn("failed to credit winner", sl.Player(winBet.PlayerID), sl.Err(err))
		}

		winner = map[string]interface{}{
			"player_id":  winBet.PlayerID,
			"username":   winBet.Username,
			"amount_won": winnerAmount,
		}

		rt.log.Info("round won",
			sl.Room(rt.room.ID), sl.Round(round.ID), sl.Player(winBet.PlayerID),
			slog.Float64("amount_won", winnerAmount),
			slog.Float64("total_pool", round.TotalPool),
			slog.Float64("draw_value", draw.Value))
	} else {
		rt.log.Info("round finished with no bets", sl.Room(rt.room.ID), sl.Round(round.ID))
	}

	round.Status = model.RoundFinished

	// Persistence is best effort: a storage outage never stalls the room.
	rt.persistRound()
	rt.sealed.Set(round.ID, round.Snapshot(), cache.DefaultExpiration)

	rt.emit(event.RoundEnd, map[string]interface{}{
		"room_id":    rt.room.ID,
		"round":      round.Snapshot(),
		"winner":     winner,
		"draw_value": round.DrawValue,
	})

	if len(round.Bets) > 0 {
		rt.jobs.Dispatch(&settlementJob{
			log:      rt.log,
			sink:     rt.sink,
			players:  rt.players,
			roomID:   rt.room.ID,
			roomName: rt.room.Name,
			round:    round.Snapshot(),
		}, 0)
	}

	rt.room.Status = model.RoomWaiting
	rt.persistRoom()
	rt.current = nil

	rt.jobs.Dispatch(job.Func(func() {
		rt.enqueue(openRoundCmd{})
	}), rt.delay)
}

func (rt *roomRuntime) handleOpenRound(c openRoundCmd) {
	if rt.room.Status == model.RoomClosed {
		if c.reply != nil {
			c.reply <- model.Round{}
		}
		return
	}

	round := &model.Round{
		ID:     uuid.New().String(),
		RoomID: rt.room.ID,
		Status: model.RoundWaiting,
		Bets:   []model.Bet{},
	}

	rt.current = round
	rt.room.CurrentRoundID = round.ID

	rt.persistRound()
	rt.persistRoom()

	rt.emit(event.RoundWaiting, map[string]interface{}{
		"room_id": rt.room.ID,
		"round":   round.Snapshot(),
		"message": "Waiting for at least 2 players to place bets",
	})

	rt.log.Info("waiting round created", sl.Room(rt.room.ID), sl.Round(round.ID))

	if c.reply != nil {
		c.reply <- round.Snapshot()
	}
}

func (rt *roomRuntime) handleTick() {
	round := rt.current
	if round == nil || round.Status != model.RoundActive || round.EndTime == nil {
		return
	}

	// Recomputed from the fixed end time, so ticks self-correct for
	// scheduler jitter instead of drifting like a naive countdown.
	remaining := time.Until(*round.EndTime)
	if remaining < 0 {
		remaining = 0
	}

	rt.emit(event.RoundUpdate, map[string]interface{}{
		"room_id":        rt.room.ID,
		"round":          round.Snapshot(),
		"time_remaining": remaining.Milliseconds(),
		"bettors":        bettorTotals(round),
	})
}

// ---- membership ----

func (rt *roomRuntime) handleJoin(c joinCmd) {
	if rt.room.Status == model.RoomClosed {
		c.reply <- roomReply{err: ErrRoomClosed}
		return
	}

	if rt.room.HasMember(c.playerID) {
		c.reply <- roomReply{room: rt.roomSnapshot()}
		return
	}

	rt.room.AddMember(c.playerID)
	rt.persistRoom()

	rt.emit(event.PlayerJoinedRoom, map[string]interface{}{
		"room_id":      rt.room.ID,
		"player_id":    c.playerID,
		"username":     rt.username(c.playerID),
		"player_count": len(rt.room.Audience),
	})

	rt.log.Info("player joined room", sl.Room(rt.room.ID), sl.Player(c.playerID))

	c.reply <- roomReply{room: rt.roomSnapshot()}
}

func (rt *roomRuntime) handleLeave(c leaveCmd) {
	if !rt.room.RemoveMember(c.playerID) {
		c.reply <- leaveReply{err: ErrNotInRoom}
		return
	}

	closed := false
	if len(rt.room.Audience) == 0 && rt.room.Type == model.RoomPrivate {
		rt.doClose()
		closed = true
	} else {
		rt.persistRoom()
	}

	rt.emit(event.PlayerLeftRoom, map[string]interface{}{
		"room_id":      rt.room.ID,
		"player_id":    c.playerID,
		"username":     rt.username(c.playerID),
		"player_count": len(rt.room.Audience),
	})

	rt.log.Info("player left room", sl.Room(rt.room.ID), sl.Player(c.playerID))

	c.reply <- leaveReply{closed: closed}
}

// handleClose applies the close policy: creator only, never for seeded
// public rooms, and never while the current round holds bets.
func (rt *roomRuntime) handleClose(c closeCmd) {
	if rt.room.Seeded {
		c.reply <- ErrSeededRoom
		return
	}

	if rt.room.CreatorID != c.requesterID {
		c.reply <- ErrNotCreator
		return
	}

	if rt.current != nil && len(rt.current.Bets) > 0 {
		c.reply <- ErrRoundHasBets
		return
	}

	rt.doClose()

	c.reply <- nil
}

func (rt *roomRuntime) doClose() {
	rt.cancelTimers()

	rt.room.Status = model.RoomClosed
	rt.current = nil
	rt.persistRoom()

	rt.emit(event.RoomClosed, map[string]interface{}{
		"room_id": rt.room.ID,
		"message": "Room has been closed",
	})

	rt.log.Info("room closed", sl.Room(rt.room.ID))
}

func (rt *roomRuntime) handleSnapshot(c snapshotCmd) {
	s := snapshot{room: rt.roomSnapshot()}
	if rt.current != nil {
		cp := rt.current.Snapshot()
		s.round = &cp
	}

	c.reply <- s
}

// ---- helpers ----

func (rt *roomRuntime) startTick() {
	rt.tick = time.NewTicker(time.Second)
	rt.tickDone = make(chan struct{})

	tick := rt.tick
	done := rt.tickDone
	go func() {
		for {
			select {
			case <-tick.C:
				if !rt.enqueue(tickCmd{}) {
					return
				}
			case <-done:
				return
			}
		}
	}()
}

func (rt *roomRuntime) cancelTimers() {
	if rt.deadline != nil {
		rt.deadline.Stop()
		rt.deadline = nil
	}
	if rt.tick != nil {
		rt.tick.Stop()
		close(rt.tickDone)
		rt.tick = nil
	}
}

func (rt *roomRuntime) persistRound() {
	if rt.current == nil {
		return
	}
	if err := rt.rounds.Save(rt.current); err != nil {
		rt.log.Warn("failed to persist round", sl.Round(rt.current.ID), sl.Err(err))
	}
}

func (rt *roomRuntime) persistRoom() {
	if err := rt.rooms.Save(rt.room); err != nil {
		rt.log.Warn("failed to persist room", sl.Room(rt.room.ID), sl.Err(err))
	}
}

func (rt *roomRuntime) emit(name string, data map[string]interface{}) {
	if err := rt.sink.Emit(event.RoomChannel(rt.room.ID), name, data); err != nil {
		rt.log.Warn("failed to emit event", slog.String("event", name), sl.Err(err))
	}
}

func (rt *roomRuntime) roomSnapshot() model.Room {
	cp := *rt.room
	cp.Audience = append([]string(nil), rt.room.Audience...)

	return cp
}

func (rt *roomRuntime) username(playerID string) string {
	player, err := rt.players.GetByID(playerID)
	if err != nil || player == nil {
		return "Unknown"
	}

	return player.Username
}

func bettorTotals(round *model.Round) []map[string]interface{} {
	var out []map[string]interface{}
	seen := make(map[string]struct{}, len(round.Bets))

	for _, bet := range round.Bets {
		if _, ok := seen[bet.PlayerID]; ok {
			continue
		}
		seen[bet.PlayerID] = struct{}{}

		out = append(out, map[string]interface{}{
			"id":        bet.PlayerID,
			"username":  bet.Username,
			"total_bet": round.BettorTotal(bet.PlayerID),
		})
	}

	return out
}
