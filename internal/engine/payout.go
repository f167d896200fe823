package engine

import (
	"go-grandwager/internal/event"
	"go-grandwager/internal/lib/logger/sl"
	"go-grandwager/internal/model"
	"golang.org/x/exp/slog"
)

// ComputePayout splits the pool into the operator commission and the
// amount credited to the winner.
func ComputePayout(totalPool float64, commissionPercent float64) (commission float64, winnerAmount float64) {
	commission = totalPool * commissionPercent / 100
	winnerAmount = totalPool - commission

	return commission, winnerAmount
}

type Settlement struct {
	PlayerID  string
	Username  string
	IsWinner  bool
	TotalBet  float64
	NetResult float64
}

// Settlements derives the per-bettor outcome of a sealed round from its
// bet list and winner field alone. Bettors appear in first-bet order; the
// winner's net result is the payout, everyone else loses their cumulative
// bet.
func Settlements(round *model.Round) []Settlement {
	var out []Settlement
	seen := make(map[string]struct{}, len(round.Bets))

	for _, bet := range round.Bets {
		if _, ok := seen[bet.PlayerID]; ok {
			continue
		}
		seen[bet.PlayerID] = struct{}{}

		s := Settlement{
			PlayerID: bet.PlayerID,
			Username: bet.Username,
			TotalBet: round.BettorTotal(bet.PlayerID),
		}

		if bet.PlayerID == round.WinnerID {
			s.IsWinner = true
			s.NetResult = round.WinnerAmount
		} else {
			s.NetResult = -s.TotalBet
		}

		out = append(out, s)
	}

	return out
}

// settlementJob fans out personal settlement notifications after a round
// is sealed. It runs on the worker pool so the room actor never blocks on
// the sink or the ledger.
type settlementJob struct {
	log      *slog.Logger
	sink     event.Sink
	players  PlayerLedger
	roomID   string
	roomName string
	round    model.Round
}

func (j *settlementJob) Execute() {
	for _, s := range Settlements(&j.round) {
		var balance float64
		if player, err := j.players.GetByID(s.PlayerID); err != nil {
			j.log.Warn("failed to read balance for settlement", sl.Player(s.PlayerID), sl.Err(err))
		} else if player != nil {
			balance = player.Balance
		}

		data := map[string]interface{}{
			"room_id":         j.roomID,
			"room_name":       j.roomName,
			"round_id":        j.round.ID,
			"player_id":       s.PlayerID,
			"is_winner":       s.IsWinner,
			"total_bet":       s.TotalBet,
			"net_result":      s.NetResult,
			"winner_username": j.round.WinnerUsername,
			"total_pool":      j.round.TotalPool,
			"current_balance": balance,
		}

		if err := j.sink.Emit(event.PlayerChannel(s.PlayerID), event.PlayerSettlement, data); err != nil {
			j.log.Warn("failed to emit settlement", sl.Player(s.PlayerID), sl.Err(err))
		}
	}
}
