package engine

import (
	"testing"

	"go-grandwager/internal/model"
)

func TestSelectWinningBet(t *testing.T) {
	bets := []model.Bet{
		{PlayerID: "x", Amount: 10},
		{PlayerID: "y", Amount: 30},
		{PlayerID: "z", Amount: 60},
	}

	cases := []struct {
		name   string
		bets   []model.Bet
		r      float64
		winner string
		ok     bool
	}{
		{
			name:   "ZeroSelectsFirst",
			bets:   bets,
			r:      0,
			winner: "x",
			ok:     true,
		},
		{
			name:   "InsideFirstSegment",
			bets:   bets,
			r:      9.99,
			winner: "x",
			ok:     true,
		},
		{
			name:   "ExactBoundaryStaysWithLowerSegment",
			bets:   bets,
			r:      10,
			winner: "x",
			ok:     true,
		},
		{
			name:   "InsideMiddleSegment",
			bets:   bets,
			r:      25,
			winner: "y",
			ok:     true,
		},
		{
			name:   "InsideLastSegment",
			bets:   bets,
			r:      99.999,
			winner: "z",
			ok:     true,
		},
		{
			name:   "UpperEdgeFallsBackToLastBet",
			bets:   bets,
			r:      100.0000001,
			winner: "z",
			ok:     true,
		},
		{
			name: "NoBets",
			bets: nil,
			r:    0,
			ok:   false,
		},
	}

	for _, tc := range cases {
		tc := tc

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			bet, ok := SelectWinningBet(tc.bets, tc.r)
			if ok != tc.ok {
				t.Fatalf("unexpected ok, want: %v, got: %v", tc.ok, ok)
			}
			if ok && bet.PlayerID != tc.winner {
				t.Errorf("unexpected winner, want: %s, got: %s", tc.winner, bet.PlayerID)
			}
		})
	}
}

func TestRollerDrawRange(t *testing.T) {
	t.Parallel()

	roller := NewRoller()

	const pool = 40.0
	for i := 0; i < 10000; i++ {
		draw := roller.Draw(pool)

		if draw.Value < 0 || draw.Value >= pool {
			t.Fatalf("draw out of range [0, %v): %v", pool, draw.Value)
		}
		if draw.Nonce != i {
			t.Fatalf("unexpected nonce, want: %d, got: %d", i, draw.Nonce)
		}
		if len(draw.Hash) != 128 {
			t.Fatalf("unexpected hash length, want: 128, got: %d", len(draw.Hash))
		}
	}
}

// Win frequency over many draws should converge on each bettor's share of
// the pool.
func TestDrawWinRateMatchesPoolShare(t *testing.T) {
	t.Parallel()

	roller := NewRoller()

	bets := []model.Bet{
		{PlayerID: "x", Amount: 10},
		{PlayerID: "y", Amount: 30},
	}

	const (
		trials = 20000
		pool   = 40.0
	)

	wins := map[string]int{}
	for i := 0; i < trials; i++ {
		draw := roller.Draw(pool)

		bet, ok := SelectWinningBet(bets, draw.Value)
		if !ok {
			t.Fatal("expected a winner on every draw")
		}
		wins[bet.PlayerID]++
	}

	rate := float64(wins["x"]) / trials
	if rate < 0.23 || rate > 0.27 {
		t.Errorf("win rate for 25%% stake outside tolerance: %v (wins: %v)", rate, wins)
	}
}
