package engine

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"go-grandwager/internal/lib/random"
	"go-grandwager/internal/model"
)

// Roller produces the uniform draw value for a round. Each draw hashes a
// fresh client seed against the server seed with an increasing nonce, so
// the raw value persisted on the sealed round can be replayed client-side.
type Roller struct {
	mu         sync.Mutex
	serverSeed string
	nonce      int
}

func NewRoller() *Roller {
	return &Roller{
		serverSeed: random.NewRandomString(64),
	}
}

type Draw struct {
	Value      float64
	ClientSeed string
	Hash       string
	Nonce      int
}

// Draw returns a value uniform over [0, pool). The first 52 bits of the
// hmac-sha512 digest map to [0, 1), so the value is always strictly below
// the pool.
func (r *Roller) Draw(pool float64) Draw {
	r.mu.Lock()
	defer r.mu.Unlock()

	clientSeed := uuid.New().String()

	h := hmac.New(sha512.New, []byte(r.serverSeed))
	h.Write([]byte(clientSeed + "-" + strconv.Itoa(r.nonce)))
	hash := hex.EncodeToString(h.Sum(nil))

	part, _ := strconv.ParseInt(hash[:13], 16, 64)
	fraction := float64(part) / float64(int64(1)<<52)

	draw := Draw{
		Value:      fraction * pool,
		ClientSeed: clientSeed,
		Hash:       hash,
		Nonce:      r.nonce,
	}

	r.nonce++

	return draw
}

// SelectWinningBet walks the bets in arrival order accumulating a running
// sum; the first bet whose cumulative sum reaches r wins. The comparison
// is >= so a draw landing exactly on the upper boundary of the last bet
// still selects it instead of selecting nobody.
func SelectWinningBet(bets []model.Bet, r float64) (model.Bet, bool) {
	if len(bets) == 0 {
		return model.Bet{}, false
	}

	var cumulative float64
	for _, bet := range bets {
		cumulative += bet.Amount
		if cumulative >= r {
			return bet, true
		}
	}

	// Floating point remainder at the very top of the range.
	return bets[len(bets)-1], true
}
