package engine

import "errors"

// Every user-facing rejection is one of these sentinels, possibly wrapped
// with extra detail. The message is the human-readable reason handed back
// across the public boundary; nothing here is ever raised as a panic.
var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrInvalidRoomSpec   = errors.New("invalid room configuration")
	ErrRoomClosed        = errors.New("room is closed")
	ErrNotInRoom         = errors.New("you are not in this room")
	ErrNoOpenRound       = errors.New("no open round in this room")
	ErrRoomFullForRound  = errors.New("round already has the maximum number of bettors")
	ErrBetBelowMinimum   = errors.New("bet is below the room minimum")
	ErrBetAboveRoomCap   = errors.New("bet exceeds your room limit for this round")
	ErrInsufficientFunds = errors.New("insufficient balance")
	ErrPlayerNotFound    = errors.New("player not found")
	ErrNotCreator        = errors.New("only the room creator can close the room")
	ErrSeededRoom        = errors.New("default rooms cannot be closed")
	ErrRoundHasBets      = errors.New("room cannot be closed while the current round has bets")
	ErrPrivateRoomQuota  = errors.New("private room limit reached")
	ErrInvalidInvite     = errors.New("invalid invite code or room not found")
	ErrInvalidUsername   = errors.New("username is required")
	ErrDuplicateUsername = errors.New("username already taken")
)

var rejections = []error{
	ErrRoomNotFound,
	ErrInvalidRoomSpec,
	ErrRoomClosed,
	ErrNotInRoom,
	ErrNoOpenRound,
	ErrRoomFullForRound,
	ErrBetBelowMinimum,
	ErrBetAboveRoomCap,
	ErrInsufficientFunds,
	ErrPlayerNotFound,
	ErrNotCreator,
	ErrSeededRoom,
	ErrRoundHasBets,
	ErrPrivateRoomQuota,
	ErrInvalidInvite,
	ErrInvalidUsername,
	ErrDuplicateUsername,
}

// Rejection reports whether err is a user-facing rejection and returns its
// human-readable reason. Anything else is an internal failure.
func Rejection(err error) (string, bool) {
	for _, sentinel := range rejections {
		if errors.Is(err, sentinel) {
			return err.Error(), true
		}
	}

	return "", false
}
