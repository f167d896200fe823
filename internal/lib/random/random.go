package random

import (
	"math/rand"
	"time"
)

const (
	seedAlphabet   = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
)

// NewRandomString returns a random alphanumeric string of the given size.
func NewRandomString(size int) string {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	b := make([]byte, size)
	for i := range b {
		b[i] = seedAlphabet[rnd.Intn(len(seedAlphabet))]
	}

	return string(b)
}

// NewInviteCode returns a short uppercase code for private rooms. Codes are
// not checked for global uniqueness; lookups are scoped to open private
// rooms, which keeps the collision population small.
func NewInviteCode() string {
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))

	b := make([]byte, 6)
	for i := range b {
		b[i] = inviteAlphabet[rnd.Intn(len(inviteAlphabet))]
	}

	return string(b)
}
