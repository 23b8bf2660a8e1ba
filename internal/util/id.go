package util

import (
	"crypto/rand"
	"math/big"

	"github.com/google/uuid"
)

// NewID returns a random unique identifier.
func NewID() string {
	return uuid.NewString()
}

// Excludes the ambiguous characters 0/O and 1/I.
const inviteCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// NewInviteCode returns an 8-character group invite code.
func NewInviteCode() string {
	max := big.NewInt(int64(len(inviteCodeAlphabet)))
	code := make([]byte, 8)
	for i := range code {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return uuid.NewString()[:8]
		}
		code[i] = inviteCodeAlphabet[n.Int64()]
	}
	return string(code)
}
