package utils

import (
	"crypto/rand"
	"math/big"
	"strings"
)

const roomCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

// GenerateRoomCode produces a join code of the given length, skipping the
// easily confused characters (0/O, 1/I).
func GenerateRoomCode(length int) string {
	if length <= 0 {
		length = 6
	}
	var b strings.Builder
	b.Grow(length)
	max := big.NewInt(int64(len(roomCodeAlphabet)))
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand only fails when the platform source is broken
			b.WriteByte(roomCodeAlphabet[0])
			continue
		}
		b.WriteByte(roomCodeAlphabet[n.Int64()])
	}
	return b.String()
}
