package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

// GenerateRequestID builds a request correlation ID from a nanosecond
// timestamp and four random bytes. The timestamp keeps IDs sortable in
// logs; the random tail separates requests landing in the same tick.
func GenerateRequestID() string {
	tail := make([]byte, 4)
	rand.Read(tail)
	return fmt.Sprintf("req_%d_%s", time.Now().UnixNano(), hex.EncodeToString(tail))
}

// GeneratePIN generates a random numeric PIN of the given length
func GeneratePIN(length int) string {
	if length <= 0 {
		length = 4
	}
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand failure leaves no safe source for PIN material
			panic(fmt.Sprintf("pin generation: %v", err))
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}
