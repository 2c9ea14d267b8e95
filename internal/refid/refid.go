// Package refid generates prefixed, human-readable business reference ids,
// e.g. STK-1712345678901234567-a1b2c3d4 for restock transactions.
package refid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 4)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Restock returns a reference id for a restock transaction.
func Restock() string {
	return New("STK")
}
