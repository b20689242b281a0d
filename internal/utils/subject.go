package utils

import (
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// MaskSubject hides all but the last 3 characters of a national ID for logging
func MaskSubject(id string) string {
	r := []rune(id)
	if len(r) <= 3 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-3) + string(r[len(r)-3:])
}

// HashSubject returns the hex keyed blake2b-256 digest of a subject ID.
// The key must be at most 64 bytes.
func HashSubject(key []byte, id string) (string, error) {
	h, err := blake2b.New256(key)
	if err != nil {
		return "", fmt.Errorf("failed to init subject hash: %w", err)
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil)), nil
}
