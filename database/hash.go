package database

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Hash returns the SHA-256 digest of content as 64 uppercase hex characters.
// The value is what the ledger stores in its hash column.
func Hash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}
