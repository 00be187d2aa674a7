package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
)

// DeriveKey computes the stable cache identity for an article from its
// title and link. Absent fields hash as empty strings.
//
// The derivation must never change: every cached entry is keyed by it, and
// a change would silently orphan all history. Changes to matching rules or
// prompts belong in the logic version, which marks entries stale without
// breaking lookups.
func DeriveKey(title, link string) string {
	sum := sha256.Sum256([]byte(title + "|" + link))
	return hex.EncodeToString(sum[:])
}
