package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// DomainScope separates scope-key hashes from any other hash this module
// may compute. The version suffix allows the encoding to change later.
const DomainScope = "listorder/scope/v1"

// hashWithDomain computes SHA256(domain || 0x00 || data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ScopeKey identifies one partition of one collection. The key is stable
// across processes, so it can name a distributed lock.
func ScopeKey(collection string, scope Object) (string, error) {
	if scope == nil {
		scope = Object{}
	}
	canonical, err := MarshalCanonical(Object{
		"collection": String(collection),
		"scope":      scope,
	})
	if err != nil {
		return "", fmt.Errorf("scope key: %w", err)
	}
	return hashWithDomain(DomainScope, canonical), nil
}
