package idempotency

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// HeaderKey is the out-of-band header carrying a client-supplied key.
const HeaderKey = "Idempotency-Key"

// ReservationTTL bounds abandoned reservations.
const ReservationTTL = 300

// CacheKey maps an idempotency key to its cache key. One canonical
// namespace is used everywhere status records are read or written.
func CacheKey(key string) string {
	return "idempotency:" + key
}

// HashRequest digests the semantically relevant request fields, excluding
// volatile ones, so reuse of a key for a different payload is detectable.
func HashRequest(recipientEmail, subject, body string) string {
	canonical, _ := json.Marshal(struct {
		RecipientEmail string `json:"recipientEmail"`
		Subject        string `json:"subject"`
		Body           string `json:"body"`
	}{recipientEmail, subject, body})

	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:])
}

// DeriveKey returns the client-supplied key, or a deterministic
// content-derived key when none was provided.
func DeriveKey(providedKey, requestHash string) string {
	if providedKey != "" {
		return providedKey
	}
	return "auto_" + requestHash
}
