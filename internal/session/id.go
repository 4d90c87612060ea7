package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
)

// sessionIDAlphabet is lowercase base32 minus the confusable digits
// 0/1/8/9, per spec §6.3.
const sessionIDAlphabet = "abcdefghijklmnopqrstuvwxyz234567"

const sessionIDLength = 10

var sessionIDPattern = regexp.MustCompile(`^[a-z2-7]{10}$`)

// NewID generates a cryptographically random 10-character session ID.
// Unlike the hash-based PRNG the original source used, this draws
// directly from crypto/rand — required by spec §9's open question on
// session ID randomness.
func NewID() (ID, error) {
	buf := make([]byte, sessionIDLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generating id: %w", err)
	}
	out := make([]byte, sessionIDLength)
	for i, b := range buf {
		out[i] = sessionIDAlphabet[int(b)%len(sessionIDAlphabet)]
	}
	return ID(out), nil
}

// ValidID reports whether id matches the required session ID format.
func ValidID(id string) bool {
	return sessionIDPattern.MatchString(id)
}

// newSecret returns a cryptographically random secret of at least the
// given number of entropy bits, hex-encoded.
func newSecret(bits int) (string, error) {
	nbytes := (bits + 7) / 8
	buf := make([]byte, nbytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("session: generating secret: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

// NewJoinSecret returns a >=128-bit cleartext join secret (spec §6.3).
func NewJoinSecret() (string, error) { return newSecret(128) }

// NewPresenterKey returns a >=192-bit cleartext presenter key (spec §6.3).
func NewPresenterKey() (string, error) { return newSecret(192) }
