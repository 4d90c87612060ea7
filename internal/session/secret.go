package session

import (
	"crypto/rand"
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters. These are deliberately light for an
// interactive, short-lived secret check rather than a password store:
// the grace period and join flow both hash on the request path.
const (
	argonTime    = 1
	argonMemory  = 19 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	saltLen      = 16
)

// hashSecret returns a self-contained digest: a random salt followed by
// the argon2id output, so verifySecret needs no side-channel for salt
// storage.
func hashSecret(secret string) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("session: salting secret: %w", err)
	}
	sum := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	out := make([]byte, 0, saltLen+argonKeyLen)
	out = append(out, salt...)
	out = append(out, sum...)
	return out, nil
}

// verifySecret reports whether secret hashes to digest, in constant
// time with respect to the comparison itself.
func verifySecret(secret string, digest []byte) bool {
	if len(digest) != saltLen+argonKeyLen {
		return false
	}
	salt := digest[:saltLen]
	want := digest[saltLen:]
	got := argon2.IDKey([]byte(secret), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return subtle.ConstantTimeCompare(got, want) == 1
}
