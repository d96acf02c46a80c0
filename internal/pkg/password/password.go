// Package password enforces the account password policy and owns the
// Argon2id hashing of accepted passwords.
package password

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Changing them only affects new hashes: Verify reads
// the parameters back from the encoded record.
const (
	memoryKiB   = 19456
	iterations  = 2
	parallelism = 1
	saltLength  = 16
	keyLength   = 32
)

// ErrMismatch covers every verification failure: malformed record, unknown
// parameters, digest mismatch. Callers get no detail about which step failed.
var ErrMismatch = errors.New("password verification failed")

const (
	minLength = 10
	maxLength = 40
)

// PolicyError reports which password rule was violated. The reason is safe
// to show to the account holder.
type PolicyError struct {
	Reason string
}

func (e *PolicyError) Error() string { return e.Reason }

// Validate applies the password policy. Rules are checked in order and the
// first violation wins:
//   - non-empty,
//   - length between 10 and 40 characters,
//   - at least two ASCII uppercase letters,
//   - at least two ASCII digits,
//   - at least two characters that are neither letters nor digits.
func Validate(raw string) error {
	if raw == "" {
		return &PolicyError{Reason: "password must not be empty"}
	}
	if len(raw) < minLength || len(raw) > maxLength {
		return &PolicyError{
			Reason: "password length must be at least 10 characters and at most 40 characters",
		}
	}

	var uppers, digits, specials int
	for _, c := range raw {
		switch {
		case c >= 'A' && c <= 'Z':
			uppers++
		case c >= '0' && c <= '9':
			digits++
		case !(c >= 'a' && c <= 'z'):
			specials++
		}
	}
	if uppers < 2 {
		return &PolicyError{Reason: "password must contain at least two uppercase letters"}
	}
	if digits < 2 {
		return &PolicyError{Reason: "password must contain at least two numbers"}
	}
	if specials < 2 {
		return &PolicyError{Reason: "password must contain at least two special characters"}
	}
	return nil
}

// Hash derives an Argon2id hash of raw with a fresh random salt and returns
// it as a self-describing PHC-encoded string.
func Hash(raw string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	digest := argon2.IDKey([]byte(raw), salt, iterations, memoryKiB, parallelism, keyLength)

	encoded := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return encoded, nil
}

// Verify recomputes the Argon2id digest of raw using the parameters and salt
// embedded in encoded and compares in constant time. Every failure is
// reported as ErrMismatch.
func Verify(raw, encoded string) error {
	_, digest, err := recompute(raw, encoded)
	if err != nil {
		return ErrMismatch
	}
	stored, err := storedDigest(encoded)
	if err != nil {
		return ErrMismatch
	}
	if subtle.ConstantTimeCompare(stored, digest) != 1 {
		return ErrMismatch
	}
	return nil
}

// recompute parses a PHC-encoded Argon2id record and re-derives the digest
// for raw with the record's own parameters and salt.
func recompute(raw, encoded string) (salt, digest []byte, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, errors.New("malformed argon2id record")
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, err
	}
	if version != argon2.Version {
		return nil, nil, errors.New("unsupported argon2 version")
	}
	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return nil, nil, err
	}
	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, err
	}
	stored, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, err
	}
	digest = argon2.IDKey([]byte(raw), salt, t, m, p, uint32(len(stored)))
	return salt, digest, nil
}

func storedDigest(encoded string) ([]byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return nil, errors.New("malformed argon2id record")
	}
	return base64.RawStdEncoding.DecodeString(parts[5])
}
