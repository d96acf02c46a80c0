// Package secret generates and verifies the one-time email verification
// codes and their opaque ciphertexts.
//
// The ciphertext layout is a compatibility surface shared with stored rows:
// a fixed-width 97-byte PHC-encoded Argon2id record followed by a 32-byte
// HMAC-SHA3-256 of the email keyed with the record's raw digest, the whole
// 129 bytes base64-encoded without padding.
package secret

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/sha3"
)

// Argon2id parameters are pinned: the record width below depends on them.
const (
	memoryKiB   = 19456
	iterations  = 2
	parallelism = 1
	saltLength  = 16
	keyLength   = 32
)

// codeModulus keeps generated codes within 8 decimal digits.
const codeModulus = 100_000_000

const (
	recordLength     = 97
	macLength        = 32
	ciphertextLength = recordLength + macLength
)

// ErrInvalid covers every verification failure: bad base64, wrong length,
// digest mismatch, mac mismatch. Callers must not learn which check failed.
var ErrInvalid = errors.New("invalid verification code")

// Generate draws a fresh random code below 10^8 and binds it to email.
// The returned ciphertext is all the caller needs to later verify the code;
// the code itself is never derivable from it.
func Generate(email string) (code uint32, ciphertext string, err error) {
	var buf [4]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return 0, "", fmt.Errorf("generate code: %w", err)
	}
	code = binary.LittleEndian.Uint32(buf[:]) % codeModulus

	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return 0, "", fmt.Errorf("generate salt: %w", err)
	}

	record, digest := derive(code, salt)
	if len(record) != recordLength {
		return 0, "", fmt.Errorf("unexpected argon2 record width: %d", len(record))
	}

	mac := computeMAC(digest, email)

	raw := make([]byte, 0, ciphertextLength)
	raw = append(raw, record...)
	raw = append(raw, mac...)
	return code, base64.RawStdEncoding.EncodeToString(raw), nil
}

// Verify checks that code is the one Generate bound to email in ciphertext.
// Both the Argon2id digest and the email mac must match; any failure is
// reported uniformly as ErrInvalid.
func Verify(code uint32, email, ciphertext string) error {
	raw, err := base64.RawStdEncoding.DecodeString(ciphertext)
	if err != nil {
		return ErrInvalid
	}
	if len(raw) != ciphertextLength {
		return ErrInvalid
	}
	record, mac := raw[:recordLength], raw[recordLength:]

	salt, stored, err := parseRecord(string(record))
	if err != nil {
		return ErrInvalid
	}

	// Re-deriving the full record (not just the digest) also rejects
	// non-canonical base64 re-encodings of the stored bytes.
	candidate, digest := derive(code, salt)
	recordOK := subtle.ConstantTimeCompare(record, []byte(candidate))
	digestOK := subtle.ConstantTimeCompare(stored, digest)
	if recordOK&digestOK != 1 {
		return ErrInvalid
	}

	if !hmac.Equal(mac, computeMAC(stored, email)) {
		return ErrInvalid
	}
	return nil
}

// derive hashes the code's 4 little-endian bytes and returns both the
// PHC-encoded record and the raw digest used as the mac key.
func derive(code uint32, salt []byte) (record string, digest []byte) {
	var material [4]byte
	binary.LittleEndian.PutUint32(material[:], code)

	digest = argon2.IDKey(material[:], salt, iterations, memoryKiB, parallelism, keyLength)
	record = fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, memoryKiB, iterations, parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(digest),
	)
	return record, digest
}

func computeMAC(key []byte, email string) []byte {
	h := hmac.New(sha3.New256, key)
	h.Write([]byte(email))
	return h.Sum(nil)
}

// parseRecord extracts the salt and digest from a PHC-encoded record,
// rejecting anything that does not match the pinned parameters.
func parseRecord(record string) (salt, digest []byte, err error) {
	prefix := fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$",
		argon2.Version, memoryKiB, iterations, parallelism)
	rest, ok := strings.CutPrefix(record, prefix)
	if !ok {
		return nil, nil, errors.New("malformed argon2id record")
	}
	b64Salt, b64Digest, ok := strings.Cut(rest, "$")
	if !ok {
		return nil, nil, errors.New("malformed argon2id record")
	}
	if salt, err = base64.RawStdEncoding.DecodeString(b64Salt); err != nil {
		return nil, nil, err
	}
	if digest, err = base64.RawStdEncoding.DecodeString(b64Digest); err != nil {
		return nil, nil, err
	}
	if len(salt) != saltLength || len(digest) != keyLength {
		return nil, nil, errors.New("unexpected salt or digest width")
	}
	return salt, digest, nil
}
