package secret

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateVerify_RoundTrip(t *testing.T) {
	code, ciphertext, err := Generate("someone@example.com")
	require.NoError(t, err)
	assert.Less(t, code, uint32(100_000_000))

	assert.NoError(t, Verify(code, "someone@example.com", ciphertext))
}

func TestCiphertext_Layout(t *testing.T) {
	_, ciphertext, err := Generate("someone@example.com")
	require.NoError(t, err)

	raw, err := base64.RawStdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)
	require.Len(t, raw, 129)

	// First 97 bytes are a PHC argon2id record with the pinned parameters.
	record := string(raw[:97])
	assert.True(t, strings.HasPrefix(record, "$argon2id$v=19$m=19456,t=2,p=1$"))
}

func TestVerify_WrongEmail(t *testing.T) {
	code, ciphertext, err := Generate("alice@example.com")
	require.NoError(t, err)

	assert.ErrorIs(t, Verify(code, "bob@example.com", ciphertext), ErrInvalid)
}

func TestVerify_WrongCode(t *testing.T) {
	code, ciphertext, err := Generate("someone@example.com")
	require.NoError(t, err)

	wrong := (code + 1) % 100_000_000
	assert.ErrorIs(t, Verify(wrong, "someone@example.com", ciphertext), ErrInvalid)
}

func TestVerify_TamperedCiphertext(t *testing.T) {
	code, ciphertext, err := Generate("someone@example.com")
	require.NoError(t, err)
	raw, err := base64.RawStdEncoding.DecodeString(ciphertext)
	require.NoError(t, err)

	// One flipped byte anywhere in the record or mac must fail verification.
	for _, i := range []int{0, 31, 50, 96, 97, 110, 128} {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01
		err := Verify(code, "someone@example.com", base64.RawStdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrInvalid, "tampered byte %d", i)
	}
}

func TestVerify_MalformedInput(t *testing.T) {
	code, ciphertext, err := Generate("someone@example.com")
	require.NoError(t, err)

	for name, input := range map[string]string{
		"empty":      "",
		"not base64": "%%%%",
		"truncated":  ciphertext[:40],
		"zero bytes": base64.RawStdEncoding.EncodeToString(make([]byte, 129)),
	} {
		assert.ErrorIs(t, Verify(code, "someone@example.com", input), ErrInvalid, name)
	}
}

func TestGenerate_FreshPerCall(t *testing.T) {
	_, c1, err := Generate("someone@example.com")
	require.NoError(t, err)
	_, c2, err := Generate("someone@example.com")
	require.NoError(t, err)
	assert.NotEqual(t, c1, c2)
}
