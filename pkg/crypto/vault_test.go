package crypto

import (
	"bytes"
	"strings"
	"testing"

	"github.com/postpilothq/postpilot/pkg/apperr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey() []byte {
	return bytes.Repeat([]byte{0x42}, 32)
}

func TestVaultRoundTrip(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	plaintexts := []string{
		"a",
		"short token",
		"bearer-" + strings.Repeat("x", 512),
		"unicode ☕ token",
		"",
	}

	for _, plaintext := range plaintexts {
		blob, err := vault.Encrypt(plaintext)
		require.NoError(t, err)

		decrypted, err := vault.Decrypt(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestVaultBlobFormat(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	blob, err := vault.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 32, "nonce should be 16 hex-encoded bytes")
	assert.Len(t, parts[1], 32, "tag should be 16 hex-encoded bytes")
}

func TestVaultEncryptIsNonDeterministic(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	first, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)
	second, err := vault.Encrypt("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
}

func TestVaultDecryptTamperedTag(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	blob, err := vault.Encrypt("secret")
	require.NoError(t, err)

	parts := strings.Split(blob, ":")
	// Flip one bit in the first tag byte.
	tag := []byte(parts[1])
	if tag[0] == '0' {
		tag[0] = '1'
	} else {
		tag[0] = '0'
	}
	tampered := parts[0] + ":" + string(tag) + ":" + parts[2]

	_, err = vault.Decrypt(tampered)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCrypto))
}

func TestVaultDecryptMalformedBlob(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	cases := []string{
		"",
		"not-a-blob",
		"aa:bb",
		"aa:bb:cc:dd",
		"zz:bb:cc",
		"aabb:zzzz:ccdd",
	}

	for _, blob := range cases {
		_, err := vault.Decrypt(blob)
		require.Error(t, err, "blob %q", blob)
		assert.True(t, apperr.IsKind(err, apperr.KindCrypto), "blob %q", blob)
	}
}

func TestVaultDecryptWrongKey(t *testing.T) {
	vault, err := NewVault(testKey())
	require.NoError(t, err)

	other, err := NewVault(bytes.Repeat([]byte{0x7f}, 32))
	require.NoError(t, err)

	blob, err := vault.Encrypt("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(blob)
	require.Error(t, err)
	assert.True(t, apperr.IsKind(err, apperr.KindCrypto))
}

func TestNewVaultRejectsBadKeySize(t *testing.T) {
	for _, size := range []int{0, 16, 31, 33, 64} {
		_, err := NewVault(bytes.Repeat([]byte{1}, size))
		assert.Error(t, err, "key size %d", size)
	}
}

func TestPasswordHashAndVerify(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	assert.NotEqual(t, "hunter22", hash)

	assert.True(t, VerifyPassword(hash, "hunter22"))
	assert.False(t, VerifyPassword(hash, "hunter23"))
}

func TestHashPasswordRejectsEmpty(t *testing.T) {
	_, err := HashPassword("")
	assert.Error(t, err)
}
