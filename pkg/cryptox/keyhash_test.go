package cryptox

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyKey(t *testing.T) {
	t.Parallel()

	hash, err := HashKey("HF-1234-5678-ABCD")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(hash, "$argon2id$v=19$"))

	require.NoError(t, VerifyKey("HF-1234-5678-ABCD", hash))
	require.ErrorIs(t, VerifyKey("HF-0000-0000-0000", hash), ErrMismatch)
}

func TestHashKeyUniqueSalt(t *testing.T) {
	t.Parallel()

	a, err := HashKey("same-key")
	require.NoError(t, err)
	b, err := HashKey("same-key")
	require.NoError(t, err)
	require.NotEqual(t, a, b)

	require.NoError(t, VerifyKey("same-key", a))
	require.NoError(t, VerifyKey("same-key", b))
}

func TestVerifyKeyRejectsGarbage(t *testing.T) {
	t.Parallel()

	require.Error(t, VerifyKey("key", "not-a-hash"))
	require.Error(t, VerifyKey("key", "$scrypt$v=19$m=1,t=1,p=1$aa$bb"))
}
