package cryptox

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeriveKey_Deterministic(t *testing.T) {
	password := []byte("secret-password")
	salt := []byte("fixed-salt")

	key1 := DeriveKey(password, salt)
	key2 := DeriveKey(password, salt)

	require.Len(t, key1, 32)
	if !bytes.Equal(key1, key2) {
		t.Errorf("expected same result for same inputs, got different")
	}
}

func TestDeriveKey_DifferentSalts(t *testing.T) {
	password := []byte("secret-password")

	key1 := DeriveKey(password, []byte("salt-1"))
	key2 := DeriveKey(password, []byte("salt-2"))

	if bytes.Equal(key1, key2) {
		t.Errorf("expected different results for different salts, got same")
	}
}

func TestNewCredential_CheckPassword(t *testing.T) {
	salt, verifier := NewCredential("hunter2")
	require.Len(t, salt, SaltSize)
	require.Len(t, verifier, 32)

	assert.True(t, CheckPassword("hunter2", salt, verifier))
	assert.False(t, CheckPassword("hunter3", salt, verifier))
	assert.False(t, CheckPassword("hunter2", []byte("other-salt-value"), verifier))
}

func TestNewCredential_RandomSalt(t *testing.T) {
	s1, v1 := NewCredential("same")
	s2, v2 := NewCredential("same")
	assert.NotEqual(t, s1, s2)
	assert.NotEqual(t, v1, v2)
}
