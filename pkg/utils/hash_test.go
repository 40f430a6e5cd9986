package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	require.NoError(t, err)
	assert.True(t, CheckPassword("s3cret!", hash))
	assert.False(t, CheckPassword("other", hash))
}

func TestGenerateTempPassword(t *testing.T) {
	a, err := GenerateTempPassword(12)
	require.NoError(t, err)
	b, err := GenerateTempPassword(12)
	require.NoError(t, err)

	assert.Len(t, a, 12)
	assert.NotEqual(t, a, b)
	for _, r := range a {
		assert.True(t, strings.ContainsRune(tempPasswordAlphabet, r))
	}
}

func TestGenerateToken(t *testing.T) {
	tok, err := GenerateToken(32)
	require.NoError(t, err)
	assert.Len(t, tok, 43)
	assert.NotContains(t, tok, "=")
}
