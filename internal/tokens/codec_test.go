package tokens

import (
	"math/rand"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	secret    = "test-secret-with-at-least-32-bytes!!"
	oldSecret = "an-older-secret-with-32-bytes-or-more"
)

func newCodec(t *testing.T, previous ...string) *Codec {
	t.Helper()
	c, err := NewCodec(secret, previous...)
	require.NoError(t, err)
	return c
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	c := newCodec(t)
	for _, in := range []string{
		"",
		"a@b.c",
		"someone.with.a.long.local.part+tag@sub.domain.example.org",
		"0123456789abcdef", // exactly one block
		"ünïcödé@example.org",
	} {
		tok, err := c.Encode(in)
		require.NoError(t, err)
		out, err := c.Decode(tok)
		require.NoError(t, err, "input %q", in)
		assert.Equal(t, in, out)
	}
}

func TestEncodeIsRandomised(t *testing.T) {
	c := newCodec(t)
	a, err := c.Encode("user@example.org")
	require.NoError(t, err)
	b, err := c.Encode("user@example.org")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestTokenIsURLSafe(t *testing.T) {
	c := newCodec(t)
	for i := 0; i < 50; i++ {
		tok, err := c.Encode("user@example.org")
		require.NoError(t, err)
		assert.Equal(t, tok, url.QueryEscape(tok))
	}
}

func TestDecodeRejectsMutations(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Encode("user@example.org")
	require.NoError(t, err)
	raw, err := encoding.DecodeString(tok)
	require.NoError(t, err)

	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 200; i++ {
		mutated := append([]byte(nil), raw...)
		pos := rng.Intn(len(mutated))
		mutated[pos] ^= byte(rng.Intn(255) + 1)

		_, err := c.Decode(encoding.EncodeToString(mutated))
		assert.ErrorIs(t, err, ErrInvalidToken, "byte %d mutated", pos)
	}
}

func TestDecodeRejectsCharacterEdits(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Encode("user@example.org")
	require.NoError(t, err)

	const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-_"
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 150; i++ {
		b := []byte(tok)
		pos := rng.Intn(len(b))
		repl := alphabet[rng.Intn(len(alphabet))]
		if repl == b[pos] {
			continue
		}
		b[pos] = repl
		_, err := c.Decode(string(b))
		assert.ErrorIs(t, err, ErrInvalidToken)
	}
}

func TestDecodeRejectsMalformedInput(t *testing.T) {
	c := newCodec(t)
	tok, err := c.Encode("user@example.org")
	require.NoError(t, err)

	cases := map[string]string{
		"empty":        "",
		"not base64":   "!!!not-base64!!!",
		"padded":       tok + "==",
		"truncated":    tok[:len(tok)/2],
		"tag only":     encoding.EncodeToString(make([]byte, tagSize)),
		"misaligned":   encoding.EncodeToString(make([]byte, tagSize+ivSize+ivSize+3)),
		"extra suffix": tok + "AAAA",
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := c.Decode(in)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestDecodeWithDifferentSecretFails(t *testing.T) {
	tok, err := newCodec(t).Encode("user@example.org")
	require.NoError(t, err)

	other, err := NewCodec(strings.Repeat("x", MinSecretLen))
	require.NoError(t, err)
	_, err = other.Decode(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPreviousSecretStillDecodes(t *testing.T) {
	old, err := NewCodec(oldSecret)
	require.NoError(t, err)
	tok, err := old.Encode("user@example.org")
	require.NoError(t, err)

	rotated := newCodec(t, oldSecret)
	got, err := rotated.Decode(tok)
	require.NoError(t, err)
	assert.Equal(t, "user@example.org", got)

	fresh, err := rotated.Encode("user@example.org")
	require.NoError(t, err)
	_, err = old.Decode(fresh)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewCodecRejectsShortSecrets(t *testing.T) {
	_, err := NewCodec("short")
	assert.Error(t, err)

	_, err = NewCodec(secret, "short")
	assert.Error(t, err)
}
