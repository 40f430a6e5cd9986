// Package tokens encodes and decodes the tamper-evident tokens embedded in
// confirmation and edit links.
//
// A token is base64url(tag || iv || ciphertext) where ciphertext is
// AES-256-CBC over the PKCS#7 padded plaintext and tag is HMAC-SHA256 over
// iv || ciphertext. Decoding verifies the tag before decrypting.
package tokens

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize = 32
	tagSize = sha256.Size
	ivSize  = aes.BlockSize

	// MinSecretLen is the shortest secret NewCodec accepts.
	MinSecretLen = 32

	encInfo = "registration-token-enc"
	macInfo = "registration-token-mac"
)

// ErrInvalidToken is returned for every decode failure. Callers cannot tell
// a malformed token from a forged one.
var ErrInvalidToken = errors.New("invalid token")

var encoding = base64.RawURLEncoding.Strict()

type keyPair struct {
	enc []byte
	mac []byte
}

// Codec encodes plaintext into opaque URL-safe tokens.
// The first key encodes; every key is tried when decoding.
type Codec struct {
	keys []keyPair
}

// NewCodec derives encryption and MAC keys from secret. Previous secrets
// remain valid for decoding only.
func NewCodec(secret string, previous ...string) (*Codec, error) {
	c := &Codec{}
	for i, s := range append([]string{secret}, previous...) {
		if len(s) < MinSecretLen {
			if i == 0 {
				return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLen)
			}
			return nil, fmt.Errorf("previous token secret %d must be at least %d bytes", i, MinSecretLen)
		}
		kp, err := deriveKeys([]byte(s))
		if err != nil {
			return nil, err
		}
		c.keys = append(c.keys, kp)
	}
	return c, nil
}

func deriveKeys(secret []byte) (keyPair, error) {
	enc := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(encInfo)), enc); err != nil {
		return keyPair{}, fmt.Errorf("derive encryption key: %w", err)
	}
	mac := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, secret, nil, []byte(macInfo)), mac); err != nil {
		return keyPair{}, fmt.Errorf("derive mac key: %w", err)
	}
	return keyPair{enc: enc, mac: mac}, nil
}

// Encode returns a fresh token for plaintext. Two calls with the same input
// produce different tokens.
func (c *Codec) Encode(plaintext string) (string, error) {
	kp := c.keys[0]
	block, err := aes.NewCipher(kp.enc)
	if err != nil {
		return "", fmt.Errorf("new cipher: %w", err)
	}

	padded := pad([]byte(plaintext))
	buf := make([]byte, tagSize+ivSize+len(padded))
	iv := buf[tagSize : tagSize+ivSize]
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("read iv: %w", err)
	}
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(buf[tagSize+ivSize:], padded)
	copy(buf[:tagSize], sign(kp.mac, buf[tagSize:]))

	return encoding.EncodeToString(buf), nil
}

// Decode verifies and decrypts a token. Any failure yields ErrInvalidToken.
func (c *Codec) Decode(token string) (string, error) {
	raw, err := encoding.DecodeString(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	body := len(raw) - tagSize - ivSize
	if body < aes.BlockSize || body%aes.BlockSize != 0 {
		return "", ErrInvalidToken
	}

	tag, payload := raw[:tagSize], raw[tagSize:]
	for _, kp := range c.keys {
		if !hmac.Equal(tag, sign(kp.mac, payload)) {
			continue
		}
		plain, err := decrypt(kp.enc, payload)
		if err != nil {
			return "", ErrInvalidToken
		}
		return string(plain), nil
	}
	return "", ErrInvalidToken
}

func decrypt(key, payload []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	iv, ct := payload[:ivSize], payload[ivSize:]
	out := make([]byte, len(ct))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, ct)
	return unpad(out)
}

func sign(key, data []byte) []byte {
	m := hmac.New(sha256.New, key)
	m.Write(data)
	return m.Sum(nil)
}

func pad(b []byte) []byte {
	n := aes.BlockSize - len(b)%aes.BlockSize
	return append(b, bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(b []byte) ([]byte, error) {
	if len(b) == 0 {
		return nil, ErrInvalidToken
	}
	n := int(b[len(b)-1])
	if n == 0 || n > aes.BlockSize || n > len(b) {
		return nil, ErrInvalidToken
	}
	for _, v := range b[len(b)-n:] {
		if int(v) != n {
			return nil, ErrInvalidToken
		}
	}
	return b[:len(b)-n], nil
}
