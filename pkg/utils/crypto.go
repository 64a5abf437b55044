package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

var ErrCiphertextTooShort = errors.New("ciphertext too short")

// TokenCipher seals third-party access tokens before they are stored. Each
// sealed token is bound to its owner, so a value copied onto another account
// row does not open.
type TokenCipher struct {
	aead cipher.AEAD
}

// NewTokenCipher builds an AES-GCM cipher; key must be 16, 24 or 32 bytes.
func NewTokenCipher(key string) (*TokenCipher, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return nil, fmt.Errorf("invalid token key: %w", err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &TokenCipher{aead: aead}, nil
}

// Seal returns base64(nonce || ciphertext) of token, authenticated with owner.
func (c *TokenCipher) Seal(owner, token string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		slog.Info(err.Error())
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(token), []byte(owner))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal for the same owner.
func (c *TokenCipher) Open(owner, sealed string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(sealed)
	if err != nil {
		return "", err
	}

	nonceSize := c.aead.NonceSize()
	if len(data) < nonceSize {
		return "", ErrCiphertextTooShort
	}

	token, err := c.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(owner))
	if err != nil {
		return "", err
	}
	return string(token), nil
}
