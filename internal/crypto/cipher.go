package crypto

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrDecrypt is returned when a stored credential cannot be decrypted:
// malformed iv/ciphertext length, bad hex, or invalid padding. A wrong key
// that still yields validly padded output does NOT produce this error; the
// caller detects that case by comparing plaintexts.
var ErrDecrypt = errors.New("decrypt: malformed ciphertext")

const ivSize = aes.BlockSize // 16 bytes, 32 hex characters

// Cipher encrypts credentials at rest with AES-256-CBC. A fresh random IV is
// generated per encryption and the result is stored as hex(iv)||hex(ciphertext),
// byte-compatible with records written by the legacy system.
type Cipher struct {
	key []byte
}

// NewCipher creates a credential cipher. The key must be 32 bytes (AES-256).
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("cipher key must be 32 bytes, got %d", len(key))
	}
	return &Cipher{key: key}, nil
}

// Encrypt encrypts the plaintext under a fresh random 16-byte IV and returns
// the combined hex(iv)||hex(ciphertext) string.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	iv := make([]byte, ivSize)
	if _, err := rand.Read(iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	padded := pkcs7Pad([]byte(plaintext), aes.BlockSize)
	ciphertext := make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)

	return hex.EncodeToString(iv) + hex.EncodeToString(ciphertext), nil
}

// Decrypt is the exact inverse of Encrypt. The first 32 hex characters of the
// stored value are the IV.
func (c *Cipher) Decrypt(stored string) (string, error) {
	if len(stored) <= 2*ivSize {
		return "", fmt.Errorf("%w: value too short", ErrDecrypt)
	}

	iv, err := hex.DecodeString(stored[:2*ivSize])
	if err != nil {
		return "", fmt.Errorf("%w: bad iv encoding", ErrDecrypt)
	}

	ciphertext, err := hex.DecodeString(stored[2*ivSize:])
	if err != nil {
		return "", fmt.Errorf("%w: bad ciphertext encoding", ErrDecrypt)
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", fmt.Errorf("%w: ciphertext not block-aligned", ErrDecrypt)
	}

	block, err := aes.NewCipher(c.key)
	if err != nil {
		return "", fmt.Errorf("create cipher: %w", err)
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", err
	}

	return string(unpadded), nil
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	return append(data, bytes.Repeat([]byte{byte(padding)}, padding)...)
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("%w: bad padded length", ErrDecrypt)
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("%w: invalid padding", ErrDecrypt)
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("%w: invalid padding", ErrDecrypt)
		}
	}
	return data[:len(data)-padding], nil
}
