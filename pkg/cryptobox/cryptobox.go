package cryptobox

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	appErrors "github.com/noah-isme/docunet-api/pkg/errors"
)

// KeySize is the AES-256 key length in bytes.
const KeySize = 32

// Box performs symmetric file encryption with a fixed externally supplied key.
// Stored blobs are base64(iv || ciphertext) with a fresh random IV per call,
// AES-256-CBC with PKCS#7 padding.
type Box struct {
	key []byte
}

// New constructs a Box from a raw 32-byte key.
func New(key []byte) (*Box, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("encryption key must be %d bytes, got %d", KeySize, len(key))
	}
	k := make([]byte, KeySize)
	copy(k, key)
	return &Box{key: k}, nil
}

// NewFromBase64 decodes a base64-encoded key as supplied via configuration.
func NewFromBase64(encoded string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return New(key)
}

// Encrypt returns base64(iv || ciphertext) for the given plaintext.
// Two calls on identical input produce different outputs.
func (b *Box) Encrypt(plain []byte) (string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	padded := pad(plain, aes.BlockSize)
	out := make([]byte, aes.BlockSize+len(padded))
	copy(out, iv)
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out[aes.BlockSize:], padded)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Decrypt reverses Encrypt. It is strict: malformed base64, truncated input,
// a ciphertext that is not a whole number of blocks, or invalid padding all
// fail with a CRYPTO_ERROR. Callers that must tolerate legacy plaintext data
// catch that error explicitly and fall back to the raw bytes themselves.
func (b *Box) Decrypt(blob string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCrypto.Code, appErrors.ErrCrypto.Status, "ciphertext is not valid base64")
	}
	if len(raw) < aes.BlockSize {
		return nil, appErrors.Clone(appErrors.ErrCrypto, "ciphertext shorter than one block")
	}

	iv := raw[:aes.BlockSize]
	data := raw[aes.BlockSize:]
	if len(data)%aes.BlockSize != 0 {
		return nil, appErrors.Clone(appErrors.ErrCrypto, "ciphertext is not block aligned")
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCrypto.Code, appErrors.ErrCrypto.Status, "init cipher")
	}

	plain := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plain, data)

	unpadded, err := unpad(plain, aes.BlockSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrCrypto.Code, appErrors.ErrCrypto.Status, "invalid padding")
	}
	return unpadded, nil
}

func pad(data []byte, blockSize int) []byte {
	n := blockSize - len(data)%blockSize
	return append(append([]byte{}, data...), bytes.Repeat([]byte{byte(n)}, n)...)
}

func unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("padded data length %d invalid", len(data))
	}
	n := int(data[len(data)-1])
	if n == 0 || n > blockSize {
		return nil, fmt.Errorf("padding byte %d out of range", n)
	}
	for _, c := range data[len(data)-n:] {
		if int(c) != n {
			return nil, fmt.Errorf("inconsistent padding")
		}
	}
	return data[:len(data)-n], nil
}
