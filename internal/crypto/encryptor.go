// Package crypto derives encryption keys from a password and seals values
// with AES-GCM. Sealed records are "<iv hex>.<ciphertext hex>".
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"fmt"
	"hash"
	"io"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// IVSize is the length in bytes of the random IV generated per record.
const IVSize = 16

// KeySize is the key length used by the proxy (AES-256).
const KeySize = 32

const recordSeparator = "."

// ErrDecryption is returned when a record is malformed or does not open under
// the supplied key. Callers treat it as a wrong key, not a crash.
var ErrDecryption = errors.New("decryption failed")

// ErrUnsupportedDigest is returned by DeriveKey for an unknown digest name.
var ErrUnsupportedDigest = errors.New("unsupported digest")

var digests = map[string]func() hash.Hash{
	"sha1":   sha1.New,
	"sha256": sha256.New,
	"sha512": sha512.New,
}

// SupportedDigest reports whether DeriveKey accepts the digest name.
func SupportedDigest(name string) bool {
	_, ok := digests[strings.ToLower(name)]
	return ok
}

// DeriveKey runs PBKDF2 over password and salt. The same inputs always yield
// the same key.
func DeriveKey(password, salt []byte, iterations, keyLength int, digest string) ([]byte, error) {
	h, ok := digests[strings.ToLower(digest)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedDigest, digest)
	}
	if iterations <= 0 {
		return nil, fmt.Errorf("derive key: iterations must be positive, got %d", iterations)
	}
	if keyLength <= 0 {
		return nil, fmt.Errorf("derive key: key length must be positive, got %d", keyLength)
	}
	return pbkdf2.Key(password, salt, iterations, keyLength, h), nil
}

// Encryptor seals and opens records under one key.
type Encryptor struct {
	aead cipher.AEAD
}

// NewEncryptor creates an Encryptor. key must be 16, 24 or 32 bytes.
func NewEncryptor(key []byte) (*Encryptor, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCMWithNonceSize: %w", err)
	}
	return &Encryptor{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV.
func (e *Encryptor) Encrypt(plaintext []byte) (string, error) {
	iv := make([]byte, IVSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("rand iv: %w", err)
	}

	ciphertext := e.aead.Seal(nil, iv, plaintext, nil)
	return hex.EncodeToString(iv) + recordSeparator + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens a record produced by Encrypt. Any failure wraps ErrDecryption.
func (e *Encryptor) Decrypt(record string) ([]byte, error) {
	ivHex, ciphertextHex, ok := strings.Cut(record, recordSeparator)
	if !ok || strings.Contains(ciphertextHex, recordSeparator) {
		return nil, fmt.Errorf("%w: malformed record", ErrDecryption)
	}

	iv, err := hex.DecodeString(ivHex)
	if err != nil || len(iv) != IVSize {
		return nil, fmt.Errorf("%w: invalid iv", ErrDecryption)
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid ciphertext encoding", ErrDecryption)
	}

	plaintext, err := e.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

// Encrypt seals plaintext under key. See Encryptor.Encrypt.
func Encrypt(plaintext, key []byte) (string, error) {
	e, err := NewEncryptor(key)
	if err != nil {
		return "", err
	}
	return e.Encrypt(plaintext)
}

// Decrypt opens record under key. See Encryptor.Decrypt.
func Decrypt(record string, key []byte) ([]byte, error) {
	e, err := NewEncryptor(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return e.Decrypt(record)
}
