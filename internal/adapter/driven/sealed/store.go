// Package sealed implements the CredentialStore port by encrypting values
// before they reach a HashStore.
package sealed

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ericfisherdev/concourse-proxy/internal/crypto"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialStore = (*Store)(nil)

// KeyOptions configures key derivation.
type KeyOptions struct {
	Secret     string
	Salt       string
	Iterations int
	Digest     string
}

// Store JSON-encodes and encrypts every value. Record ids are stored in the
// clear so that Keys works without decrypting.
type Store struct {
	hash      driven.HashStore
	encryptor *crypto.Encryptor
}

// NewStore wraps hash with an encryptor whose key is already derived.
func NewStore(hash driven.HashStore, encryptor *crypto.Encryptor) *Store {
	return &Store{hash: hash, encryptor: encryptor}
}

// Open derives the key from opts and returns a ready Store. Derivation runs
// before the store is returned, so no call can observe a missing key.
func Open(hash driven.HashStore, opts KeyOptions) (*Store, error) {
	key, err := crypto.DeriveKey([]byte(opts.Secret), []byte(opts.Salt), opts.Iterations, crypto.KeySize, opts.Digest)
	if err != nil {
		return nil, fmt.Errorf("derive store key: %w", err)
	}
	encryptor, err := crypto.NewEncryptor(key)
	if err != nil {
		return nil, err
	}
	return NewStore(hash, encryptor), nil
}

// Get decrypts and decodes the value under (group, id).
func (s *Store) Get(ctx context.Context, group, id string) (string, error) {
	record, err := s.hash.HGet(ctx, group, id)
	if err != nil {
		return "", err
	}

	plaintext, err := s.encryptor.Decrypt(record)
	if err != nil {
		return "", fmt.Errorf("open %s record: %w", group, err)
	}

	var value string
	if err := json.Unmarshal(plaintext, &value); err != nil {
		return "", fmt.Errorf("open %s record: %w: %v", group, crypto.ErrDecryption, err)
	}
	return value, nil
}

// Set encodes, encrypts, and stores value under (group, id).
func (s *Store) Set(ctx context.Context, group, id, value string) error {
	plaintext, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", group, err)
	}
	record, err := s.encryptor.Encrypt(plaintext)
	if err != nil {
		return fmt.Errorf("seal %s record: %w", group, err)
	}
	return s.hash.HSet(ctx, group, id, record)
}

// Keys lists the ids in group.
func (s *Store) Keys(ctx context.Context, group string) ([]string, error) {
	return s.hash.HKeys(ctx, group)
}
