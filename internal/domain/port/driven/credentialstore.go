package driven

import "context"

// CredentialStore persists secrets encrypted at rest. Values cross this port
// in plaintext.
type CredentialStore interface {
	// Get returns the decrypted value under (group, id). Returns ErrNotFound
	// when absent and an error wrapping crypto.ErrDecryption when the stored
	// record cannot be decrypted under the current key.
	Get(ctx context.Context, group, id string) (string, error)

	// Set encrypts and stores value, overwriting any previous value.
	Set(ctx context.Context, group, id, value string) error

	// Keys lists every id stored in group.
	Keys(ctx context.Context, group string) ([]string, error)
}
