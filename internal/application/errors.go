// Package application contains the proxy's use-case services: request and
// response classification, credential bookkeeping, the session token
// lifecycle, and request routing.
package application

import (
	"errors"

	"github.com/ericfisherdev/concourse-proxy/internal/crypto"
	"github.com/ericfisherdev/concourse-proxy/internal/domain/port/driven"
)

// ErrValidation marks caller input that was rejected before any I/O.
var ErrValidation = errors.New("invalid input")

// absentOnMiss turns the store outcomes that mean "nothing usable is stored"
// into an empty value. Other errors pass through.
func absentOnMiss(value string, err error) (string, error) {
	if errors.Is(err, driven.ErrNotFound) || errors.Is(err, crypto.ErrDecryption) {
		return "", nil
	}
	return value, err
}
