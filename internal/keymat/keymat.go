// Package keymat produces the fixed-length symmetric key the vault consumes.
// The vault codec never derives keys itself; everything key-shaped lives here.
package keymat

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// KeySize matches the vault's AES-256 key length.
const KeySize = 32

// SaltSize is the salt length for passphrase derivation.
const SaltSize = 16

// Argon2id parameters. Moderate cost: this runs once per session open.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 4
)

// FromEnv reads a hex-encoded 32-byte key from an environment variable.
func FromEnv(name string) ([]byte, error) {
	keyHex := os.Getenv(name)
	if keyHex == "" {
		return nil, fmt.Errorf("%s not set", name)
	}
	key, err := hex.DecodeString(keyHex)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", name, err)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%s must be %d hex chars (%d bytes), got %d bytes", name, KeySize*2, KeySize, len(key))
	}
	return key, nil
}

// FromPassphrase derives a 32-byte key from a passphrase and salt with Argon2id.
func FromPassphrase(passphrase string, salt []byte) ([]byte, error) {
	if passphrase == "" {
		return nil, fmt.Errorf("empty passphrase")
	}
	if len(salt) != SaltSize {
		return nil, fmt.Errorf("salt must be %d bytes, got %d", SaltSize, len(salt))
	}
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize), nil
}

// NewSalt generates a fresh random salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	return salt, nil
}
