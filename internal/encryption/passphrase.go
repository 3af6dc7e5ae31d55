// ABOUTME: Passphrase sealing for exported dumps.
// ABOUTME: Derives a key with Argon2id and wraps data in a versioned JSON envelope.
package encryption

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// SealedFormat identifies a passphrase envelope.
const SealedFormat = "fitlog-sealed"

const (
	sealedVersion = 1
	saltSize      = 16
	argonTime     = 1
	argonMemory   = 64 * 1024
	argonThreads  = 4

	// maxArgonMemory caps the KiB an imported envelope may ask for.
	maxArgonMemory = 1 << 20
	// maxArgonTime caps the passes an imported envelope may ask for.
	maxArgonTime = 16
)

// ErrEmptyPassphrase is returned when sealing with an empty passphrase.
var ErrEmptyPassphrase = errors.New("passphrase must not be empty")

// ErrInvalidEnvelope matches envelopes that are malformed, of an unknown
// version, or carry out-of-range key derivation parameters.
var ErrInvalidEnvelope = errors.New("invalid sealed envelope")

// Envelope is the on-disk form of passphrase-sealed data.
type Envelope struct {
	Format     string `json:"format"`
	Version    int    `json:"version"`
	KDF        string `json:"kdf"`
	Time       uint32 `json:"time"`
	Memory     uint32 `json:"memory"`
	Threads    uint8  `json:"threads"`
	Salt       []byte `json:"salt"`
	Ciphertext []byte `json:"ciphertext"`
}

// SealWithPassphrase encrypts data under a key derived from passphrase.
func SealWithPassphrase(data []byte, passphrase string) ([]byte, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, KeySize)
	sealed, err := seal(data, key)
	if err != nil {
		return nil, err
	}
	return json.Marshal(Envelope{
		Format:     SealedFormat,
		Version:    sealedVersion,
		KDF:        "argon2id",
		Time:       argonTime,
		Memory:     argonMemory,
		Threads:    argonThreads,
		Salt:       salt,
		Ciphertext: sealed,
	})
}

// OpenWithPassphrase reverses SealWithPassphrase. A wrong passphrase or
// tampered ciphertext yields a *DecryptionError; a structurally bad envelope
// yields an error matching ErrInvalidEnvelope.
func OpenWithPassphrase(blob []byte, passphrase string) ([]byte, error) {
	var env Envelope
	if err := json.Unmarshal(blob, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidEnvelope, err)
	}
	if env.Format != SealedFormat || env.Version != sealedVersion {
		return nil, fmt.Errorf("%w: unsupported format %q v%d", ErrInvalidEnvelope, env.Format, env.Version)
	}
	if env.KDF != "argon2id" || env.Time == 0 || env.Time > maxArgonTime ||
		env.Threads == 0 || len(env.Salt) == 0 || env.Memory == 0 || env.Memory > maxArgonMemory {
		return nil, fmt.Errorf("%w: key derivation parameters out of range", ErrInvalidEnvelope)
	}
	key := argon2.IDKey([]byte(passphrase), env.Salt, env.Time, env.Memory, env.Threads, KeySize)
	plain, err := open(env.Ciphertext, key)
	if err != nil {
		return nil, &DecryptionError{Err: err}
	}
	return plain, nil
}

// IsSealed reports whether blob looks like a passphrase envelope.
func IsSealed(blob []byte) bool {
	var probe struct {
		Format string `json:"format"`
	}
	if err := json.Unmarshal(blob, &probe); err != nil {
		return false
	}
	return probe.Format == SealedFormat
}
