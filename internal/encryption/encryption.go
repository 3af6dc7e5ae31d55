// ABOUTME: Field-level encryption with a device key persisted in the KV store.
// ABOUTME: Provisions the key once per process and collapses "" and "0" to an empty sentinel.
package encryption

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/harperreed/fitlog/internal/kv"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/sync/singleflight"
)

// KeyStorageKey is the reserved settings key the device key is persisted under.
const KeyStorageKey = "settings.reserved:encryption_key"

// KeySize is the length of a device key in bytes.
const KeySize = chacha20poly1305.KeySize

// Key is symmetric key material.
type Key []byte

// Equal reports whether two keys hold the same bytes.
func (k Key) Equal(other Key) bool {
	return bytes.Equal(k, other)
}

// DecryptionError reports ciphertext that cannot be opened with the current key.
type DecryptionError struct {
	Err error
}

func (e *DecryptionError) Error() string {
	return fmt.Sprintf("decrypt field: %v", e.Err)
}

func (e *DecryptionError) Unwrap() error {
	return e.Err
}

var errShortCiphertext = errors.New("ciphertext too short")

// Service provisions the device key and encrypts individual field values.
type Service struct {
	store  kv.Store
	logger *log.Logger

	group singleflight.Group
	mu    sync.RWMutex
	key   Key
}

// NewService creates a Service that persists its key in store.
func NewService(store kv.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{store: store, logger: logger}
}

// GetOrCreateKey returns the device key, generating and persisting it on the
// first call. Concurrent first calls share a single read-check-write.
func (s *Service) GetOrCreateKey(ctx context.Context) (Key, error) {
	if k := s.cached(); k != nil {
		return k, nil
	}

	v, err, _ := s.group.Do("key", func() (interface{}, error) {
		if k := s.cached(); k != nil {
			return k, nil
		}
		k, err := s.loadOrCreate(ctx)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.key = k
		s.mu.Unlock()
		return k, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(Key), nil
}

func (s *Service) cached() Key {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.key
}

func (s *Service) loadOrCreate(ctx context.Context) (Key, error) {
	var key Key
	err := s.store.Update(ctx, func(txn kv.Txn) error {
		raw, err := txn.Get([]byte(KeyStorageKey))
		if err == nil {
			decoded, derr := base64.StdEncoding.DecodeString(string(raw))
			if derr != nil {
				return fmt.Errorf("decode stored key: %w", derr)
			}
			if len(decoded) != KeySize {
				return fmt.Errorf("stored key has %d bytes, want %d", len(decoded), KeySize)
			}
			key = decoded
			return nil
		}
		if !errors.Is(err, kv.ErrKeyNotFound) {
			return fmt.Errorf("read stored key: %w", err)
		}

		fresh := make([]byte, KeySize)
		if _, err := rand.Read(fresh); err != nil {
			return fmt.Errorf("generate key: %w", err)
		}
		if err := txn.Set([]byte(KeyStorageKey), []byte(base64.StdEncoding.EncodeToString(fresh))); err != nil {
			return fmt.Errorf("persist key: %w", err)
		}
		s.logger.Info("generated device encryption key")
		key = fresh
		return nil
	})
	if err != nil {
		return nil, err
	}
	return key, nil
}

// IsEmptyValue reports whether plaintext collapses to the empty sentinel.
// Only the exact strings "" and "0" do; "000" or " " are ordinary text.
func IsEmptyValue(plaintext string) bool {
	return plaintext == "" || plaintext == "0"
}

// Encrypt seals plaintext with key. "" and "0" return "".
func Encrypt(plaintext string, key Key) (string, error) {
	if IsEmptyValue(plaintext) {
		return "", nil
	}
	sealed, err := seal([]byte(plaintext), key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt opens ciphertext produced by Encrypt. "" decrypts to "".
func Decrypt(ciphertext string, key Key) (string, error) {
	if ciphertext == "" {
		return "", nil
	}
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", &DecryptionError{Err: fmt.Errorf("decode base64: %w", err)}
	}
	plain, err := open(raw, key)
	if err != nil {
		return "", &DecryptionError{Err: err}
	}
	return string(plain), nil
}

// EncryptFloat encrypts an optional numeric field. nil and any zero
// (including -0) become "".
func EncryptFloat(v *float64, key Key) (string, error) {
	if v == nil || *v == 0 {
		return "", nil
	}
	return Encrypt(strconv.FormatFloat(*v, 'f', -1, 64), key)
}

// DecryptFloat reverses EncryptFloat. The empty sentinel reads back as nil.
func DecryptFloat(ciphertext string, key Key) (*float64, error) {
	plain, err := Decrypt(ciphertext, key)
	if err != nil {
		return nil, err
	}
	if plain == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(plain, 64)
	if err != nil {
		return nil, &DecryptionError{Err: fmt.Errorf("parse number: %w", err)}
	}
	return &f, nil
}

// seal returns nonce || ciphertext.
func seal(plaintext []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func open(sealed []byte, key []byte) ([]byte, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	if len(sealed) < aead.NonceSize()+aead.Overhead() {
		return nil, errShortCiphertext
	}
	nonce, payload := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	return aead.Open(nil, nonce, payload, nil)
}
