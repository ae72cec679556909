package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/aretw0/ifgate/pkg/domain"
	"github.com/aretw0/ifgate/pkg/ports"
)

// sealedPrefix marks an encrypted command or output in the underlying store.
const sealedPrefix = "sealed:v1:"

// ErrNotSealed is returned when a stored turn was written without encryption.
var ErrNotSealed = errors.New("turn is not encrypted")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Validate checks key sizes.
func (c EncryptionConfig) Validate() error {
	if len(c.ActiveKey) != 32 {
		return errors.New("active key must be 32 bytes (AES-256)")
	}
	for i, k := range c.FallbackKeys {
		if len(k) != 32 {
			return fmt.Errorf("fallback key %d must be 32 bytes (AES-256)", i)
		}
	}
	return nil
}

type encryptionMiddleware struct {
	next   ports.TranscriptStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals turn commands and outputs with AES-GCM.
// Session records and turn metadata (seq, timestamps, partial flag) stay readable.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return func(next ports.TranscriptStore) ports.TranscriptStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) CreateSession(ctx context.Context, info domain.SessionInfo) error {
	return m.next.CreateSession(ctx, info)
}

func (m *encryptionMiddleware) GetSession(ctx context.Context, sessionID string) (domain.SessionInfo, error) {
	return m.next.GetSession(ctx, sessionID)
}

func (m *encryptionMiddleware) DeleteSession(ctx context.Context, sessionID string) error {
	return m.next.DeleteSession(ctx, sessionID)
}

func (m *encryptionMiddleware) EndSession(ctx context.Context, sessionID string, at time.Time) error {
	return m.next.EndSession(ctx, sessionID, at)
}

func (m *encryptionMiddleware) AppendTurn(ctx context.Context, turn domain.Turn) error {
	var err error
	if turn.Command, err = m.seal(turn.Command); err != nil {
		return fmt.Errorf("failed to encrypt command: %w", err)
	}
	if turn.Output, err = m.seal(turn.Output); err != nil {
		return fmt.Errorf("failed to encrypt output: %w", err)
	}
	return m.next.AppendTurn(ctx, turn)
}

func (m *encryptionMiddleware) Transcript(ctx context.Context, sessionID string, page, limit int) (domain.TranscriptPage, error) {
	p, err := m.next.Transcript(ctx, sessionID, page, limit)
	if err != nil {
		return p, err
	}

	turns := make([]domain.Turn, len(p.Turns))
	for i, t := range p.Turns {
		if t.Command, err = m.open(t.Command); err != nil {
			return domain.TranscriptPage{}, fmt.Errorf("failed to decrypt turn %d: %w", t.Seq, err)
		}
		if t.Output, err = m.open(t.Output); err != nil {
			return domain.TranscriptPage{}, fmt.Errorf("failed to decrypt turn %d: %w", t.Seq, err)
		}
		turns[i] = t
	}
	p.Turns = turns
	return p, nil
}

func (m *encryptionMiddleware) seal(plain string) (string, error) {
	ciphertext, err := encrypt([]byte(plain), m.config.ActiveKey)
	if err != nil {
		return "", err
	}
	return sealedPrefix + base64.StdEncoding.EncodeToString(ciphertext), nil
}

// open fails on plaintext rows: a store configured for encryption expects every turn sealed.
func (m *encryptionMiddleware) open(stored string) (string, error) {
	encoded, ok := strings.CutPrefix(stored, sealedPrefix)
	if !ok {
		return "", ErrNotSealed
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	plainText, err := decryptWithRotation(ciphertext, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return "", err
	}
	return string(plainText), nil
}

// Helpers

func encrypt(plaintext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func decryptWithRotation(ciphertext []byte, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext []byte, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	ciphertextBytes := ciphertext[gcm.NonceSize():]

	return gcm.Open(nil, nonce, ciphertextBytes, nil)
}
