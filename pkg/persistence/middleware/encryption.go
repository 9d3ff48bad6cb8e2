package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/pageflow/pkg/domain"
	"github.com/aretw0/pageflow/pkg/ports"
)

// EnvelopeKey is the attribute holding the sealed attributes of a record.
const EnvelopeKey = "__encrypted__"

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys is a list of old keys to try when decryption fails.
	// This enables zero-downtime key rotation.
	FallbackKeys [][]byte
}

// Validate checks the key sizes.
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
	next   ports.ConversationStore
	config EncryptionConfig
}

// NewEncryptionMiddleware creates a middleware that seals conversation
// attributes with AES-GCM. The cursor (flow, states, history) stays readable
// so that stored conversations can still be inspected. The ciphertext is bound
// to the session and conversation id; a blob copied to another record fails
// to open.
//
// It panics on an invalid config; call Validate first for user input.
func NewEncryptionMiddleware(config EncryptionConfig) Middleware {
	if err := config.Validate(); err != nil {
		panic(err)
	}
	return func(next ports.ConversationStore) ports.ConversationStore {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}
}

func (m *encryptionMiddleware) Save(ctx context.Context, sessionID string, rec domain.Record) error {
	// 1. Serialize the attributes
	plainText, err := json.Marshal(rec.Attributes)
	if err != nil {
		return fmt.Errorf("failed to marshal attributes: %w", err)
	}

	// 2. Encrypt
	ciphertext, err := encrypt(plainText, m.config.ActiveKey, associatedData(sessionID, rec.ID))
	if err != nil {
		return fmt.Errorf("failed to encrypt attributes: %w", err)
	}

	// 3. Create envelope
	envelope := rec.Clone()
	envelope.Attributes = map[string]any{
		EnvelopeKey: base64.StdEncoding.EncodeToString(ciphertext),
	}

	return m.next.Save(ctx, sessionID, envelope)
}

func (m *encryptionMiddleware) Load(ctx context.Context, sessionID, conversationID string) (domain.Record, error) {
	// 1. Load envelope
	envelope, err := m.next.Load(ctx, sessionID, conversationID)
	if err != nil {
		return domain.Record{}, err
	}

	// 2. Extract ciphertext. A record without an envelope was not written
	// through this middleware and is refused.
	encryptedStr, ok := envelope.Attributes[EnvelopeKey].(string)
	if !ok {
		return domain.Record{}, errors.New("record is missing encrypted data envelope")
	}

	ciphertext, err := base64.StdEncoding.DecodeString(encryptedStr)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to decode ciphertext base64: %w", err)
	}

	// 3. Decrypt (Try Active, then Fallback)
	plainText, err := decryptWithRotation(ciphertext, associatedData(sessionID, conversationID), m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return domain.Record{}, fmt.Errorf("failed to decrypt attributes: %w", err)
	}

	// 4. Deserialize
	var attrs map[string]any
	if err := json.Unmarshal(plainText, &attrs); err != nil {
		return domain.Record{}, fmt.Errorf("failed to unmarshal decrypted attributes: %w", err)
	}

	rec := envelope
	rec.Attributes = attrs
	return rec, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, sessionID, conversationID string) error {
	return m.next.Delete(ctx, sessionID, conversationID)
}

func (m *encryptionMiddleware) List(ctx context.Context, sessionID string) ([]string, error) {
	return m.next.List(ctx, sessionID)
}

// Helpers

func associatedData(sessionID, conversationID string) []byte {
	return []byte(sessionID + "\x00" + conversationID)
}

func encrypt(plaintext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

func decryptWithRotation(ciphertext, aad, activeKey []byte, fallbackKeys [][]byte) ([]byte, error) {
	// Try active key first
	if plain, err := decrypt(ciphertext, activeKey, aad); err == nil {
		return plain, nil
	}

	// Try fallbacks in order
	for _, key := range fallbackKeys {
		if plain, err := decrypt(ciphertext, key, aad); err == nil {
			return plain, nil
		}
	}

	return nil, errors.New("decryption failed with all available keys")
}

func decrypt(ciphertext, key, aad []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}

	nonce := ciphertext[:gcm.NonceSize()]
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], aad)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
