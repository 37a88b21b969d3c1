package middleware

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/aretw0/vitrine/pkg/domain"
	"github.com/aretw0/vitrine/pkg/ports"
)

// ErrNotSealed is returned when an encrypted archive finds a plain recording.
var ErrNotSealed = errors.New("recording is not sealed")

// EncryptionConfig holds the keys for encryption and decryption.
type EncryptionConfig struct {
	// ActiveKey is the key used for encrypting new data.
	// Must be 32 bytes for AES-256.
	ActiveKey []byte

	// FallbackKeys are tried in order when the active key cannot open a
	// recording, so keys can be rotated without rewriting the archive.
	FallbackKeys [][]byte
}

type encryptionMiddleware struct {
	next   ports.ReportArchive
	config EncryptionConfig
}

// NewEncryptionMiddleware seals recordings with AES-GCM. Only the report id,
// name and timestamp stay readable, so archives can still list them.
func NewEncryptionMiddleware(config EncryptionConfig) (Middleware, error) {
	if len(config.ActiveKey) != 32 {
		return nil, errors.New("active key must be 32 bytes (AES-256)")
	}
	return func(next ports.ReportArchive) ports.ReportArchive {
		return &encryptionMiddleware{
			next:   next,
			config: config,
		}
	}, nil
}

func (m *encryptionMiddleware) Save(ctx context.Context, rec *domain.Recording) error {
	plainText, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal recording: %w", err)
	}

	ciphertext, err := encrypt(plainText, m.config.ActiveKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt recording: %w", err)
	}

	return m.next.Save(ctx, &domain.Recording{
		ReportID:   rec.ReportID,
		Name:       rec.Name,
		RecordedAt: rec.RecordedAt,
		Sealed:     ciphertext,
	})
}

func (m *encryptionMiddleware) Load(ctx context.Context, id domain.ReportID) (*domain.Recording, error) {
	sealed, err := m.next.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(sealed.Sealed) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotSealed, id)
	}

	plainText, err := decryptWithRotation(sealed.Sealed, m.config.ActiveKey, m.config.FallbackKeys)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt recording %s: %w", id, err)
	}

	var rec domain.Recording
	if err := json.Unmarshal(plainText, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal decrypted recording: %w", err)
	}
	return &rec, nil
}

func (m *encryptionMiddleware) Delete(ctx context.Context, id domain.ReportID) error {
	return m.next.Delete(ctx, id)
}

// List opens every sealed recording to count its envelopes.
func (m *encryptionMiddleware) List(ctx context.Context) ([]domain.ReportSummary, error) {
	summaries, err := m.next.List(ctx)
	errs := []error{err}
	for i, s := range summaries {
		rec, err := m.Load(ctx, s.ReportID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		summaries[i].Envelopes = len(rec.Envelopes)
	}
	return summaries, errors.Join(errs...)
}

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
	if plain, err := decrypt(ciphertext, activeKey); err == nil {
		return plain, nil
	}
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
	return gcm.Open(nil, nonce, ciphertext[gcm.NonceSize():], nil)
}
