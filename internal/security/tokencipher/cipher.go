// Package tokencipher seals long-lived third-party access tokens at rest.
//
// Sealed tokens have the form "v1.<nonce>.<tag>.<ciphertext>", each field
// URL-safe base64 without padding, using AES-256-GCM with a 96-bit nonce.
// Values without the "v1." prefix are legacy plaintext and pass through
// Decrypt unchanged so they can be migrated on read.
package tokencipher

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"travelsec/pkg/errors"
	"travelsec/pkg/metrics"
)

const (
	// Version is the format tag of sealed tokens
	Version = "v1"
	// NonceSize is the GCM nonce length in bytes
	NonceSize = 12
	// TagSize is the GCM authentication tag length in bytes
	TagSize = 16

	prefix = Version + "."
)

// Decoded is the result of DecodeWithMigration
type Decoded struct {
	Token string
	// NeedsMigration is true when the stored value was plaintext and
	// should be re-sealed.
	NeedsMigration bool
}

// Cipher encrypts and decrypts tokens. The key is resolved on first use
// and kept for the life of the Cipher.
type Cipher struct {
	source  KeySource
	logger  *slog.Logger
	metrics *metrics.Metrics

	once   sync.Once
	aead   cipher.AEAD
	keyErr error
}

// New creates a Cipher reading key material from source.
func New(source KeySource, logger *slog.Logger, m *metrics.Metrics) *Cipher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Cipher{
		source:  source,
		logger:  logger.With("component", "tokencipher"),
		metrics: m,
	}
}

// IsEncrypted reports whether stored carries the sealed-token prefix.
// It does not validate the rest of the value.
func IsEncrypted(stored string) bool {
	return strings.HasPrefix(strings.TrimSpace(stored), prefix)
}

func (c *Cipher) gcm() (cipher.AEAD, error) {
	c.once.Do(func() {
		key, err := resolveKey(c.source)
		if err != nil {
			c.keyErr = err
			c.logger.Error("token encryption key unavailable", "error", err)
			return
		}
		block, err := aes.NewCipher(key)
		if err != nil {
			c.keyErr = errors.NewError(errors.ErrorTypeConfiguration, "create cipher").WithCause(err)
			return
		}
		aead, err := cipher.NewGCM(block)
		if err != nil {
			c.keyErr = errors.NewError(errors.ErrorTypeConfiguration, "create GCM").WithCause(err)
			return
		}
		c.aead = aead
		c.logger.Debug("token encryption key resolved")
	})
	return c.aead, c.keyErr
}

// Encrypt seals plaintext. Surrounding whitespace is trimmed and a value
// that is already sealed is returned unchanged.
func (c *Cipher) Encrypt(plaintext string) (string, error) {
	out, err := c.encrypt(plaintext)
	c.metrics.ObserveCipher("encrypt", err)
	return out, err
}

func (c *Cipher) encrypt(plaintext string) (string, error) {
	token := strings.TrimSpace(plaintext)
	if token == "" {
		return "", emptyError("encrypt")
	}
	if IsEncrypted(token) {
		return token, nil
	}

	aead, err := c.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, NonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.NewError(errors.ErrorTypeInternal, "generate nonce").WithCause(err)
	}

	// Seal returns ciphertext || tag
	sealed := aead.Seal(nil, nonce, []byte(token), nil)
	ct, tag := sealed[:len(sealed)-TagSize], sealed[len(sealed)-TagSize:]

	return strings.Join([]string{Version, encodeField(nonce), encodeField(tag), encodeField(ct)}, "."), nil
}

// Decrypt opens a sealed token. Plaintext values are returned unchanged.
func (c *Cipher) Decrypt(stored string) (string, error) {
	out, err := c.decrypt(stored)
	c.metrics.ObserveCipher("decrypt", err)
	return out, err
}

func (c *Cipher) decrypt(stored string) (string, error) {
	token := strings.TrimSpace(stored)
	if token == "" {
		return "", emptyError("decrypt")
	}
	if !IsEncrypted(token) {
		return token, nil
	}

	parts := strings.Split(token, ".")
	if len(parts) != 4 {
		return "", malformedError(fmt.Sprintf("expected 4 fields, got %d", len(parts)))
	}
	if parts[0] != Version {
		return "", malformedError("unknown version")
	}
	for _, p := range parts[1:] {
		if p == "" {
			return "", malformedError("empty field")
		}
	}

	nonce, err := decodeField(parts[1])
	if err != nil || len(nonce) != NonceSize {
		return "", malformedError("bad nonce")
	}
	tag, err := decodeField(parts[2])
	if err != nil || len(tag) != TagSize {
		return "", malformedError("bad tag")
	}
	ct, err := decodeField(parts[3])
	if err != nil {
		return "", malformedError("bad ciphertext")
	}

	aead, err := c.gcm()
	if err != nil {
		return "", err
	}

	plain, err := aead.Open(nil, nonce, append(ct, tag...), nil)
	if err != nil {
		return "", authError(err)
	}
	return string(plain), nil
}

// DecodeWithMigration decrypts stored and reports whether it was legacy
// plaintext that should be re-sealed.
func (c *Cipher) DecodeWithMigration(stored string) (Decoded, error) {
	token, err := c.Decrypt(stored)
	if err != nil {
		return Decoded{}, err
	}
	return Decoded{Token: token, NeedsMigration: !IsEncrypted(stored)}, nil
}

// HealthCheck resolves the key and runs an encrypt/decrypt round trip.
func (c *Cipher) HealthCheck() error {
	const sample = "health-check-sample"
	sealed, err := c.encrypt(sample)
	if err != nil {
		return fmt.Errorf("health check encryption failed: %w", err)
	}
	plain, err := c.decrypt(sealed)
	if err != nil {
		return fmt.Errorf("health check decryption failed: %w", err)
	}
	if plain != sample {
		return fmt.Errorf("health check round-trip failed: data mismatch")
	}
	return nil
}
