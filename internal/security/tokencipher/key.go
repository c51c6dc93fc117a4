package tokencipher

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const (
	// KeySize is the AES-256 key length
	KeySize = 32

	devFallbackSecret = "dev-social-token-encryption-key"
)

// KeySource supplies the raw key material.
type KeySource interface {
	// TokenEncryptionKey returns the configured key, or "".
	TokenEncryptionKey() string
	// TokenKeyFallbackSecret returns the non-production fallback secret, or "".
	TokenKeyFallbackSecret() string
	// IsProduction reports whether the process runs in production.
	IsProduction() bool
}

// resolveKey derives the 32-byte key. The configured value is tried, in
// order, as "hex:"-tagged, "base64:"-tagged, 64 hex digits and raw
// base64; the first decoding to exactly 32 bytes wins. Anything else is
// hashed with SHA-256.
func resolveKey(src KeySource) ([]byte, error) {
	if configured := strings.TrimSpace(src.TokenEncryptionKey()); configured != "" {
		return ParseKey(configured), nil
	}
	if src.IsProduction() {
		return nil, keyError()
	}

	fallback := strings.TrimSpace(src.TokenKeyFallbackSecret())
	if fallback == "" {
		fallback = devFallbackSecret
	}
	sum := sha256.Sum256([]byte(fallback))
	return sum[:], nil
}

// ParseKey turns configured key material into a 32-byte key.
func ParseKey(raw string) []byte {
	value := strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(value, "hex:"); ok {
		if k := decodeLenientHex(rest); len(k) == KeySize {
			return k
		}
	}

	if rest, ok := strings.CutPrefix(value, "base64:"); ok {
		if k := decodeLenientBase64(rest); len(k) == KeySize {
			return k
		}
	}

	if isHex64(value) {
		if k, err := hex.DecodeString(value); err == nil {
			return k
		}
	}

	if k := decodeLenientBase64(value); len(k) == KeySize {
		return k
	}

	sum := sha256.Sum256([]byte(value))
	return sum[:]
}

func isHex64(s string) bool {
	if len(s) != 2*KeySize {
		return false
	}
	for i := 0; i < len(s); i++ {
		if fromHexChar(s[i]) < 0 {
			return false
		}
	}
	return true
}
