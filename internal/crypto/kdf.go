package crypto

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// SaltSize is the length of the salt prefix of every sealed file.
	SaltSize = 16

	// KeySize is the derived key length: 16 bytes HMAC-SHA256 signing key
	// followed by 16 bytes AES-128 encryption key.
	KeySize = 32

	// DefaultIterations is the PBKDF2-HMAC-SHA256 work factor. Lowering it
	// weakens every file sealed afterwards.
	DefaultIterations = 480000
)

// KDFFunc derives keyLen bytes from password and salt.
type KDFFunc func(password, salt []byte, iterations, keyLen int) ([]byte, error)

func pbkdf2SHA256(password, salt []byte, iterations, keyLen int) ([]byte, error) {
	return pbkdf2.Key(password, salt, iterations, keyLen, sha256.New), nil
}

// KeyDeriver turns a password and salt into a DerivedKey.
type KeyDeriver struct {
	iterations int
	kdf        KDFFunc
}

// DeriverOption configures a KeyDeriver.
type DeriverOption func(*KeyDeriver)

// WithKDF replaces the key derivation function.
func WithKDF(fn KDFFunc) DeriverOption {
	return func(d *KeyDeriver) {
		d.kdf = fn
	}
}

// NewKeyDeriver creates a deriver. A non-positive iteration count selects
// DefaultIterations.
func NewKeyDeriver(iterations int, opts ...DeriverOption) *KeyDeriver {
	if iterations <= 0 {
		iterations = DefaultIterations
	}

	d := &KeyDeriver{
		iterations: iterations,
		kdf:        pbkdf2SHA256,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Iterations returns the configured work factor.
func (d *KeyDeriver) Iterations() int {
	return d.iterations
}

// Derive computes the key for password and salt. The result is
// deterministic for identical inputs.
func (d *KeyDeriver) Derive(password string, salt []byte) (*DerivedKey, error) {
	if password == "" {
		return nil, ErrEmptyPassword
	}
	if len(salt) != SaltSize {
		return nil, &KeyDerivationError{Err: fmt.Errorf("%w: got %d bytes, want %d", ErrInvalidSalt, len(salt), SaltSize)}
	}

	pw := []byte(password)
	defer zero(pw)

	raw, err := d.kdf(pw, salt, d.iterations, KeySize)
	if err != nil {
		return nil, &KeyDerivationError{Err: err}
	}
	if len(raw) != KeySize {
		zero(raw)
		return nil, &KeyDerivationError{Err: fmt.Errorf("derived %d bytes, want %d", len(raw), KeySize)}
	}

	return &DerivedKey{raw: raw}, nil
}

// DerivedKey holds sensitive key material. Call Destroy when done.
type DerivedKey struct {
	raw []byte
}

// Bytes returns the raw key. The slice is shared with the key and is
// cleared by Destroy.
func (k *DerivedKey) Bytes() []byte {
	return k.raw
}

// Encode returns the key as URL-safe base64 with padding.
func (k *DerivedKey) Encode() string {
	return base64.URLEncoding.EncodeToString(k.raw)
}

// Destroy overwrites the key material.
func (k *DerivedKey) Destroy() {
	if k == nil {
		return
	}
	zero(k.raw)
	k.raw = nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
