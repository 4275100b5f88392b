package crypto

import (
	"crypto/aes"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fernet/fernet-go"

	"github.com/TheMichaelB/obsbackup/internal/events"
	"github.com/TheMichaelB/obsbackup/internal/storage"
)

const (
	// FileMode is applied to sealed and unsealed outputs.
	FileMode os.FileMode = 0600

	// Binary token layout: version(1) ‖ timestamp(8) ‖ iv(16) ‖ ciphertext ‖ hmac(32).
	tokenOverhead = 1 + 8 + aes.BlockSize + sha256.Size
	minTokenSize  = tokenOverhead + aes.BlockSize
)

var tokenEncoding = base64.URLEncoding.Strict()

// Codec seals files into the salt ‖ token layout and opens them again.
// A Codec holds no per-call state and is safe for concurrent use.
type Codec struct {
	store   storage.BlobStore
	logger  *events.Logger
	deriver *KeyDeriver
	random  io.Reader

	unsealStrategy storage.ConflictStrategy
}

// CodecOption configures a Codec.
type CodecOption func(*Codec)

// WithIterations sets the PBKDF2 work factor.
func WithIterations(iterations int) CodecOption {
	return func(c *Codec) {
		c.deriver = NewKeyDeriver(iterations)
	}
}

// WithKeyDeriver replaces the key deriver.
func WithKeyDeriver(d *KeyDeriver) CodecOption {
	return func(c *Codec) {
		c.deriver = d
	}
}

// WithRandom sets the salt source.
func WithRandom(r io.Reader) CodecOption {
	return func(c *Codec) {
		c.random = r
	}
}

// WithUnsealOverwrite lets Unseal atomically replace an existing output.
func WithUnsealOverwrite(overwrite bool) CodecOption {
	return func(c *Codec) {
		if overwrite {
			c.unsealStrategy = storage.ConflictOverwrite
		} else {
			c.unsealStrategy = storage.ConflictError
		}
	}
}

// NewCodec creates a codec writing through store.
func NewCodec(store storage.BlobStore, logger *events.Logger, opts ...CodecOption) *Codec {
	c := &Codec{
		store:          store,
		logger:         logger.WithField("component", "codec"),
		deriver:        NewKeyDeriver(DefaultIterations),
		random:         rand.Reader,
		unsealStrategy: storage.ConflictError,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Seal encrypts inputPath into outputPath. The output never replaces an
// existing file.
func (c *Codec) Seal(inputPath, outputPath, password string) error {
	info, err := c.statInput(inputPath)
	if err != nil {
		return err
	}
	if info.Size == 0 {
		return &EmptyInputError{Path: inputPath}
	}

	if exists, err := c.store.Exists(outputPath); err != nil {
		return &OutputWriteError{Path: outputPath, Err: err}
	} else if exists {
		return &OutputExistsError{Path: outputPath}
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(c.random, salt); err != nil {
		return fmt.Errorf("generate salt: %w", err)
	}

	key, err := c.deriver.Derive(password, salt)
	if err != nil {
		return err
	}
	defer key.Destroy()

	plaintext, err := c.readInput(inputPath)
	if err != nil {
		return err
	}
	defer zero(plaintext)

	if len(plaintext) == 0 {
		return &EmptyInputError{Path: inputPath}
	}

	fk := fernetKey(key)
	defer zero(fk[:])

	token, err := fernet.EncryptAndSign(plaintext, fk)
	if err != nil {
		return fmt.Errorf("encrypt: %w", err)
	}

	blob := make([]byte, 0, SaltSize+len(token))
	blob = append(blob, salt...)
	blob = append(blob, token...)

	if err := c.write(outputPath, blob, storage.ConflictError); err != nil {
		return err
	}

	c.logger.WithFields(map[string]interface{}{
		"input":  inputPath,
		"output": outputPath,
		"size":   len(blob),
	}).Info("Sealed file")

	return nil
}

// Unseal authenticates and decrypts inputPath into outputPath.
func (c *Codec) Unseal(inputPath, outputPath, password string) error {
	info, err := c.statInput(inputPath)
	if err != nil {
		return err
	}
	if info.Size < SaltSize {
		return &MalformedInputError{Path: inputPath, Size: info.Size}
	}

	if c.unsealStrategy == storage.ConflictError {
		if exists, err := c.store.Exists(outputPath); err != nil {
			return &OutputWriteError{Path: outputPath, Err: err}
		} else if exists {
			return &OutputExistsError{Path: outputPath}
		}
	}

	blob, err := c.readInput(inputPath)
	if err != nil {
		return err
	}
	if len(blob) < SaltSize {
		return &MalformedInputError{Path: inputPath, Size: int64(len(blob))}
	}

	key, err := c.deriver.Derive(password, blob[:SaltSize])
	if err != nil {
		return err
	}
	defer key.Destroy()

	plaintext, err := openToken(blob[SaltSize:], key)
	if err != nil {
		c.logger.WithField("input", inputPath).Warn("Authentication failed")
		return err
	}
	defer zero(plaintext)

	if err := c.write(outputPath, plaintext, c.unsealStrategy); err != nil {
		return err
	}

	c.logger.WithFields(map[string]interface{}{
		"input":  inputPath,
		"output": outputPath,
		"size":   len(plaintext),
	}).Info("Unsealed file")

	return nil
}

func (c *Codec) statInput(path string) (storage.FileInfo, error) {
	info, err := c.store.Stat(path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return info, &InputNotFoundError{Path: path}
		}
		return info, &InputNotFoundError{Path: path, Reason: err.Error()}
	}
	if !info.IsRegular() {
		return info, &InputNotFoundError{Path: path, Reason: "not a regular file"}
	}
	return info, nil
}

func (c *Codec) readInput(path string) ([]byte, error) {
	data, err := c.store.Read(path)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, &InputNotFoundError{Path: path}
		}
		return nil, fmt.Errorf("read input: %w", err)
	}
	return data, nil
}

func (c *Codec) write(path string, data []byte, strategy storage.ConflictStrategy) error {
	if err := c.store.Write(path, data, FileMode, strategy); err != nil {
		if errors.Is(err, storage.ErrExists) {
			return &OutputExistsError{Path: path}
		}
		return &OutputWriteError{Path: path, Err: err}
	}
	return nil
}

// openToken verifies and decrypts a Fernet token. Every failure maps to
// ErrInvalidPasswordOrCorruptData.
func openToken(token []byte, key *DerivedKey) ([]byte, error) {
	raw := make([]byte, tokenEncoding.DecodedLen(len(token)))
	n, err := tokenEncoding.Decode(raw, token)
	if err != nil {
		return nil, ErrInvalidPasswordOrCorruptData
	}
	// fernet-go indexes into the token without bounds checks.
	if n < minTokenSize || (n-tokenOverhead)%aes.BlockSize != 0 {
		return nil, ErrInvalidPasswordOrCorruptData
	}

	fk := fernetKey(key)
	defer zero(fk[:])

	// ttl 0 disables expiry; sealed backups are opened years later.
	msg := fernet.VerifyAndDecrypt(token, 0, []*fernet.Key{fk})
	if msg == nil {
		return nil, ErrInvalidPasswordOrCorruptData
	}
	return msg, nil
}

func fernetKey(key *DerivedKey) *fernet.Key {
	var fk fernet.Key
	copy(fk[:], key.Bytes())
	return &fk
}
