// Package filecrypt is the envelope encryption engine for document bytes.
// It is a pure transform over a process-wide master key: plaintext in,
// (ciphertext, iv, tag) out, and the inverse with mandatory tag verification.
package filecrypt

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"path"
	"strings"
)

const (
	// KeySize is the AES-256 master key length in bytes.
	KeySize = 32
	// IVSize is the per-document initialization vector length. One fresh
	// random IV per Encrypt call; reuse with the same key breaks GCM.
	IVSize = 16
	// TagSize is the GCM authentication tag length.
	TagSize = 16
)

// ErrIntegrity indicates the authentication tag did not verify: the stored
// ciphertext or tag was corrupted or tampered with. Never recoverable.
var ErrIntegrity = errors.New("filecrypt: integrity check failed")

// ErrInvalidKey indicates a master key of the wrong length or encoding.
var ErrInvalidKey = errors.New("filecrypt: invalid master key")

// Envelope holds the output of one encryption call. IV and Tag travel with
// the ciphertext into metadata; the key never does.
type Envelope struct {
	Ciphertext []byte
	IV         []byte
	Tag        []byte
}

// Engine encrypts and decrypts document bytes with a fixed master key.
// Safe for unsynchronized concurrent use: the key is immutable after New.
type Engine struct {
	aead cipher.AEAD
}

// ParseMasterKey decodes a 64-character hex secret into key bytes. Absence or
// wrong length is a startup-fatal configuration error, never per-request.
func ParseMasterKey(hexKey string) ([]byte, error) {
	hexKey = strings.TrimSpace(hexKey)
	if hexKey == "" {
		return nil, fmt.Errorf("%w: key is not configured", ErrInvalidKey)
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("%w: not hex-encoded", ErrInvalidKey)
	}
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	return key, nil
}

// New constructs an Engine from raw key bytes.
func New(key []byte) (*Engine, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, IVSize)
	if err != nil {
		return nil, err
	}
	return &Engine{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh random IV and returns the envelope.
func (e *Engine) Encrypt(plaintext []byte) (Envelope, error) {
	iv := make([]byte, IVSize)
	if _, err := rand.Read(iv); err != nil {
		return Envelope{}, fmt.Errorf("generate iv: %w", err)
	}
	sealed := e.aead.Seal(nil, iv, plaintext, nil)
	// Seal appends the tag after the ciphertext; store them separately so the
	// metadata row carries the tag the way the blob store carries the bytes.
	split := len(sealed) - TagSize
	return Envelope{
		Ciphertext: sealed[:split],
		IV:         iv,
		Tag:        sealed[split:],
	}, nil
}

// Decrypt verifies the tag and returns plaintext. A tag mismatch yields
// ErrIntegrity and no partial plaintext.
func (e *Engine) Decrypt(env Envelope) ([]byte, error) {
	if len(env.IV) != IVSize || len(env.Tag) != TagSize {
		return nil, ErrIntegrity
	}
	sealed := make([]byte, 0, len(env.Ciphertext)+TagSize)
	sealed = append(sealed, env.Ciphertext...)
	sealed = append(sealed, env.Tag...)
	plaintext, err := e.aead.Open(nil, env.IV, sealed, nil)
	if err != nil {
		return nil, ErrIntegrity
	}
	return plaintext, nil
}

// NewLocator generates a storage filename independent of the original name:
// random hex identifier, preserved extension, ".enc" suffix. Patient-visible
// names must never leak into storage paths.
func NewLocator(originalFilename string) (string, error) {
	random := make([]byte, 16)
	if _, err := rand.Read(random); err != nil {
		return "", fmt.Errorf("generate locator: %w", err)
	}
	name := hex.EncodeToString(random)
	ext := strings.TrimPrefix(path.Ext(originalFilename), ".")
	if ext != "" {
		name = name + "." + ext
	}
	return name + ".enc", nil
}
