// Package secrets implements AEAD envelope encryption over pluggable
// storage backends (file, OS keyring, environment, external KMS) with
// master-key rotation.
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/munet-project/unet/pkg/util"
)

// MaxSecretSize rejects payloads over 1 MiB.
const MaxSecretSize = 1 << 20

// EncryptedSecret is the at-rest envelope for one stored secret.
type EncryptedSecret struct {
	Data      string            `json:"data"` // base64 ciphertext
	Nonce     string            `json:"nonce"` // base64, 96 bits
	Algorithm string            `json:"algorithm"`
	CreatedAt time.Time         `json:"created_at"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
}

// Expired reports whether the secret has a deadline that has passed.
func (s *EncryptedSecret) Expired(now time.Time) bool {
	return s.ExpiresAt != nil && now.After(*s.ExpiresAt)
}

const argon2KeyLen = 32

// MasterKey is the 256-bit key an EncryptedSecret is sealed under.
type MasterKey [argon2KeyLen]byte

// GenerateMasterKey samples a fresh random master key.
func GenerateMasterKey() (MasterKey, error) {
	var k MasterKey
	if _, err := rand.Read(k[:]); err != nil {
		return k, err
	}
	return k, nil
}

// DeriveMasterKey derives a master key from a passphrase and a persisted
// salt using Argon2id, matching the parameters the reference
// implementation settled on (time=1, memory=64MiB, parallelism=4).
func DeriveMasterKey(passphrase string, salt [16]byte) MasterKey {
	derived := argon2.IDKey([]byte(passphrase), salt[:], 1, 64*1024, 4, argon2KeyLen)
	var k MasterKey
	copy(k[:], derived)
	return k
}

// Encrypt seals plaintext under key with a freshly-sampled 96-bit nonce
// using AES-256-GCM.
func Encrypt(key MasterKey, plaintext []byte) (*EncryptedSecret, error) {
	if len(plaintext) > MaxSecretSize {
		return nil, fmt.Errorf("%w: secret exceeds %d bytes", util.ErrValidationFailed, MaxSecretSize)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

	return &EncryptedSecret{
		Data:      base64.StdEncoding.EncodeToString(ciphertext),
		Nonce:     base64.StdEncoding.EncodeToString(nonce),
		Algorithm: "AES-256-GCM",
		CreatedAt: time.Now(),
	}, nil
}

// Decrypt opens an EncryptedSecret under key.
func Decrypt(key MasterKey, secret *EncryptedSecret) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(secret.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrDecryptionFailed, err)
	}
	nonce, err := base64.StdEncoding.DecodeString(secret.Nonce)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrDecryptionFailed, err)
	}
	block, err := aes.NewCipher(key[:])
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", util.ErrDecryptionFailed, err)
	}
	return plaintext, nil
}
