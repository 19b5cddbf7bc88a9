package snapshot

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/pbkdf2"

	apperrors "snapshot-restore/internal/errors"
)

const (
	saltSize         = 16
	pbkdf2Iterations = 100000
	keySize          = 32 // AES-256
)

// Encryptor encrypts snapshot envelopes at rest with AES-256-GCM.
// Keys are derived from the configured passphrase with PBKDF2-SHA256
// using a per-snapshot random salt stored ahead of the nonce.
type Encryptor struct {
	passphrase []byte
}

// NewEncryptor creates an encryptor from a passphrase
func NewEncryptor(passphrase []byte) (*Encryptor, error) {
	if len(passphrase) == 0 {
		return nil, apperrors.NewValidationError("encryption passphrase cannot be empty", nil)
	}
	return &Encryptor{passphrase: passphrase}, nil
}

// Encrypt encrypts data, producing salt || nonce || ciphertext
func (e *Encryptor) Encrypt(data []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, apperrors.NewStorageError("failed to generate encryption salt", err)
	}

	gcm, err := e.cipherForSalt(salt)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, apperrors.NewStorageError("failed to generate nonce", err)
	}

	out := make([]byte, 0, saltSize+len(nonce)+len(data)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, data, nil), nil
}

// Decrypt decrypts data produced by Encrypt
func (e *Encryptor) Decrypt(data []byte) ([]byte, error) {
	if len(data) < saltSize {
		return nil, apperrors.NewCorruptSnapshotError("encrypted payload too short", nil)
	}

	salt := data[:saltSize]
	gcm, err := e.cipherForSalt(salt)
	if err != nil {
		return nil, err
	}

	rest := data[saltSize:]
	nonceSize := gcm.NonceSize()
	if len(rest) < nonceSize {
		return nil, apperrors.NewCorruptSnapshotError("encrypted payload too short", nil)
	}

	nonce, ciphertext := rest[:nonceSize], rest[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, apperrors.NewCorruptSnapshotError("failed to decrypt snapshot payload", err)
	}

	return plaintext, nil
}

func (e *Encryptor) cipherForSalt(salt []byte) (cipher.AEAD, error) {
	key := pbkdf2.Key(e.passphrase, salt, pbkdf2Iterations, keySize, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create AES cipher", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, apperrors.NewStorageError("failed to create GCM cipher", err)
	}

	return gcm, nil
}
