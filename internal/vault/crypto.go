// Package vault encrypts and decrypts snapshot payloads for storage on
// an untrusted remote folder.
package vault

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Blob layout: magic || salt || nonce || ciphertext. The salt is generated
// per encryption, so the same plaintext never produces the same blob, and
// the key is re-derived from the passphrase on every decrypt.
var magic = []byte("TLY1")

const (
	saltLen = 16
	keyLen  = 32
)

// argon2id parameters. Interactive-use profile: one pass over 64 MiB.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
)

// ErrDecrypt reports that a blob could not be decrypted: wrong passphrase,
// corrupted payload, or not a snapshot blob at all. Callers treat this as
// a distinct failure class from transport errors.
var ErrDecrypt = errors.New("cannot decrypt snapshot")

// ErrEmptyPassphrase reports a cipher constructed without key material.
var ErrEmptyPassphrase = errors.New("passphrase is empty")

// Cipher seals and opens snapshot blobs with a passphrase-derived key.
type Cipher struct {
	passphrase []byte
}

// NewCipher returns a Cipher for the given passphrase.
func NewCipher(passphrase string) (*Cipher, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}
	return &Cipher{passphrase: []byte(passphrase)}, nil
}

func (c *Cipher) key(salt []byte) []byte {
	return argon2.IDKey(c.passphrase, salt, argonTime, argonMemory, argonThreads, keyLen)
}

// Encrypt seals the plaintext into a self-contained blob.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("generating salt: %w", err)
	}

	gcm, err := newGCM(c.key(salt))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("generating nonce: %w", err)
	}

	blob := make([]byte, 0, len(magic)+saltLen+len(nonce)+len(plaintext)+gcm.Overhead())
	blob = append(blob, magic...)
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = gcm.Seal(blob, nonce, plaintext, nil)
	return blob, nil
}

// Decrypt opens a blob produced by Encrypt. Any failure to authenticate
// or parse the blob is reported as ErrDecrypt.
func (c *Cipher) Decrypt(blob []byte) ([]byte, error) {
	if len(blob) < len(magic)+saltLen || !bytes.HasPrefix(blob, magic) {
		return nil, ErrDecrypt
	}
	rest := blob[len(magic):]
	salt, rest := rest[:saltLen], rest[saltLen:]

	gcm, err := newGCM(c.key(salt))
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, ErrDecrypt
	}
	nonce, sealed := rest[:gcm.NonceSize()], rest[gcm.NonceSize():]

	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("creating cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("creating gcm: %w", err)
	}
	return gcm, nil
}
