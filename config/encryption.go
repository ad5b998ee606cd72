package config

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/hkdf"
	"golang.org/x/crypto/ssh"

	"playground/logx"
)

// ErrPassphraseRequired is returned when the SSH key is encrypted and no
// passphrase was given (PLAYGROUND_SSH_PASSPHRASE).
var ErrPassphraseRequired = errors.New("SSH key is encrypted: passphrase required")

// keyLabel is signed with the SSH key and the signature seeds the AES key.
// Changing it makes existing credential files unreadable.
const keyLabel = "playground credentials v1"

// KeyCipher seals credential files with AES-256-GCM under a key derived from
// a signature made with an SSH private key. The same key file always opens
// what it sealed, so only deterministic signers (ed25519, RSA) qualify.
type KeyCipher struct {
	aead cipher.AEAD
}

// NewKeyCipher loads the SSH key at keyPath and derives the cipher key.
func NewKeyCipher(keyPath, passphrase string) (*KeyCipher, error) {
	if keyPath == "" {
		return nil, errors.New("no SSH key configured (security.ssh_key_path)")
	}
	signer, err := loadSigner(keyPath, passphrase)
	if err != nil {
		return nil, err
	}
	key, err := deriveKey(signer)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	logx.Debug().Str("key", keyPath).Str("type", signer.PublicKey().Type()).Msg("credential cipher ready")
	return &KeyCipher{aead: aead}, nil
}

func deriveKey(signer ssh.Signer) ([]byte, error) {
	sig, err := signer.Sign(rand.Reader, []byte(keyLabel))
	if err != nil {
		return nil, fmt.Errorf("failed to sign key label: %w", err)
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, sig.Blob, nil, []byte(keyLabel)), key); err != nil {
		return nil, fmt.Errorf("failed to derive key: %w", err)
	}
	return key, nil
}

// Seal encrypts plaintext. The result is the nonce followed by the
// ciphertext and tag.
func (k *KeyCipher) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, k.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return k.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open reverses Seal.
func (k *KeyCipher) Open(sealed []byte) ([]byte, error) {
	n := k.aead.NonceSize()
	if len(sealed) < n+k.aead.Overhead() {
		return nil, errors.New("sealed data too short")
	}
	plain, err := k.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed (wrong key?): %w", err)
	}
	return plain, nil
}
