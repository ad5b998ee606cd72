package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/ssh"
)

// loadSigner parses the private key at path, using passphrase only when the
// key is encrypted.
func loadSigner(path, passphrase string) (ssh.Signer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read SSH key: %w", err)
	}

	signer, err := ssh.ParsePrivateKey(data)
	var missing *ssh.PassphraseMissingError
	switch {
	case err == nil:
		return signer, nil
	case !errors.As(err, &missing):
		return nil, fmt.Errorf("invalid SSH key %s: %w", path, err)
	case passphrase == "":
		return nil, ErrPassphraseRequired
	}

	signer, err = ssh.ParsePrivateKeyWithPassphrase(data, []byte(passphrase))
	if err != nil {
		return nil, fmt.Errorf("failed to open SSH key (wrong passphrase?): %w", err)
	}
	return signer, nil
}

// IsSSHKeyEncrypted reports whether the key at path needs a passphrase.
func IsSSHKeyEncrypted(path string) (bool, error) {
	_, err := loadSigner(path, "")
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, ErrPassphraseRequired):
		return true, nil
	}
	return false, err
}

// preferredKeys are tried in order when no key is configured. ECDSA keys are
// left out because their signatures are randomized.
var preferredKeys = []string{"playground_ed25519", "id_ed25519", "id_rsa"}

// DefaultSSHKey returns the first private key in ~/.ssh usable for
// credential encryption, or "".
func DefaultSSHKey() string {
	dir := filepath.Join(GetHomeDir(), ".ssh")
	for _, name := range preferredKeys {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err == nil && bytes.Contains(data, []byte("PRIVATE KEY")) {
			return path
		}
	}
	return ""
}
