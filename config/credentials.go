package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/BurntSushi/toml"
)

// SecurityMethod selects how credentials are stored on disk.
type SecurityMethod string

const (
	SecurityPlainText SecurityMethod = "plaintext"
	SecuritySSHKey    SecurityMethod = "ssh_key"
)

// CredentialStore holds API keys by credential name ("OPENAI_API_KEY"),
// persisted as plain TOML or encrypted with a key derived from an SSH key.
// It is safe for concurrent use.
type CredentialStore struct {
	method     SecurityMethod
	sshKeyPath string
	passphrase string
	cipher     *KeyCipher

	mu          sync.RWMutex
	credentials map[string]string
}

func NewCredentialStore(method SecurityMethod, sshKeyPath string) *CredentialStore {
	if method == "" {
		method = SecurityPlainText
	}
	return &CredentialStore{
		method:      method,
		credentials: make(map[string]string),
		sshKeyPath:  sshKeyPath,
	}
}

// SetPassphrase supplies the passphrase of an encrypted SSH key.
func (c *CredentialStore) SetPassphrase(passphrase string) {
	c.passphrase = passphrase
	c.cipher = nil
}

// Load replaces the in-memory credentials with the ones on disk. A missing
// file means no credentials.
func (c *CredentialStore) Load(dataDir string) error {
	if err := c.checkMethod(); err != nil {
		return err
	}
	path, decode, _ := c.file(dataDir)
	creds := map[string]string{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return fmt.Errorf("failed to read credentials: %w", err)
	default:
		if creds, err = decode(data); err != nil {
			return err
		}
		if creds == nil {
			creds = map[string]string{}
		}
	}

	c.mu.Lock()
	c.credentials = creds
	c.mu.Unlock()
	return nil
}

// Save writes the credentials with 0600 permissions.
func (c *CredentialStore) Save(dataDir string) error {
	if err := c.checkMethod(); err != nil {
		return err
	}
	c.mu.RLock()
	creds := maps.Clone(c.credentials)
	c.mu.RUnlock()

	path, _, encode := c.file(dataDir)
	data, err := encode(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (c *CredentialStore) checkMethod() error {
	switch c.method {
	case SecurityPlainText, SecuritySSHKey:
		return nil
	}
	return fmt.Errorf("unknown security method: %s", c.method)
}

// Get returns the key stored under name, or "".
func (c *CredentialStore) Get(name string) string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.credentials[name]
}

// Set stores a key under name.
func (c *CredentialStore) Set(name, apiKey string) error {
	if name == "" {
		return fmt.Errorf("credential name is required")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credentials[name] = apiKey
	return nil
}

// Delete removes the key stored under name.
func (c *CredentialStore) Delete(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.credentials, name)
	return nil
}

// Names returns the stored credential names, sorted.
func (c *CredentialStore) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Sorted(maps.Keys(c.credentials))
}

func (c *CredentialStore) GetMethod() SecurityMethod {
	return c.method
}

type credentialsFile struct {
	Credentials map[string]string `toml:"credentials"`
}

// file returns where credentials live for the store's method and how the
// bytes there map to credentials.
func (c *CredentialStore) file(dataDir string) (path string, decode func([]byte) (map[string]string, error), encode func(map[string]string) ([]byte, error)) {
	if c.method == SecuritySSHKey {
		return filepath.Join(dataDir, "credentials.enc"), c.open, c.seal
	}
	return filepath.Join(dataDir, "credentials.toml"), decodePlainText, encodePlainText
}

func decodePlainText(data []byte) (map[string]string, error) {
	var cf credentialsFile
	if err := toml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return cf.Credentials, nil
}

func encodePlainText(creds map[string]string) ([]byte, error) {
	return toml.Marshal(credentialsFile{Credentials: creds})
}

func (c *CredentialStore) keyCipher() (*KeyCipher, error) {
	if c.cipher == nil {
		k, err := NewKeyCipher(c.sshKeyPath, c.passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize encryption: %w", err)
		}
		c.cipher = k
	}
	return c.cipher, nil
}

func (c *CredentialStore) open(sealed []byte) (map[string]string, error) {
	k, err := c.keyCipher()
	if err != nil {
		return nil, err
	}
	plain, err := k.Open(sealed)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
	}
	var creds map[string]string
	if err := json.Unmarshal(plain, &creds); err != nil {
		return nil, fmt.Errorf("failed to parse decrypted credentials: %w", err)
	}
	return creds, nil
}

func (c *CredentialStore) seal(creds map[string]string) ([]byte, error) {
	k, err := c.keyCipher()
	if err != nil {
		return nil, err
	}
	plain, err := json.Marshal(creds)
	if err != nil {
		return nil, err
	}
	return k.Seal(plain)
}
