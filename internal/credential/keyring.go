package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/99designs/keyring"

	"github.com/nhle/todopro/internal/model"
)

const (
	serviceName = "todopro"
	sessionKey  = "session"
)

// Vault persists the session between runs.
type Vault interface {
	// Load returns the stored session. ok is false when none is stored.
	Load() (s model.Session, ok bool, err error)
	Save(s model.Session) error
	Clear() error
}

// KeyringVault stores the session as JSON in the system keyring.
type KeyringVault struct {
	ring keyring.Keyring
}

// NewKeyringVault wraps an already opened keyring.
func NewKeyringVault(ring keyring.Keyring) *KeyringVault {
	return &KeyringVault{ring: ring}
}

// OpenKeyring opens the system keyring, falling back to an encrypted file
// under configDir when no OS backend is available.
func OpenKeyring(configDir string) (*KeyringVault, error) {
	ring, err := keyring.Open(keyring.Config{
		ServiceName: serviceName,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  filepath.Join(configDir, "credentials"),
		FilePasswordFunc:         keyring.FixedStringPrompt("todopro-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringVault(ring), nil
}

// Load reads the stored session.
func (v *KeyringVault) Load() (model.Session, bool, error) {
	item, err := v.ring.Get(sessionKey)
	if errors.Is(err, keyring.ErrKeyNotFound) {
		return model.Session{}, false, nil
	}
	if err != nil {
		return model.Session{}, false, fmt.Errorf("getting credential %q: %w", sessionKey, err)
	}

	var s model.Session
	if err := json.Unmarshal(item.Data, &s); err != nil {
		return model.Session{}, false, fmt.Errorf("decoding stored session: %w", err)
	}
	return s, true, nil
}

// Save replaces the stored session.
func (v *KeyringVault) Save(s model.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("encoding session: %w", err)
	}

	err = v.ring.Set(keyring.Item{
		Key:         sessionKey,
		Data:        data,
		Label:       "todopro session",
		Description: "todopro bearer token",
	})
	if err != nil {
		return fmt.Errorf("setting credential %q: %w", sessionKey, err)
	}
	return nil
}

// Clear removes the stored session. Clearing an empty vault is not an error.
func (v *KeyringVault) Clear() error {
	err := v.ring.Remove(sessionKey)
	if err != nil && !errors.Is(err, keyring.ErrKeyNotFound) {
		return fmt.Errorf("deleting credential %q: %w", sessionKey, err)
	}
	return nil
}
