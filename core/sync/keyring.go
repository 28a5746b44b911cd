// Package sync implements the Sync Router and Keyring: the save-hook
// bridge that decides which entities propagate to cloud circles, and the
// on-disk document describing a user's circle memberships.
package sync

import (
	"encoding/json"
	"fmt"
	"os"
)

// Binding is one circle membership record in a Keyring.
type Binding struct {
	SyncPolicy       string `json:"sync_policy"` // "cloud" | "local-only"
	EncryptionKeyB64 string `json:"encryption_key_b64,omitempty"`
	Default          bool   `json:"default,omitempty"`
}

// Identity names the keyring's owner.
type Identity struct {
	UserID         string `json:"user_id"`
	SigningKeyPath string `json:"signing_key_path,omitempty"`
}

// Keyring is the UTF-8 JSON document at a user's keyring path.
// EncryptionKeyB64 is stored as opaque base64 — never plaintext
// recognizable key material.
type Keyring struct {
	Version  int                `json:"version"`
	Identity Identity           `json:"identity"`
	Bindings map[string]Binding `json:"bindings"`
}

// NewKeyring returns an empty keyring for identity, with no circle
// bindings (local-only until bindings are added).
func NewKeyring(identity Identity) *Keyring {
	return &Keyring{Version: 1, Identity: identity, Bindings: map[string]Binding{}}
}

// LoadKeyring reads and decodes the keyring document at path.
func LoadKeyring(path string) (*Keyring, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read keyring: %w", err)
	}
	var k Keyring
	if err := json.Unmarshal(raw, &k); err != nil {
		return nil, fmt.Errorf("decode keyring: %w", err)
	}
	if k.Bindings == nil {
		k.Bindings = map[string]Binding{}
	}
	return &k, nil
}

// Save writes k to path as indented JSON, readable only by its owner.
func (k *Keyring) Save(path string) error {
	raw, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("encode keyring: %w", err)
	}
	return os.WriteFile(path, raw, 0o600)
}

// IsCloud reports whether circleID is bound with sync_policy "cloud". An
// absent binding or unknown circle is local-only — the safe default.
func (k *Keyring) IsCloud(circleID string) bool {
	b, ok := k.Bindings[circleID]
	return ok && b.SyncPolicy == "cloud"
}

// DefaultCircle returns the id of the binding marked Default, or "" if
// none is.
func (k *Keyring) DefaultCircle() string {
	for id, b := range k.Bindings {
		if b.Default {
			return id
		}
	}
	return ""
}
