package secrets

import (
	"encoding/json"
	"strings"

	"github.com/zalando/go-keyring"
)

const (
	keyringService   = "unet-secrets"
	keyringSaltEntry = "master-salt"
	keyringIndexName = "secret-index"
)

// KeyringBackend stores each secret as its own OS-keyring entry, plus a
// "secret-index" entry listing the known names (the keyring has no native
// enumeration API).
type KeyringBackend struct{}

// NewKeyringBackend builds a backend over the OS-native credential store.
func NewKeyringBackend() *KeyringBackend { return &KeyringBackend{} }

func (b *KeyringBackend) index() ([]string, error) {
	raw, err := keyring.Get(keyringService, keyringIndexName)
	if err == keyring.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if raw == "" {
		return nil, nil
	}
	return strings.Split(raw, ","), nil
}

func (b *KeyringBackend) saveIndex(names []string) error {
	return keyring.Set(keyringService, keyringIndexName, strings.Join(names, ","))
}

func (b *KeyringBackend) Load() (map[string]*EncryptedSecret, error) {
	names, err := b.index()
	if err != nil {
		return nil, err
	}
	out := map[string]*EncryptedSecret{}
	for _, name := range names {
		raw, err := keyring.Get(keyringService, name)
		if err == keyring.ErrNotFound {
			continue
		}
		if err != nil {
			return nil, err
		}
		var s EncryptedSecret
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			return nil, err
		}
		out[name] = &s
	}
	return out, nil
}

func (b *KeyringBackend) Save(secrets map[string]*EncryptedSecret) error {
	names := make([]string, 0, len(secrets))
	for name, s := range secrets {
		data, err := json.Marshal(s)
		if err != nil {
			return err
		}
		if err := keyring.Set(keyringService, name, string(data)); err != nil {
			return err
		}
		names = append(names, name)
	}
	return b.saveIndex(names)
}

func (b *KeyringBackend) LoadSalt() ([16]byte, bool, error) {
	var salt [16]byte
	raw, err := keyring.Get(keyringService, keyringSaltEntry)
	if err == keyring.ErrNotFound {
		return salt, false, nil
	}
	if err != nil {
		return salt, false, err
	}
	copy(salt[:], raw)
	return salt, true, nil
}

func (b *KeyringBackend) SaveSalt(salt [16]byte) error {
	return keyring.Set(keyringService, keyringSaltEntry, string(salt[:]))
}
