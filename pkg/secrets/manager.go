package secrets

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/munet-project/unet/pkg/util"
)

// Manager is the Secret Store's entry point: it owns the master key, the
// backend, an in-memory decrypted cache, and (optionally) an external
// provider for BackendExternal-style delegation.
type Manager struct {
	backend  Backend
	external ExternalProvider

	mu        sync.RWMutex
	masterKey MasterKey
	secrets   map[string]*EncryptedSecret
	cache     map[string][]byte
}

// NewManager loads secrets is NOT called automatically; callers call Load.
func NewManager(backend Backend, masterKey MasterKey) *Manager {
	return &Manager{
		backend:   backend,
		masterKey: masterKey,
		secrets:   map[string]*EncryptedSecret{},
		cache:     map[string][]byte{},
	}
}

// WithExternalProvider attaches a delegate for an External backend.
func (m *Manager) WithExternalProvider(p ExternalProvider) *Manager {
	m.external = p
	return m
}

// Load reads the backend's persisted envelopes into memory.
func (m *Manager) Load() error {
	secrets, err := m.backend.Load()
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.secrets = secrets
	m.cache = map[string][]byte{}
	return nil
}

// Store encrypts value and persists it under name, subject to the
// MaxSecretSize limit.
func (m *Manager) Store(name string, value []byte, expiresAt *time.Time) error {
	if len(value) > MaxSecretSize {
		return fmt.Errorf("%w: secret %q exceeds %d bytes", util.ErrValidationFailed, name, MaxSecretSize)
	}

	if m.external != nil {
		token, err := m.external.Encrypt(name, value)
		if err != nil {
			return err
		}
		m.mu.Lock()
		m.secrets[name] = &EncryptedSecret{Data: token, Algorithm: "external", CreatedAt: time.Now(), ExpiresAt: expiresAt}
		m.cache[name] = value
		defer m.mu.Unlock()
		return m.backend.Save(m.secrets)
	}

	encrypted, err := Encrypt(m.masterKey, value)
	if err != nil {
		return err
	}
	encrypted.ExpiresAt = expiresAt

	m.mu.Lock()
	m.secrets[name] = encrypted
	m.cache[name] = value
	m.mu.Unlock()

	return m.backend.Save(m.secretsSnapshot())
}

// Get returns the decrypted value for name, or ErrSecretNotFound. An
// expired entry returns ErrSecretExpired and is deleted lazily.
func (m *Manager) Get(name string) ([]byte, error) {
	m.mu.RLock()
	entry, ok := m.secrets[name]
	cached, hit := m.cache[name]
	m.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", util.ErrSecretNotFound, name)
	}
	if entry.Expired(time.Now()) {
		m.Delete(name)
		return nil, fmt.Errorf("%w: %s", util.ErrSecretExpired, name)
	}
	if hit {
		return cached, nil
	}

	var plaintext []byte
	var err error
	switch {
	case m.external != nil && entry.Algorithm == "external":
		plaintext, err = m.external.Decrypt(name, entry.Data)
	case entry.Algorithm == "plaintext":
		plaintext = []byte(entry.Data)
	default:
		plaintext, err = Decrypt(m.masterKey, entry)
	}
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.cache[name] = plaintext
	m.mu.Unlock()
	return plaintext, nil
}

// Delete removes name from both the in-memory cache and the backend.
func (m *Manager) Delete(name string) error {
	m.mu.Lock()
	delete(m.secrets, name)
	delete(m.cache, name)
	snapshot := m.secretsSnapshot()
	m.mu.Unlock()
	return m.backend.Save(snapshot)
}

// SecretMetadata is what ListMetadata exposes — never plaintext.
type SecretMetadata struct {
	Name      string
	Algorithm string
	CreatedAt time.Time
	ExpiresAt *time.Time
}

// ListMetadata returns every stored secret's metadata, sorted by name.
func (m *Manager) ListMetadata() []SecretMetadata {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]SecretMetadata, 0, len(m.secrets))
	for name, s := range m.secrets {
		out = append(out, SecretMetadata{Name: name, Algorithm: s.Algorithm, CreatedAt: s.CreatedAt, ExpiresAt: s.ExpiresAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Manager) secretsSnapshot() map[string]*EncryptedSecret {
	out := make(map[string]*EncryptedSecret, len(m.secrets))
	for k, v := range m.secrets {
		out[k] = v
	}
	return out
}

// Rotate decrypts every secret under the current master key, re-encrypts
// everything under the caller-supplied newKey, and atomically
// replaces both the in-memory state and the backend's persisted copy. If
// persistence fails mid-rotation, the pre-rotation snapshot is restored
// before the error is surfaced.
func (m *Manager) Rotate(newKey MasterKey) error {
	m.mu.Lock()
	preRotationSecrets := m.secretsSnapshot()
	preRotationKey := m.masterKey
	preRotationCache := make(map[string][]byte, len(m.cache))
	for k, v := range m.cache {
		preRotationCache[k] = v
	}

	reEncrypted := map[string]*EncryptedSecret{}
	for name, entry := range m.secrets {
		if entry.Algorithm == "external" || entry.Algorithm == "plaintext" {
			reEncrypted[name] = entry
			continue
		}
		plaintext, err := Decrypt(m.masterKey, entry)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		fresh, err := Encrypt(newKey, plaintext)
		if err != nil {
			m.mu.Unlock()
			return err
		}
		fresh.ExpiresAt = entry.ExpiresAt
		fresh.Metadata = entry.Metadata
		reEncrypted[name] = fresh
	}

	m.secrets = reEncrypted
	m.masterKey = newKey
	m.cache = map[string][]byte{}
	snapshot := m.secretsSnapshot()
	m.mu.Unlock()

	if err := m.backend.Save(snapshot); err != nil {
		m.mu.Lock()
		m.secrets = preRotationSecrets
		m.masterKey = preRotationKey
		m.cache = preRotationCache
		m.mu.Unlock()
		return fmt.Errorf("rotate: persisting re-encrypted secrets failed, rolled back: %w", err)
	}
	return nil
}
