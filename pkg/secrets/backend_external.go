package secrets

import (
	"encoding/json"
	"fmt"
	"sync"
)

// ExternalBackend stores only opaque tokens returned by an ExternalProvider
// (a remote KMS) alongside a name index, persisted through a delegate
// Backend (typically a FileBackend) so the index itself survives restarts.
// It never sees plaintext or a master key: all cryptography happens on the
// provider's side of the seam.
type ExternalBackend struct {
	provider ExternalProvider
	index    Backend
}

// NewExternalBackend builds a backend whose records are opaque provider
// tokens, with the token index persisted via index.
func NewExternalBackend(provider ExternalProvider, index Backend) (*ExternalBackend, error) {
	if provider == nil {
		return nil, ErrExternalProviderRequired
	}
	return &ExternalBackend{provider: provider, index: index}, nil
}

func (b *ExternalBackend) Load() (map[string]*EncryptedSecret, error) {
	return b.index.Load()
}

func (b *ExternalBackend) Save(secrets map[string]*EncryptedSecret) error {
	return b.index.Save(secrets)
}

func (b *ExternalBackend) LoadSalt() ([16]byte, bool, error) {
	return b.index.LoadSalt()
}

func (b *ExternalBackend) SaveSalt(salt [16]byte) error {
	return b.index.SaveSalt(salt)
}

// LocalTestProvider is an in-memory ExternalProvider stand-in for exercising
// the BackendExternal seam without naming a real KMS vendor. It "encrypts"
// by stashing the plaintext behind a generated token, never exposing the
// plaintext through the token itself.
type LocalTestProvider struct {
	mu     sync.Mutex
	vault  map[string][]byte
	nextID int
}

// NewLocalTestProvider builds an empty in-memory provider.
func NewLocalTestProvider() *LocalTestProvider {
	return &LocalTestProvider{vault: map[string][]byte{}}
}

func (p *LocalTestProvider) Encrypt(name string, plaintext []byte) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	token := fmt.Sprintf("local-kms-token:%s:%d", name, p.nextID)
	cp := make([]byte, len(plaintext))
	copy(cp, plaintext)
	p.vault[token] = cp
	return token, nil
}

func (p *LocalTestProvider) Decrypt(name string, token string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	v, ok := p.vault[token]
	if !ok {
		return nil, fmt.Errorf("local test provider: unknown token for %q", name)
	}
	return v, nil
}

func (p *LocalTestProvider) Delete(name string) error {
	return nil
}

// MarshalState is a debugging helper, not part of the ExternalProvider
// contract: it lets tests assert on what the provider is holding without
// reaching into its private map directly.
func (p *LocalTestProvider) MarshalState() ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return json.Marshal(p.vault)
}
