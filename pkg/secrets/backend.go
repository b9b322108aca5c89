package secrets

import "fmt"

// Backend persists the raw EncryptedSecret records. Encryption/decryption
// itself is always performed by the Manager; a Backend only stores and
// retrieves opaque envelopes, except BackendExternal which delegates
// both storage and cryptography to a remote provider.
type Backend interface {
	Load() (map[string]*EncryptedSecret, error)
	Save(map[string]*EncryptedSecret) error
	LoadSalt() ([16]byte, bool, error)
	SaveSalt([16]byte) error
}

// fileSaltPlaceholder is the fixed salt the reference implementation's File
// backend uses when no salt has been persisted yet — intentionally a
// well-known constant rather than a per-install random value, since the
// File backend has no secure place to keep a salt separate from the
// secrets it protects.
var fileSaltPlaceholder = [16]byte{'u', 'n', 'e', 't', '-', 's', 'a', 'l', 't', '-', 'v', '1', '.', '0', '.', '0'}

// ExternalProvider is the seam a real KMS (Vault, AWS Secrets Manager,
// Azure Key Vault) would implement. No concrete cloud SDK is wired here;
// this interface and its local test double exist so the Manager's
// BackendExternal path is exercised without naming a vendor.
type ExternalProvider interface {
	Encrypt(name string, plaintext []byte) (string, error)
	Decrypt(name string, token string) ([]byte, error)
	Delete(name string) error
}

// ErrExternalProviderRequired is returned when BackendExternal is selected
// without a provider configured.
var ErrExternalProviderRequired = fmt.Errorf("external secret backend requires a configured provider")
