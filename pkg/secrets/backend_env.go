package secrets

import (
	"fmt"
	"os"
	"strings"
)

// EnvBackend is a read-only, plaintext-for-dev backend: each secret name
// maps to the environment variable UNET_SECRET_<UPPER_NAME>. Store/Save are
// unsupported since environment variables aren't writable at runtime in any
// useful sense.
type EnvBackend struct {
	Prefix string
}

// NewEnvBackend builds an environment-variable-backed store.
func NewEnvBackend() *EnvBackend { return &EnvBackend{Prefix: "UNET_SECRET_"} }

func (b *EnvBackend) envName(name string) string {
	return b.Prefix + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
}

// Load synthesizes unencrypted "envelopes" whose Data field is the raw
// plaintext value, tagged with algorithm "plaintext" so Manager.Get knows
// not to attempt AEAD decryption.
func (b *EnvBackend) Load() (map[string]*EncryptedSecret, error) {
	out := map[string]*EncryptedSecret{}
	for _, kv := range os.Environ() {
		parts := strings.SplitN(kv, "=", 2)
		if len(parts) != 2 || !strings.HasPrefix(parts[0], b.Prefix) {
			continue
		}
		name := strings.ToLower(strings.TrimPrefix(parts[0], b.Prefix))
		out[name] = &EncryptedSecret{Data: parts[1], Algorithm: "plaintext"}
	}
	return out, nil
}

func (b *EnvBackend) Save(map[string]*EncryptedSecret) error {
	return fmt.Errorf("environment secret backend is read-only")
}

func (b *EnvBackend) LoadSalt() ([16]byte, bool, error) {
	var salt [16]byte
	return salt, false, nil
}

func (b *EnvBackend) SaveSalt([16]byte) error {
	return fmt.Errorf("environment secret backend is read-only")
}
