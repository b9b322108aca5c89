package secrets

import (
	"errors"
	"testing"
	"time"

	"github.com/munet-project/unet/pkg/util"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	plaintext := []byte("correct horse battery staple")
	secret, err := Encrypt(key, plaintext)
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	got, err := Decrypt(key, secret)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if string(got) != string(plaintext) {
		t.Fatalf("round trip mismatch: got %q want %q", got, plaintext)
	}
}

func TestEncryptRejectsOversizedPayload(t *testing.T) {
	key, _ := GenerateMasterKey()
	oversized := make([]byte, MaxSecretSize+1)
	if _, err := Encrypt(key, oversized); !errors.Is(err, util.ErrValidationFailed) {
		t.Fatalf("expected ErrValidationFailed, got %v", err)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key, _ := GenerateMasterKey()
	wrongKey, _ := GenerateMasterKey()
	secret, err := Encrypt(key, []byte("sensitive"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if _, err := Decrypt(wrongKey, secret); !errors.Is(err, util.ErrDecryptionFailed) {
		t.Fatalf("expected ErrDecryptionFailed, got %v", err)
	}
}

func TestDeriveMasterKeyDeterministic(t *testing.T) {
	salt := [16]byte{1, 2, 3}
	a := DeriveMasterKey("hunter2", salt)
	b := DeriveMasterKey("hunter2", salt)
	if a != b {
		t.Fatalf("DeriveMasterKey not deterministic for same passphrase+salt")
	}
	c := DeriveMasterKey("hunter3", salt)
	if a == c {
		t.Fatalf("DeriveMasterKey produced same key for different passphrases")
	}
}

func TestEncryptedSecretExpired(t *testing.T) {
	past := time.Now().Add(-time.Hour)
	s := &EncryptedSecret{ExpiresAt: &past}
	if !s.Expired(time.Now()) {
		t.Fatalf("expected secret with past deadline to be expired")
	}
	future := time.Now().Add(time.Hour)
	s2 := &EncryptedSecret{ExpiresAt: &future}
	if s2.Expired(time.Now()) {
		t.Fatalf("expected secret with future deadline to not be expired")
	}
	s3 := &EncryptedSecret{}
	if s3.Expired(time.Now()) {
		t.Fatalf("expected secret with no deadline to never be expired")
	}
}
