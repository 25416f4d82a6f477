package keyvault

import (
	"bytes"
	"errors"
	"testing"

	"custody-service/internal/domain"
)

func TestVault_WrapUnwrap_RoundTrip(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0xAB}, RawKeySize)

	enc, err := v.Wrap(rawKey, "correct-horse")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if enc.Algorithm != AlgorithmScryptAESGCM {
		t.Errorf("want algorithm %s, got %s", AlgorithmScryptAESGCM, enc.Algorithm)
	}
	if len(enc.IV) == 0 || len(enc.Ciphertext) == 0 || len(enc.AuthTag) == 0 {
		t.Error("expected all envelope fields to be populated")
	}
	if bytes.Contains(enc.Ciphertext, rawKey) {
		t.Error("ciphertext must not contain the raw key")
	}

	got, err := v.Unwrap(enc, "correct-horse")
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	if !bytes.Equal(got, rawKey) {
		t.Error("unwrapped key does not match original")
	}
}

func TestVault_Unwrap_WrongSecret(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0x01}, RawKeySize)

	enc, err := v.Wrap(rawKey, "secret-1")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	_, err = v.Unwrap(enc, "secret-2")
	if !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed, got %v", err)
	}
}

func TestVault_Unwrap_TamperedCiphertext(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0x02}, RawKeySize)

	enc, err := v.Wrap(rawKey, "secret")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	enc.Ciphertext[0] ^= 0xFF

	_, err = v.Unwrap(enc, "secret")
	if !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed, got %v", err)
	}
}

func TestVault_Unwrap_TamperedAuthTag(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0x03}, RawKeySize)

	enc, err := v.Wrap(rawKey, "secret")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	enc.AuthTag[0] ^= 0xFF

	_, err = v.Unwrap(enc, "secret")
	if !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed, got %v", err)
	}
}

func TestVault_Unwrap_UnknownAlgorithm(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0x04}, RawKeySize)

	enc, err := v.Wrap(rawKey, "secret")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	enc.Algorithm = "unknown-v99"

	_, err = v.Unwrap(enc, "secret")
	if !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed, got %v", err)
	}
}

func TestVault_Wrap_InvalidKeyLength(t *testing.T) {
	v := NewVault()

	_, err := v.Wrap([]byte("short"), "secret")
	if !errors.Is(err, domain.ErrEncryptionFailed) {
		t.Errorf("want ErrEncryptionFailed, got %v", err)
	}
}

func TestVault_Wrap_UniqueIVPerCall(t *testing.T) {
	v := NewVault()
	rawKey := bytes.Repeat([]byte{0x05}, RawKeySize)

	enc1, err := v.Wrap(rawKey, "secret")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}
	enc2, err := v.Wrap(rawKey, "secret")
	if err != nil {
		t.Fatalf("Wrap failed: %v", err)
	}

	if bytes.Equal(enc1.IV, enc2.IV) {
		t.Error("expected a fresh IV per wrap")
	}
}
