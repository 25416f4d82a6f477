package wallet

import (
	"crypto/ed25519"
	"errors"
	"strings"
	"testing"

	"github.com/tyler-smith/go-bip39"

	"custody-service/internal/domain"
	"custody-service/internal/keyvault"
)

func TestProvisioner_Provision_Success(t *testing.T) {
	p := NewProvisioner(keyvault.NewVault())

	result, err := p.Provision("user-secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if !ValidAddress(result.SigningAddress) {
		t.Errorf("want valid address, got %q", result.SigningAddress)
	}
	if result.EncryptedKey == nil || len(result.EncryptedKey.Ciphertext) == 0 {
		t.Error("expected encrypted key envelope to be populated")
	}
	if words := strings.Fields(result.RecoveryPhrase); len(words) != 24 {
		t.Errorf("want 24-word recovery phrase, got %d words", len(words))
	}
	if !bip39.IsMnemonicValid(result.RecoveryPhrase) {
		t.Error("expected a valid BIP-39 mnemonic")
	}
}

func TestProvisioner_Provision_AddressMatchesWrappedKey(t *testing.T) {
	vault := keyvault.NewVault()
	p := NewProvisioner(vault)

	result, err := p.Provision("user-secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	// ラップされた鍵を復号し、公開アドレスが一致することを確認
	seed, err := vault.Unwrap(result.EncryptedKey, "user-secret")
	if err != nil {
		t.Fatalf("Unwrap failed: %v", err)
	}
	priv := ed25519.NewKeyFromSeed(seed)
	if got := DeriveAddress(priv.Public().(ed25519.PublicKey)); got != result.SigningAddress {
		t.Errorf("want address %s, got %s", result.SigningAddress, got)
	}
}

func TestProvisioner_Provision_WrongSecretCannotUnwrap(t *testing.T) {
	vault := keyvault.NewVault()
	p := NewProvisioner(vault)

	result, err := p.Provision("secret-1")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	_, err = vault.Unwrap(result.EncryptedKey, "secret-2")
	if !errors.Is(err, domain.ErrDecryptionFailed) {
		t.Errorf("want ErrDecryptionFailed, got %v", err)
	}
}

func TestProvisioner_Provision_UniqueKeysPerCall(t *testing.T) {
	p := NewProvisioner(keyvault.NewVault())

	r1, err := p.Provision("secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	r2, err := p.Provision("secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}

	if r1.SigningAddress == r2.SigningAddress {
		t.Error("expected distinct addresses per provisioning")
	}
	if r1.RecoveryPhrase == r2.RecoveryPhrase {
		t.Error("expected distinct recovery phrases per provisioning")
	}
}

func TestValidAddress(t *testing.T) {
	if !ValidAddress("0x" + strings.Repeat("ab", 20)) {
		t.Error("expected well-formed address to be valid")
	}
	if ValidAddress("not-an-address") {
		t.Error("expected malformed address to be invalid")
	}
	if ValidAddress("0x" + strings.Repeat("AB", 20)) {
		t.Error("expected uppercase hex to be invalid")
	}
}
