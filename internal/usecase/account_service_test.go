package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"custody-service/internal/domain"
	"custody-service/internal/keyvault"
	"custody-service/internal/wallet"
)

func setupAccountService(repo *mockIdentityRepo) *AccountService {
	vault := keyvault.NewVault()
	return NewAccountService(repo, wallet.NewProvisioner(vault), vault)
}

func TestAccountService_Register_Success(t *testing.T) {
	repo := &mockIdentityRepo{}
	svc := setupAccountService(repo)

	result, err := svc.Register(context.Background(), "user-secret")
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	if !wallet.ValidAddress(result.SigningAddress) {
		t.Errorf("want valid signing address, got %q", result.SigningAddress)
	}
	if len(strings.Fields(result.RecoveryPhrase)) != 24 {
		t.Error("want a 24-word recovery phrase")
	}
	if len(repo.created) != 1 {
		t.Fatalf("want 1 stored identity, got %d", len(repo.created))
	}

	// 永続化されるのは暗号化エンベロープのみで、リカバリフレーズは含まれない
	stored := repo.created[0]
	if stored.EncryptedKey.Algorithm == "" || len(stored.EncryptedKey.Ciphertext) == 0 {
		t.Error("expected encrypted envelope to be stored")
	}
}

func TestAccountService_Register_StoreError(t *testing.T) {
	repo := &mockIdentityRepo{createErr: errors.New("db down")}
	svc := setupAccountService(repo)

	_, err := svc.Register(context.Background(), "user-secret")
	if err == nil {
		t.Fatal("expected error when identity cannot be stored")
	}
}

func TestAccountService_GetIdentity_NotFound(t *testing.T) {
	repo := &mockIdentityRepo{identity: nil}
	svc := setupAccountService(repo)

	_, err := svc.GetIdentity(context.Background(), testRequester)
	if !errors.Is(err, domain.ErrIdentityNotFound) {
		t.Errorf("want ErrIdentityNotFound, got %v", err)
	}
}

func TestAccountService_Rewrap_Success(t *testing.T) {
	vault := keyvault.NewVault()
	provisioned, err := wallet.NewProvisioner(vault).Provision("old-secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	repo := &mockIdentityRepo{identity: &domain.Identity{
		ID:             "identity-1",
		SigningAddress: provisioned.SigningAddress,
		EncryptedKey:   *provisioned.EncryptedKey,
	}}
	svc := NewAccountService(repo, wallet.NewProvisioner(vault), vault)

	if err := svc.Rewrap(context.Background(), provisioned.SigningAddress, "old-secret", "new-secret"); err != nil {
		t.Fatalf("Rewrap failed: %v", err)
	}
}

func TestAccountService_Rewrap_WrongOldSecret(t *testing.T) {
	vault := keyvault.NewVault()
	provisioned, err := wallet.NewProvisioner(vault).Provision("old-secret")
	if err != nil {
		t.Fatalf("Provision failed: %v", err)
	}
	repo := &mockIdentityRepo{identity: &domain.Identity{
		ID:             "identity-1",
		SigningAddress: provisioned.SigningAddress,
		EncryptedKey:   *provisioned.EncryptedKey,
	}}
	svc := NewAccountService(repo, wallet.NewProvisioner(vault), vault)

	err = svc.Rewrap(context.Background(), provisioned.SigningAddress, "guessed-secret", "new-secret")
	if !errors.Is(err, domain.ErrAuthenticationFailed) {
		t.Errorf("want ErrAuthenticationFailed, got %v", err)
	}
}
