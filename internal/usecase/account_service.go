// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"context"
	"fmt"
	"time"

	"custody-service/internal/domain"
	"custody-service/internal/keyvault"
	"custody-service/internal/wallet"
)

// IdentityRepository はIdentityデータアクセスのインターフェース。
type IdentityRepository interface {
	Create(ctx context.Context, identity *domain.Identity) error
	FindBySigningAddress(ctx context.Context, address string) (*domain.Identity, error)
	UpdateEncryptedKey(ctx context.Context, id string, enc *domain.EncryptedKey) error
}

// AccountProvisioner は鍵ペア払い出しのインターフェース。
type AccountProvisioner interface {
	Provision(secret string) (*wallet.ProvisionResult, error)
}

// KeyVault は署名鍵のラップ・アンラップのインターフェース。
type KeyVault interface {
	Wrap(rawKey []byte, secret string) (*domain.EncryptedKey, error)
	Unwrap(enc *domain.EncryptedKey, secret string) ([]byte, error)
}

// RegistrationResult は登録結果を表す。RecoveryPhraseはこの結果でのみ
// 返され、以後取得する手段はない。
type RegistrationResult struct {
	SigningAddress string
	RecoveryPhrase string
	CreatedAt      time.Time
}

// AccountService はカストディアルアカウントに関するビジネスロジックを提供する。
type AccountService struct {
	identities  IdentityRepository
	provisioner AccountProvisioner
	vault       KeyVault
}

// NewAccountService は新しいAccountServiceを生成する。
func NewAccountService(identities IdentityRepository, provisioner AccountProvisioner, vault KeyVault) *AccountService {
	return &AccountService{
		identities:  identities,
		provisioner: provisioner,
		vault:       vault,
	}
}

// Register は新規登録ユーザーの署名鍵を払い出して永続化する。
func (s *AccountService) Register(ctx context.Context, secret string) (*RegistrationResult, error) {
	result, err := s.provisioner.Provision(secret)
	if err != nil {
		return nil, fmt.Errorf("provisioning keypair: %w", err)
	}

	identity := &domain.Identity{
		SigningAddress: result.SigningAddress,
		EncryptedKey:   *result.EncryptedKey,
	}
	if err := s.identities.Create(ctx, identity); err != nil {
		return nil, fmt.Errorf("storing identity: %w", err)
	}

	return &RegistrationResult{
		SigningAddress: identity.SigningAddress,
		RecoveryPhrase: result.RecoveryPhrase,
		CreatedAt:      identity.CreatedAt,
	}, nil
}

// GetIdentity は指定されたアドレスのIdentityを取得する。
func (s *AccountService) GetIdentity(ctx context.Context, address string) (*domain.Identity, error) {
	identity, err := s.identities.FindBySigningAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("finding identity: %w", err)
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}
	return identity, nil
}

// Rewrap は署名鍵を新しいシークレットで再ラップする。
// 基となる署名鍵自体は変わらない。
func (s *AccountService) Rewrap(ctx context.Context, address, oldSecret, newSecret string) error {
	identity, err := s.GetIdentity(ctx, address)
	if err != nil {
		return err
	}

	rawKey, err := s.vault.Unwrap(&identity.EncryptedKey, oldSecret)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	defer keyvault.Zero(rawKey)

	rewrapped, err := s.vault.Wrap(rawKey, newSecret)
	if err != nil {
		return fmt.Errorf("rewrapping key: %w", err)
	}

	if err := s.identities.UpdateEncryptedKey(ctx, identity.ID, rewrapped); err != nil {
		return fmt.Errorf("storing rewrapped key: %w", err)
	}
	return nil
}
