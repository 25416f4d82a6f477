package wallet

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
	"io"

	"github.com/tyler-smith/go-bip39"

	"custody-service/internal/domain"
	"custody-service/internal/keyvault"
)

const entropyBits = 256

// ProvisionResult は新規に払い出された鍵の情報を表す。
// RecoveryPhraseはこの戻り値でのみ返され、以後どこにも保存されない。
// 呼び出し側がユーザーへの一度限りの表示に責任を持つ。
type ProvisionResult struct {
	SigningAddress string
	EncryptedKey   *domain.EncryptedKey
	RecoveryPhrase string
}

// Provisioner は登録時に新しい署名鍵ペアを一つ払い出す。
type Provisioner struct {
	vault *keyvault.Vault
}

// NewProvisioner は新しいProvisionerを生成する。
func NewProvisioner(vault *keyvault.Vault) *Provisioner {
	return &Provisioner{vault: vault}
}

// Provision は新しい鍵ペアを生成し、シークレットでラップして返す。
// 乱数源が利用できない場合はErrProvisionFailedで失敗する（致命的、
// フォールバックなし）。
func (p *Provisioner) Provision(secret string) (*ProvisionResult, error) {
	entropy := make([]byte, entropyBits/8)
	if _, err := io.ReadFull(rand.Reader, entropy); err != nil {
		return nil, fmt.Errorf("%w: reading entropy: %v", domain.ErrProvisionFailed, err)
	}
	defer keyvault.Zero(entropy)

	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return nil, fmt.Errorf("%w: generating mnemonic: %v", domain.ErrProvisionFailed, err)
	}

	// リカバリフレーズから同じシードを再導出できるようにする
	bipSeed := bip39.NewSeed(mnemonic, "")
	defer keyvault.Zero(bipSeed)

	seed := make([]byte, keyvault.RawKeySize)
	copy(seed, bipSeed[:keyvault.RawKeySize])
	defer keyvault.Zero(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	defer keyvault.Zero(priv)
	address := DeriveAddress(priv.Public().(ed25519.PublicKey))

	encrypted, err := p.vault.Wrap(seed, secret)
	if err != nil {
		return nil, fmt.Errorf("wrapping signing key: %w", err)
	}

	return &ProvisionResult{
		SigningAddress: address,
		EncryptedKey:   encrypted,
		RecoveryPhrase: mnemonic,
	}, nil
}
