// Package keyvault はユーザーシークレット由来の鍵による署名鍵の暗号化・復号を提供する。
package keyvault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"

	"golang.org/x/crypto/scrypt"

	"custody-service/internal/domain"
)

const (
	// AlgorithmScryptAESGCM は現行のエンベロープ形式の識別子。
	AlgorithmScryptAESGCM = "scrypt-aes256gcm"

	// RawKeySize はラップ対象の署名鍵（Ed25519シード）の長さ。
	RawKeySize = 32

	derivedKeySize = 32
	scryptN        = 32768
	scryptR        = 8
	scryptP        = 1
)

// applicationSalt はKDFに与える固定のアプリケーションレベルソルト。
// シークレットはユーザーごとに異なるため、レコードごとのソルトは持たない。
var applicationSalt = []byte("custody-service/keyvault/v1")

// Vault は署名鍵のラップ・アンラップを行う。状態を持たない純粋な変換器。
type Vault struct{}

// NewVault は新しいVaultを生成する。
func NewVault() *Vault {
	return &Vault{}
}

// deriveKey はシークレットから対称鍵を導出する。
func deriveKey(secret string) ([]byte, error) {
	return scrypt.Key([]byte(secret), applicationSalt, scryptN, scryptR, scryptP, derivedKeySize)
}

// Wrap は署名鍵をシークレット由来の鍵で暗号化し、エンベロープを返す。
// 鍵長が不正な場合も黙って成功せずErrEncryptionFailedを返す。
func (v *Vault) Wrap(rawKey []byte, secret string) (*domain.EncryptedKey, error) {
	if len(rawKey) != RawKeySize {
		return nil, fmt.Errorf("%w: unexpected raw key length", domain.ErrEncryptionFailed)
	}

	derived, err := deriveKey(secret)
	if err != nil {
		return nil, fmt.Errorf("%w: deriving key: %v", domain.ErrEncryptionFailed, err)
	}
	defer Zero(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing cipher: %v", domain.ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: initializing GCM: %v", domain.ErrEncryptionFailed, err)
	}

	iv := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, fmt.Errorf("%w: generating IV: %v", domain.ErrEncryptionFailed, err)
	}

	// Sealは暗号文の末尾に認証タグを付加して返す
	sealed := gcm.Seal(nil, iv, rawKey, nil)
	tagOffset := len(sealed) - gcm.Overhead()

	return &domain.EncryptedKey{
		Algorithm:  AlgorithmScryptAESGCM,
		IV:         iv,
		Ciphertext: sealed[:tagOffset],
		AuthTag:    sealed[tagOffset:],
	}, nil
}

// Unwrap はエンベロープをシークレットで復号し署名鍵を返す。
// シークレット誤り・改ざん・破損はいずれもErrDecryptionFailedとなり、
// どの検証が失敗したかは返さない。呼び出し側は返された鍵を署名処理の
// 直後にZeroで消去する責務を負う。
func (v *Vault) Unwrap(enc *domain.EncryptedKey, secret string) ([]byte, error) {
	if enc == nil || enc.Algorithm != AlgorithmScryptAESGCM {
		return nil, domain.ErrDecryptionFailed
	}

	derived, err := deriveKey(secret)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	defer Zero(derived)

	block, err := aes.NewCipher(derived)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	if len(enc.IV) != gcm.NonceSize() {
		return nil, domain.ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(enc.Ciphertext)+len(enc.AuthTag))
	sealed = append(sealed, enc.Ciphertext...)
	sealed = append(sealed, enc.AuthTag...)

	rawKey, err := gcm.Open(nil, enc.IV, sealed, nil)
	if err != nil {
		return nil, domain.ErrDecryptionFailed
	}
	return rawKey, nil
}

// Zero はメモリ上の鍵素材を上書き消去する。
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
