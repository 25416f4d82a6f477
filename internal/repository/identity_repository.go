// Package repository はデータアクセス層の実装を提供する。
package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"custody-service/internal/domain"
)

// IdentityModel はgorm用のモデル定義。
// 暗号化エンベロープの各要素は独立したバイト列として保存し、
// 平文鍵がこのテーブルに載ることはない。
type IdentityModel struct {
	ID             string    `gorm:"type:char(36);primaryKey"`
	SigningAddress string    `gorm:"type:char(42);not null;uniqueIndex:uk_signing_address"`
	KeyAlgorithm   string    `gorm:"type:varchar(32);not null"`
	KeyIV          []byte    `gorm:"type:varbinary(16);not null"`
	KeyCiphertext  []byte    `gorm:"type:blob;not null"`
	KeyAuthTag     []byte    `gorm:"type:varbinary(16);not null"`
	CreatedAt      time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (IdentityModel) TableName() string {
	return "identities"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *IdentityModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *IdentityModel) toDomain() *domain.Identity {
	return &domain.Identity{
		ID:             m.ID,
		SigningAddress: m.SigningAddress,
		EncryptedKey: domain.EncryptedKey{
			Algorithm:  m.KeyAlgorithm,
			IV:         m.KeyIV,
			Ciphertext: m.KeyCiphertext,
			AuthTag:    m.KeyAuthTag,
		},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}

// IdentityRepository はIdentityのデータアクセスを提供する。
type IdentityRepository struct {
	db *gorm.DB
}

// NewIdentityRepository は新しいIdentityRepositoryを生成する。
func NewIdentityRepository(db *gorm.DB) *IdentityRepository {
	return &IdentityRepository{db: db}
}

// Create は新しいIdentityを保存する。
func (r *IdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	model := &IdentityModel{
		ID:             identity.ID,
		SigningAddress: identity.SigningAddress,
		KeyAlgorithm:   identity.EncryptedKey.Algorithm,
		KeyIV:          identity.EncryptedKey.IV,
		KeyCiphertext:  identity.EncryptedKey.Ciphertext,
		KeyAuthTag:     identity.EncryptedKey.AuthTag,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		slog.ErrorContext(ctx, "failed to create identity",
			"operation", "create_identity",
			"signing_address", identity.SigningAddress,
			"error", err,
		)
		return err
	}
	identity.ID = model.ID
	identity.CreatedAt = model.CreatedAt
	identity.UpdatedAt = model.UpdatedAt
	return nil
}

// FindBySigningAddress は指定されたアドレスのIdentityを取得する。
// 存在しない場合は (nil, nil) を返す。
func (r *IdentityRepository) FindBySigningAddress(ctx context.Context, address string) (*domain.Identity, error) {
	var model IdentityModel
	err := r.db.WithContext(ctx).
		Where("signing_address = ?", address).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find identity",
			"operation", "find_by_signing_address",
			"signing_address", address,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// UpdateEncryptedKey はIdentityの暗号化エンベロープを差し替える。
// 基となる署名鍵は変わらない（新しいシークレットでの再ラップ用）。
func (r *IdentityRepository) UpdateEncryptedKey(ctx context.Context, id string, enc *domain.EncryptedKey) error {
	err := r.db.WithContext(ctx).
		Model(&IdentityModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"key_algorithm":  enc.Algorithm,
			"key_iv":         enc.IV,
			"key_ciphertext": enc.Ciphertext,
			"key_auth_tag":   enc.AuthTag,
		}).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to update encrypted key",
			"operation", "update_encrypted_key",
			"id", id,
			"error", err,
		)
		return err
	}
	return nil
}
