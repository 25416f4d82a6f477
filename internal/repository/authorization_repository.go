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

// AuthorizationRequestModel はgorm用のモデル定義。
// (requester_address, work_id) の一意制約が同時実行時の
// 多重申請を最終的に防ぐ仕組みとなる。
type AuthorizationRequestModel struct {
	ID               string    `gorm:"type:char(36);primaryKey"`
	RequesterAddress string    `gorm:"type:char(42);not null;uniqueIndex:uk_requester_work;index:idx_requester"`
	WorkID           string    `gorm:"type:varchar(64);not null;uniqueIndex:uk_requester_work"`
	Status           string    `gorm:"type:enum('pending','approved','failed');not null;index:idx_status"`
	TxHash           *string   `gorm:"type:varchar(66)"`
	ErrorMessage     *string   `gorm:"type:text"`
	CreatedAt        time.Time `gorm:"type:datetime(6);not null;autoCreateTime"`
	UpdatedAt        time.Time `gorm:"type:datetime(6);not null;autoUpdateTime"`
}

// TableName はテーブル名を返す。
func (AuthorizationRequestModel) TableName() string {
	return "authorization_requests"
}

// BeforeCreate はレコード作成前にUUIDを生成する。
func (m *AuthorizationRequestModel) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	return nil
}

// toDomain はモデルをドメインエンティティに変換する。
func (m *AuthorizationRequestModel) toDomain() *domain.AuthorizationRequest {
	return &domain.AuthorizationRequest{
		ID:               m.ID,
		RequesterAddress: m.RequesterAddress,
		WorkID:           m.WorkID,
		Status:           domain.AuthorizationStatus(m.Status),
		TxHash:           m.TxHash,
		ErrorMessage:     m.ErrorMessage,
		CreatedAt:        m.CreatedAt,
		UpdatedAt:        m.UpdatedAt,
	}
}

// AuthorizationRepository は許諾申請台帳のデータアクセスを提供する。
type AuthorizationRepository struct {
	db *gorm.DB
}

// NewAuthorizationRepository は新しいAuthorizationRepositoryを生成する。
func NewAuthorizationRepository(db *gorm.DB) *AuthorizationRepository {
	return &AuthorizationRepository{db: db}
}

// FindByRequesterAndWork は指定されたペアの申請を取得する。
// 存在しない場合は (nil, nil) を返す。
func (r *AuthorizationRepository) FindByRequesterAndWork(ctx context.Context, requesterAddress, workID string) (*domain.AuthorizationRequest, error) {
	var model AuthorizationRequestModel
	err := r.db.WithContext(ctx).
		Where("requester_address = ? AND work_id = ?", requesterAddress, workID).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		slog.ErrorContext(ctx, "failed to find authorization request",
			"operation", "find_by_requester_and_work",
			"requester_address", requesterAddress,
			"work_id", workID,
			"error", err,
		)
		return nil, err
	}
	return model.toDomain(), nil
}

// Create は新しい申請を保存する。
// 一意制約違反はdomain.ErrDuplicateRequestに変換して返す。
func (r *AuthorizationRepository) Create(ctx context.Context, req *domain.AuthorizationRequest) error {
	model := &AuthorizationRequestModel{
		ID:               req.ID,
		RequesterAddress: req.RequesterAddress,
		WorkID:           req.WorkID,
		Status:           string(req.Status),
		TxHash:           req.TxHash,
		ErrorMessage:     req.ErrorMessage,
	}
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.ErrDuplicateRequest
		}
		slog.ErrorContext(ctx, "failed to create authorization request",
			"operation", "create_authorization_request",
			"requester_address", req.RequesterAddress,
			"work_id", req.WorkID,
			"error", err,
		)
		return err
	}
	req.ID = model.ID
	req.CreatedAt = model.CreatedAt
	req.UpdatedAt = model.UpdatedAt
	return nil
}

// UpdateFromFailed はfailedの行に限って状態を更新する条件付きUPDATE。
// 同じペアに対する並行リトライの敗者を検出するため、更新行数を返す。
func (r *AuthorizationRepository) UpdateFromFailed(ctx context.Context, id string, status domain.AuthorizationStatus, txHash, errorMessage *string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&AuthorizationRequestModel{}).
		Where("id = ? AND status = ?", id, string(domain.AuthorizationStatusFailed)).
		Updates(map[string]interface{}{
			"status":        string(status),
			"tx_hash":       txHash,
			"error_message": errorMessage,
		})
	if result.Error != nil {
		slog.ErrorContext(ctx, "failed to update authorization request",
			"operation", "update_from_failed",
			"id", id,
			"status", status,
			"error", result.Error,
		)
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

// FindFailedWithTxHash はtx_hashを持つfailedの行を取得する。
// タイムアウトで失敗扱いになった支払いの照合対象となる。
func (r *AuthorizationRepository) FindFailedWithTxHash(ctx context.Context) ([]*domain.AuthorizationRequest, error) {
	var models []AuthorizationRequestModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND tx_hash IS NOT NULL", string(domain.AuthorizationStatusFailed)).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		slog.ErrorContext(ctx, "failed to find failed requests with tx_hash",
			"operation", "find_failed_with_tx_hash",
			"error", err,
		)
		return nil, err
	}

	reqs := make([]*domain.AuthorizationRequest, len(models))
	for i, m := range models {
		reqs[i] = m.toDomain()
	}
	return reqs, nil
}
