package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"custody-service/internal/domain"
	"custody-service/internal/wallet"
)

// AuthorizationRepository は許諾申請台帳のインターフェース。
type AuthorizationRepository interface {
	FindByRequesterAndWork(ctx context.Context, requesterAddress, workID string) (*domain.AuthorizationRequest, error)
	Create(ctx context.Context, req *domain.AuthorizationRequest) error
	UpdateFromFailed(ctx context.Context, id string, status domain.AuthorizationStatus, txHash, errorMessage *string) (int64, error)
	FindFailedWithTxHash(ctx context.Context) ([]*domain.AuthorizationRequest, error)
}

// ProxySigner は代理署名・送信のインターフェース。
type ProxySigner interface {
	SignAndSubmit(ctx context.Context, identity *domain.Identity, secret string, tmpl *domain.TransferTemplate) (string, error)
}

// WorkDirectory は作品情報を照会する外部コラボレータのインターフェース。
type WorkDirectory interface {
	GetLicenseRecipient(ctx context.Context, workID string) (string, error)
}

// AuthorizationService はリミックス許諾申請のオーケストレーションを提供する。
//
// 中核となる順序は「支払ってから記録する」。台帳は支払いが確認できた
// 後にのみapprovedの行を持つため、資金移動を伴わない許諾レコードが
// 観測されることはない。楽観的に先へ記録して失敗時に取り消す方式は
// 採らない。
type AuthorizationService struct {
	ledger     AuthorizationRepository
	identities IdentityRepository
	signer     ProxySigner
	works      WorkDirectory
}

// NewAuthorizationService は新しいAuthorizationServiceを生成する。
func NewAuthorizationService(ledger AuthorizationRepository, identities IdentityRepository, signer ProxySigner, works WorkDirectory) *AuthorizationService {
	return &AuthorizationService{
		ledger:     ledger,
		identities: identities,
		signer:     signer,
		works:      works,
	}
}

// Apply はライセンス料を支払い、確認後に許諾を台帳へ記録する。
//
// 前提チェックで重複を弾いた後にのみチェーンへ到達するため、既に
// pending/approvedのペアに対して資金が動くことはない。残余の競合
// （チェック通過後の同時申請）は台帳の一意制約が捕捉する。
func (s *AuthorizationService) Apply(ctx context.Context, requesterAddress, workID, secret, feeAmount string) (*domain.AuthorizationRequest, error) {
	if !wallet.ValidAddress(requesterAddress) {
		return nil, domain.ErrInvalidAddress
	}
	if err := validateAmount(feeAmount); err != nil {
		return nil, err
	}

	// 前提チェック。チェーンとのやり取りより先に行う。
	existing, err := s.ledger.FindByRequesterAndWork(ctx, requesterAddress, workID)
	if err != nil {
		return nil, fmt.Errorf("checking existing request: %w", err)
	}
	if existing != nil {
		switch existing.Status {
		case domain.AuthorizationStatusApproved:
			return nil, domain.ErrAlreadyAuthorized
		case domain.AuthorizationStatusPending:
			return nil, domain.ErrDuplicateRequest
		}
		// failedからの再申請は許可
	}

	identity, err := s.identities.FindBySigningAddress(ctx, requesterAddress)
	if err != nil {
		return nil, fmt.Errorf("finding identity: %w", err)
	}
	if identity == nil {
		return nil, domain.ErrIdentityNotFound
	}

	recipient, err := s.works.GetLicenseRecipient(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("resolving license recipient: %w", err)
	}

	// 支払いを先に実行する。ここが成功するまで台帳には何も書かない。
	txHash, payErr := s.signer.SignAndSubmit(ctx, identity, secret, &domain.TransferTemplate{
		To:     recipient,
		Amount: feeAmount,
	})
	if payErr == nil {
		return s.recordApproved(ctx, existing, requesterAddress, workID, txHash)
	}
	return nil, s.recordFailure(ctx, existing, requesterAddress, workID, txHash, payErr)
}

// recordApproved は支払い確認済みの申請をapprovedとして記録する。
func (s *AuthorizationService) recordApproved(ctx context.Context, prior *domain.AuthorizationRequest, requesterAddress, workID, txHash string) (*domain.AuthorizationRequest, error) {
	if prior != nil {
		// failed行からのリトライ。status='failed'を条件とした更新で、
		// 並行リトライの敗者を検出する。
		affected, err := s.ledger.UpdateFromFailed(ctx, prior.ID, domain.AuthorizationStatusApproved, &txHash, nil)
		if err != nil {
			return nil, s.paidButUnrecorded(ctx, requesterAddress, workID, txHash, err)
		}
		if affected == 0 {
			return nil, s.paidButUnrecorded(ctx, requesterAddress, workID, txHash, domain.ErrDuplicateRequest)
		}
		return s.ledger.FindByRequesterAndWork(ctx, requesterAddress, workID)
	}

	req := &domain.AuthorizationRequest{
		RequesterAddress: requesterAddress,
		WorkID:           workID,
		Status:           domain.AuthorizationStatusApproved,
		TxHash:           &txHash,
	}
	if err := s.ledger.Create(ctx, req); err != nil {
		return nil, s.paidButUnrecorded(ctx, requesterAddress, workID, txHash, err)
	}
	return req, nil
}

// paidButUnrecorded は支払い成功後に台帳へ記録できなかった場合の運用アラート。
// 二重支払いの可能性があるため手動での照合が必要になる。
func (s *AuthorizationService) paidButUnrecorded(ctx context.Context, requesterAddress, workID, txHash string, err error) error {
	slog.ErrorContext(ctx, "payment confirmed but ledger write lost; manual reconciliation required",
		"operation", "apply",
		"requester_address", requesterAddress,
		"work_id", workID,
		"tx_hash", txHash,
		"error", err,
	)
	if errors.Is(err, domain.ErrDuplicateRequest) {
		return domain.ErrDuplicateRequest
	}
	return fmt.Errorf("recording approved request: %w", err)
}

// recordFailure は支払い失敗を分類して台帳へ反映し、元のエラーを返す。
func (s *AuthorizationService) recordFailure(ctx context.Context, prior *domain.AuthorizationRequest, requesterAddress, workID, txHash string, payErr error) error {
	// ユーザー自身の取り消しは記録しない。支払い前に行は作られて
	// いないので、取り消すべき状態も存在しない。
	if errors.Is(payErr, domain.ErrUserRejected) {
		return payErr
	}

	// タイムアウトはトランザクションが着地している可能性があるため、
	// 照合ジョブが確認できるようブロードキャスト済みハッシュを残す。
	var hashPtr *string
	if errors.Is(payErr, domain.ErrSubmissionTimeout) && txHash != "" {
		hashPtr = &txHash
	}
	msg := payErr.Error()

	if prior != nil {
		affected, err := s.ledger.UpdateFromFailed(ctx, prior.ID, domain.AuthorizationStatusFailed, hashPtr, &msg)
		if err != nil || affected == 0 {
			slog.ErrorContext(ctx, "failed to record payment failure",
				"operation", "apply",
				"requester_address", requesterAddress,
				"work_id", workID,
				"affected", affected,
				"error", err,
			)
		}
		return payErr
	}

	req := &domain.AuthorizationRequest{
		RequesterAddress: requesterAddress,
		WorkID:           workID,
		Status:           domain.AuthorizationStatusFailed,
		TxHash:           hashPtr,
		ErrorMessage:     &msg,
	}
	if err := s.ledger.Create(ctx, req); err != nil {
		slog.ErrorContext(ctx, "failed to record payment failure",
			"operation", "apply",
			"requester_address", requesterAddress,
			"work_id", workID,
			"error", err,
		)
	}
	return payErr
}

// GetStatus は指定されたペアの申請状態を返す。
// 行が存在しない場合はstatus=noneの申請を合成して返す。
func (s *AuthorizationService) GetStatus(ctx context.Context, requesterAddress, workID string) (*domain.AuthorizationRequest, error) {
	req, err := s.ledger.FindByRequesterAndWork(ctx, requesterAddress, workID)
	if err != nil {
		return nil, fmt.Errorf("finding request: %w", err)
	}
	if req == nil {
		return &domain.AuthorizationRequest{
			RequesterAddress: requesterAddress,
			WorkID:           workID,
			Status:           domain.AuthorizationStatusNone,
		}, nil
	}
	return req, nil
}

// validateAmount は手数料が正の10進整数文字列であることを検証する。
func validateAmount(amount string) error {
	n, ok := new(big.Int).SetString(amount, 10)
	if !ok || n.Sign() <= 0 {
		return domain.ErrInvalidAmount
	}
	return nil
}
