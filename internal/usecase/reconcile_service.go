package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"custody-service/internal/domain"
	"custody-service/internal/wallet"
)

// ReconcileService はタイムアウト等でfailed扱いになった支払いを
// チェーンに照会し、実際には着地していた行をapprovedへ訂正する。
// 実行間隔は運用判断に委ねる（custodyctl reconcileから起動）。
type ReconcileService struct {
	ledger AuthorizationRepository
	chain  wallet.ChainClient
}

// NewReconcileService は新しいReconcileServiceを生成する。
func NewReconcileService(ledger AuthorizationRepository, chain wallet.ChainClient) *ReconcileService {
	return &ReconcileService{ledger: ledger, chain: chain}
}

// Run は照合を1回実行し、訂正した行数を返す。
// tx_hashを持たないfailed行は一度もブロードキャストされていないため対象外。
func (s *ReconcileService) Run(ctx context.Context) (int, error) {
	candidates, err := s.ledger.FindFailedWithTxHash(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing reconcilable requests: %w", err)
	}

	promoted := 0
	for _, req := range candidates {
		receipt, err := s.chain.GetTransactionStatus(ctx, *req.TxHash)
		if err != nil {
			slog.ErrorContext(ctx, "failed to query transaction status",
				"operation", "reconcile",
				"tx_hash", *req.TxHash,
				"error", err,
			)
			continue
		}
		if receipt.Status != domain.TxStatusSuccess {
			// pending/unknownは次回に持ち越し。revertedは失敗のまま正しい。
			continue
		}

		affected, err := s.ledger.UpdateFromFailed(ctx, req.ID, domain.AuthorizationStatusApproved, req.TxHash, nil)
		if err != nil {
			slog.ErrorContext(ctx, "failed to promote reconciled request",
				"operation", "reconcile",
				"id", req.ID,
				"tx_hash", *req.TxHash,
				"error", err,
			)
			continue
		}
		if affected == 1 {
			slog.InfoContext(ctx, "reconciled timed-out payment to approved",
				"operation", "reconcile",
				"requester_address", req.RequesterAddress,
				"work_id", req.WorkID,
				"tx_hash", *req.TxHash,
			)
			promoted++
		}
	}
	return promoted, nil
}
