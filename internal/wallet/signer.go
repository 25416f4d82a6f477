package wallet

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"custody-service/internal/domain"
	"custody-service/internal/keyvault"
)

// ChainClient はブロックチェーンノードへの送信・照会を行うインターフェース。
// ノンス管理はノード側の責務とする。
type ChainClient interface {
	SubmitTransaction(ctx context.Context, tx *domain.SignedTransaction) (string, error)
	GetTransactionStatus(ctx context.Context, txHash string) (*domain.TransactionReceipt, error)
}

// Signer はIdentityの代理でトランザクションに署名し送信する。
// 平文鍵は単一呼び出しのスコープ内でのみ存在し、すべての経路で消去される。
type Signer struct {
	vault         *keyvault.Vault
	chain         ChainClient
	submitTimeout time.Duration
	pollInterval  time.Duration
}

// NewSigner は新しいSignerを生成する。
func NewSigner(vault *keyvault.Vault, chain ChainClient, submitTimeout time.Duration) *Signer {
	return &Signer{
		vault:         vault,
		chain:         chain,
		submitTimeout: submitTimeout,
		pollInterval:  2 * time.Second,
	}
}

// SignAndSubmit は鍵を一時的に復号してトランザクションに署名し、
// 確認が取れるまで待って txHash を返す。自動リトライは行わない
// （送信はノンス管理なしには安全に冪等化できないため、リトライ方針は
// 呼び出し側の判断に委ねる）。
// ErrSubmissionTimeoutの場合もブロードキャスト済みのtxHashを併せて返す。
// タイムアウトは失敗の確定ではなく、照合ジョブが後から結果を確認する。
func (s *Signer) SignAndSubmit(ctx context.Context, identity *domain.Identity, secret string, tmpl *domain.TransferTemplate) (string, error) {
	signed, err := s.sign(identity, secret, tmpl)
	if err != nil {
		return "", err
	}

	txHash, err := s.chain.SubmitTransaction(ctx, signed)
	if err != nil {
		return "", classifySubmitError(err)
	}

	return s.awaitConfirmation(ctx, txHash)
}

// sign は鍵素材のライフサイクルを単一スコープに閉じ込める。
func (s *Signer) sign(identity *domain.Identity, secret string, tmpl *domain.TransferTemplate) (*domain.SignedTransaction, error) {
	seed, err := s.vault.Unwrap(&identity.EncryptedKey, secret)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAuthenticationFailed, err)
	}
	defer keyvault.Zero(seed)

	priv := ed25519.NewKeyFromSeed(seed)
	defer keyvault.Zero(priv)

	tx := &domain.SignedTransaction{
		From:      identity.SigningAddress,
		To:        tmpl.To,
		Amount:    tmpl.Amount,
		PublicKey: append([]byte(nil), priv.Public().(ed25519.PublicKey)...),
	}
	payload, err := json.Marshal(struct {
		From   string `json:"from"`
		To     string `json:"to"`
		Amount string `json:"amount"`
	}{tx.From, tx.To, tx.Amount})
	if err != nil {
		return nil, fmt.Errorf("encoding transaction: %w", err)
	}
	tx.Signature = ed25519.Sign(priv, payload)
	return tx, nil
}

// awaitConfirmation は確認が取れるまで規定時間ステータスをポーリングする。
// ブロードキャスト後の照会失敗は一時的なものとして期限まで再試行する。
// ここで打ち切って未分類のエラーを返すと、着地したかもしれない支払いが
// ハッシュなしで記録され照合不能になるため、確認が取れないまま期限を
// 迎えた場合は必ずErrSubmissionTimeoutとしてハッシュを残す。
func (s *Signer) awaitConfirmation(ctx context.Context, txHash string) (string, error) {
	deadline := time.Now().Add(s.submitTimeout)
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := s.chain.GetTransactionStatus(ctx, txHash)
		if err != nil {
			slog.WarnContext(ctx, "transaction status query failed; retrying until deadline",
				"tx_hash", txHash,
				"error", err,
			)
		} else {
			switch receipt.Status {
			case domain.TxStatusSuccess:
				return txHash, nil
			case domain.TxStatusReverted:
				return txHash, classifyRevert(receipt.Reason)
			}
		}

		if time.Now().After(deadline) {
			return txHash, fmt.Errorf("%w: no confirmation for %s", domain.ErrSubmissionTimeout, txHash)
		}

		select {
		case <-ctx.Done():
			// キャンセルも未確定として扱う。原因は併せてラップされた
			// ctx.Err()で期限切れと区別できる。
			return txHash, fmt.Errorf("%w: %w", domain.ErrSubmissionTimeout, ctx.Err())
		case <-ticker.C:
		}
	}
}

// classifySubmitError は送信時エラーをドメインのエラー分類に写像する。
// チェーンクライアントがドメインエラーを返す場合はそのまま通す。
func classifySubmitError(err error) error {
	switch {
	case errors.Is(err, domain.ErrUserRejected),
		errors.Is(err, domain.ErrInsufficientFunds),
		errors.Is(err, domain.ErrTransactionReverted):
		return err
	default:
		return fmt.Errorf("%w: %v", domain.ErrTransactionReverted, err)
	}
}

// classifyRevert はrevert理由からエラー種別を判定する。
func classifyRevert(reason string) error {
	lower := strings.ToLower(reason)
	switch {
	case strings.Contains(lower, "rejected by user"), strings.Contains(lower, "user cancelled"):
		return fmt.Errorf("%w: %s", domain.ErrUserRejected, reason)
	case strings.Contains(lower, "insufficient funds"):
		return fmt.Errorf("%w: %s", domain.ErrInsufficientFunds, reason)
	default:
		return fmt.Errorf("%w: %s", domain.ErrTransactionReverted, reason)
	}
}
