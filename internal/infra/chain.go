package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"custody-service/internal/domain"
)

// ChainHTTPClient はブロックチェーンノードのHTTP APIをラップする。
// ノンス管理と最終的なブロードキャストはノード側が行う。
type ChainHTTPClient struct {
	baseURL string
	client  *http.Client
}

// NewChainHTTPClient は新しいChainHTTPClientを生成する。
func NewChainHTTPClient(baseURL string) (*ChainHTTPClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("CHAIN_RPC_URL environment variable is required")
	}
	return &ChainHTTPClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type submitRequest struct {
	Transaction *domain.SignedTransaction `json:"transaction"`
}

type submitResponse struct {
	TxHash       string `json:"tx_hash"`
	Error        string `json:"error,omitempty"`
	UserRejected bool   `json:"user_rejected,omitempty"`
}

// SubmitTransaction は署名済みトランザクションをノードへ送信する。
// ノードが拒否を報告した場合はドメインエラーに変換して返す。
func (c *ChainHTTPClient) SubmitTransaction(ctx context.Context, tx *domain.SignedTransaction) (string, error) {
	body, err := json.Marshal(submitRequest{Transaction: tx})
	if err != nil {
		return "", fmt.Errorf("encoding submit request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/transactions", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting transaction: %w", err)
	}
	defer resp.Body.Close()

	var result submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding submit response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		if result.UserRejected {
			return "", fmt.Errorf("%w: %s", domain.ErrUserRejected, result.Error)
		}
		return "", fmt.Errorf("%w: %s", domain.ErrTransactionReverted, result.Error)
	}
	// ハッシュなしの成功応答はプロトコル違反。空のハッシュで確認
	// ポーリングへ進ませない。
	if result.TxHash == "" {
		return "", fmt.Errorf("node returned success without tx_hash")
	}
	return result.TxHash, nil
}

type statusResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// GetTransactionStatus はトランザクションの確認状態を照会する。
func (c *ChainHTTPClient) GetTransactionStatus(ctx context.Context, txHash string) (*domain.TransactionReceipt, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/transactions/"+txHash, nil)
	if err != nil {
		return nil, fmt.Errorf("building status request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching transaction status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status response: %d", resp.StatusCode)
	}

	var result statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decoding status response: %w", err)
	}

	switch domain.TxStatus(result.Status) {
	case domain.TxStatusPending, domain.TxStatusSuccess, domain.TxStatusReverted:
		return &domain.TransactionReceipt{
			Status: domain.TxStatus(result.Status),
			Reason: result.Reason,
		}, nil
	default:
		return &domain.TransactionReceipt{Status: domain.TxStatusUnknown, Reason: result.Reason}, nil
	}
}
