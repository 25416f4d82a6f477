package infra

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"custody-service/internal/domain"
)

// WorkDirectoryClient はマーケットプレイスの作品ディレクトリAPIをラップする。
// 作品のCRUD自体はこのサービスの範囲外で、ライセンス料受取先の照会のみ行う。
type WorkDirectoryClient struct {
	baseURL string
	client  *http.Client
}

// NewWorkDirectoryClient は新しいWorkDirectoryClientを生成する。
func NewWorkDirectoryClient(baseURL string) (*WorkDirectoryClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("WORK_DIRECTORY_URL environment variable is required")
	}
	return &WorkDirectoryClient{
		baseURL: baseURL,
		client: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

type workResponse struct {
	LicenseRecipient string `json:"license_recipient"`
}

// GetLicenseRecipient は作品のライセンス料受取先アドレスを照会する。
func (c *WorkDirectoryClient) GetLicenseRecipient(ctx context.Context, workID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/works/"+workID, nil)
	if err != nil {
		return "", fmt.Errorf("building work request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching work: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", domain.ErrWorkNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected work directory response: %d", resp.StatusCode)
	}

	var result workResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decoding work response: %w", err)
	}
	if result.LicenseRecipient == "" {
		return "", fmt.Errorf("work %s has no license recipient", workID)
	}
	return result.LicenseRecipient, nil
}
