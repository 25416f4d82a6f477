package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"custody-service/internal/domain"
	"custody-service/internal/usecase"
	"custody-service/internal/wallet"
)

const testAddress = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"

// mockIdentityRepository はテスト用のモックリポジトリ。
type mockIdentityRepository struct {
	identity  *domain.Identity
	findErr   error
	createErr error
	updateErr error
	created   []*domain.Identity
}

func (m *mockIdentityRepository) Create(ctx context.Context, identity *domain.Identity) error {
	if m.createErr != nil {
		return m.createErr
	}
	identity.ID = "identity-1"
	identity.CreatedAt = time.Now()
	m.created = append(m.created, identity)
	return nil
}

func (m *mockIdentityRepository) FindBySigningAddress(ctx context.Context, address string) (*domain.Identity, error) {
	return m.identity, m.findErr
}

func (m *mockIdentityRepository) UpdateEncryptedKey(ctx context.Context, id string, enc *domain.EncryptedKey) error {
	return m.updateErr
}

// mockProvisioner はテスト用のモック鍵払い出し。
type mockProvisioner struct {
	result *wallet.ProvisionResult
	err    error
}

func (m *mockProvisioner) Provision(secret string) (*wallet.ProvisionResult, error) {
	return m.result, m.err
}

// mockVault はテスト用のモック鍵ラップ。
type mockVault struct {
	unwrapErr error
}

func (m *mockVault) Wrap(rawKey []byte, secret string) (*domain.EncryptedKey, error) {
	return &domain.EncryptedKey{Algorithm: "mock", Ciphertext: []byte("wrapped")}, nil
}

func (m *mockVault) Unwrap(enc *domain.EncryptedKey, secret string) ([]byte, error) {
	if m.unwrapErr != nil {
		return nil, m.unwrapErr
	}
	return make([]byte, 32), nil
}

func provisionedResult() *wallet.ProvisionResult {
	return &wallet.ProvisionResult{
		SigningAddress: testAddress,
		EncryptedKey:   &domain.EncryptedKey{Algorithm: "mock", Ciphertext: []byte("wrapped")},
		RecoveryPhrase: "abandon abandon abandon",
	}
}

func setupAccountHandler(repo *mockIdentityRepository, prov *mockProvisioner, vault *mockVault) *AccountHandler {
	service := usecase.NewAccountService(repo, prov, vault)
	return NewAccountHandler(service)
}

func withURLParam(req *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestRegister_Success(t *testing.T) {
	repo := &mockIdentityRepository{}
	h := setupAccountHandler(repo, &mockProvisioner{result: provisionedResult()}, &mockVault{})

	body, _ := json.Marshal(RegisterRequest{Secret: "correct horse battery"})
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusCreated {
		t.Errorf("want status 201, got %d", rec.Code)
	}

	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	if resp["signing_address"] != testAddress {
		t.Errorf("want signing_address %s, got %v", testAddress, resp["signing_address"])
	}
	if resp["recovery_phrase"] == "" {
		t.Error("want recovery phrase in the registration response")
	}
	if len(repo.created) != 1 {
		t.Errorf("want 1 stored identity, got %d", len(repo.created))
	}
}

func TestRegister_ShortSecret(t *testing.T) {
	h := setupAccountHandler(&mockIdentityRepository{}, &mockProvisioner{result: provisionedResult()}, &mockVault{})

	body, _ := json.Marshal(RegisterRequest{Secret: "short"})
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestRegister_ProvisionFailure(t *testing.T) {
	prov := &mockProvisioner{err: domain.ErrProvisionFailed}
	h := setupAccountHandler(&mockIdentityRepository{}, prov, &mockVault{})

	body, _ := json.Marshal(RegisterRequest{Secret: "correct horse battery"})
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts", bytes.NewReader(body))

	rec := httptest.NewRecorder()
	h.Register(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("want status 500, got %d", rec.Code)
	}
}

func TestGetIdentity_Success(t *testing.T) {
	repo := &mockIdentityRepository{identity: &domain.Identity{
		ID:             "identity-1",
		SigningAddress: testAddress,
		CreatedAt:      time.Now(),
	}}
	h := setupAccountHandler(repo, &mockProvisioner{}, &mockVault{})

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+testAddress, nil)
	req = withURLParam(req, "address", testAddress)

	rec := httptest.NewRecorder()
	h.GetIdentity(rec, req)

	if rec.Code != http.StatusOK {
		t.Errorf("want status 200, got %d", rec.Code)
	}

	// 暗号化エンベロープがレスポンスに漏れていないこと
	var resp map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&resp)
	for _, field := range []string{"encrypted_key", "ciphertext", "iv", "auth_tag"} {
		if _, ok := resp[field]; ok {
			t.Errorf("response must not expose %s", field)
		}
	}
}

func TestGetIdentity_NotFound(t *testing.T) {
	h := setupAccountHandler(&mockIdentityRepository{identity: nil}, &mockProvisioner{}, &mockVault{})

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/"+testAddress, nil)
	req = withURLParam(req, "address", testAddress)

	rec := httptest.NewRecorder()
	h.GetIdentity(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("want status 404, got %d", rec.Code)
	}
}

func TestGetIdentity_InvalidAddress(t *testing.T) {
	h := setupAccountHandler(&mockIdentityRepository{}, &mockProvisioner{}, &mockVault{})

	req := httptest.NewRequest(http.MethodGet, "/v1/accounts/not-an-address", nil)
	req = withURLParam(req, "address", "not-an-address")

	rec := httptest.NewRecorder()
	h.GetIdentity(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("want status 400, got %d", rec.Code)
	}
}

func TestRewrap_Success(t *testing.T) {
	repo := &mockIdentityRepository{identity: &domain.Identity{
		ID:             "identity-1",
		SigningAddress: testAddress,
		EncryptedKey:   domain.EncryptedKey{Algorithm: "mock"},
	}}
	h := setupAccountHandler(repo, &mockProvisioner{}, &mockVault{})

	body, _ := json.Marshal(RewrapRequest{OldSecret: "old-secret", NewSecret: "new-secret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/"+testAddress+"/rewrap", bytes.NewReader(body))
	req = withURLParam(req, "address", testAddress)

	rec := httptest.NewRecorder()
	h.Rewrap(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("want status 204, got %d", rec.Code)
	}
}

func TestRewrap_WrongOldSecret(t *testing.T) {
	repo := &mockIdentityRepository{identity: &domain.Identity{
		ID:             "identity-1",
		SigningAddress: testAddress,
		EncryptedKey:   domain.EncryptedKey{Algorithm: "mock"},
	}}
	vault := &mockVault{unwrapErr: errors.New("authentication tag mismatch")}
	h := setupAccountHandler(repo, &mockProvisioner{}, vault)

	body, _ := json.Marshal(RewrapRequest{OldSecret: "guessed", NewSecret: "new-secret"})
	req := httptest.NewRequest(http.MethodPost, "/v1/accounts/"+testAddress+"/rewrap", bytes.NewReader(body))
	req = withURLParam(req, "address", testAddress)

	rec := httptest.NewRecorder()
	h.Rewrap(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("want status 401, got %d", rec.Code)
	}
}
