// Package handler はHTTPハンドラを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"custody-service/internal/domain"
	"custody-service/internal/middleware"
	"custody-service/internal/usecase"
	"custody-service/internal/wallet"
	"custody-service/pkg/httputil"
)

const minSecretLength = 8

// AccountHandler はカストディアルアカウントのHTTPハンドラを提供する。
type AccountHandler struct {
	service *usecase.AccountService
}

// NewAccountHandler は新しいAccountHandlerを生成する。
func NewAccountHandler(service *usecase.AccountService) *AccountHandler {
	return &AccountHandler{service: service}
}

// RegisterRequest はアカウント登録のリクエスト形式。
type RegisterRequest struct {
	Secret string `json:"secret"`
}

// RegisterResponse はアカウント登録のレスポンス形式。
// RecoveryPhraseはこのレスポンスでのみ返され、再取得はできない。
type RegisterResponse struct {
	SigningAddress string `json:"signing_address"`
	RecoveryPhrase string `json:"recovery_phrase"`
	CreatedAt      string `json:"created_at"`
}

// IdentityResponse はアカウント照会のレスポンス形式。
// 暗号化エンベロープは外部に返さない。
type IdentityResponse struct {
	SigningAddress string `json:"signing_address"`
	CreatedAt      string `json:"created_at"`
}

// RewrapRequest はシークレット変更のリクエスト形式。
type RewrapRequest struct {
	OldSecret string `json:"old_secret"`
	NewSecret string `json:"new_secret"`
}

// Register は新規アカウントの署名鍵を払い出す。
func (h *AccountHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if len(req.Secret) < minSecretLength {
		httputil.Error(w, http.StatusBadRequest, "INVALID_SECRET", "secret must be at least 8 characters")
		return
	}

	result, err := h.service.Register(r.Context(), req.Secret)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "REGISTER", "", "", "FAILED")
		if errors.Is(err, domain.ErrProvisionFailed) {
			httputil.Error(w, http.StatusInternalServerError, "PROVISION_FAILED", "secure randomness unavailable")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	middleware.WriteAuditLog(r.Context(), "REGISTER", result.SigningAddress, "", "SUCCESS")
	httputil.JSON(w, http.StatusCreated, RegisterResponse{
		SigningAddress: result.SigningAddress,
		RecoveryPhrase: result.RecoveryPhrase,
		CreatedAt:      result.CreatedAt.Format(time.RFC3339),
	})
}

// GetIdentity はアカウントのメタデータを取得する。
func (h *AccountHandler) GetIdentity(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !wallet.ValidAddress(address) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_ADDRESS", "invalid address format")
		return
	}

	identity, err := h.service.GetIdentity(r.Context(), address)
	if err != nil {
		if errors.Is(err, domain.ErrIdentityNotFound) {
			httputil.Error(w, http.StatusNotFound, "IDENTITY_NOT_FOUND", "identity not found")
			return
		}
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, IdentityResponse{
		SigningAddress: identity.SigningAddress,
		CreatedAt:      identity.CreatedAt.Format(time.RFC3339),
	})
}

// Rewrap は署名鍵を新しいシークレットで再ラップする。
func (h *AccountHandler) Rewrap(w http.ResponseWriter, r *http.Request) {
	address := chi.URLParam(r, "address")
	if !wallet.ValidAddress(address) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_ADDRESS", "invalid address format")
		return
	}

	var req RewrapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if len(req.NewSecret) < minSecretLength {
		httputil.Error(w, http.StatusBadRequest, "INVALID_SECRET", "secret must be at least 8 characters")
		return
	}

	err := h.service.Rewrap(r.Context(), address, req.OldSecret, req.NewSecret)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "REWRAP", address, "", "FAILED")
		switch {
		case errors.Is(err, domain.ErrIdentityNotFound):
			httputil.Error(w, http.StatusNotFound, "IDENTITY_NOT_FOUND", "identity not found")
		case errors.Is(err, domain.ErrAuthenticationFailed):
			httputil.Error(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "old secret is incorrect")
		default:
			httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}
		return
	}

	middleware.WriteAuditLog(r.Context(), "REWRAP", address, "", "SUCCESS")
	w.WriteHeader(http.StatusNoContent)
}
