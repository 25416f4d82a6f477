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

// AuthorizationHandler はリミックス許諾申請のHTTPハンドラを提供する。
type AuthorizationHandler struct {
	service *usecase.AuthorizationService
}

// NewAuthorizationHandler は新しいAuthorizationHandlerを生成する。
func NewAuthorizationHandler(service *usecase.AuthorizationService) *AuthorizationHandler {
	return &AuthorizationHandler{service: service}
}

// ApplyRequest は許諾申請のリクエスト形式。
type ApplyRequest struct {
	RequesterAddress string `json:"requester_address"`
	WorkID           string `json:"work_id"`
	Secret           string `json:"secret"`
	FeeAmount        string `json:"fee_amount"`
}

// AuthorizationResponse は許諾申請のレスポンス形式。
type AuthorizationResponse struct {
	RequesterAddress string  `json:"requester_address"`
	WorkID           string  `json:"work_id"`
	Status           string  `json:"status"`
	TxHash           *string `json:"tx_hash,omitempty"`
	ErrorMessage     *string `json:"error_message,omitempty"`
	UpdatedAt        string  `json:"updated_at,omitempty"`
}

func toAuthorizationResponse(req *domain.AuthorizationRequest) AuthorizationResponse {
	resp := AuthorizationResponse{
		RequesterAddress: req.RequesterAddress,
		WorkID:           req.WorkID,
		Status:           string(req.Status),
		TxHash:           req.TxHash,
		ErrorMessage:     req.ErrorMessage,
	}
	if !req.UpdatedAt.IsZero() {
		resp.UpdatedAt = req.UpdatedAt.Format(time.RFC3339)
	}
	return resp
}

// Apply はライセンス料の支払いを伴う許諾申請を処理する。
func (h *AuthorizationHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req ApplyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "invalid request body")
		return
	}
	if req.WorkID == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_WORK_ID", "work_id is required")
		return
	}

	result, err := h.service.Apply(r.Context(), req.RequesterAddress, req.WorkID, req.Secret, req.FeeAmount)
	if err != nil {
		middleware.WriteAuditLog(r.Context(), "APPLY_AUTHORIZATION", req.RequesterAddress, req.WorkID, "FAILED")
		writeApplyError(w, err)
		return
	}

	middleware.WriteAuditLog(r.Context(), "APPLY_AUTHORIZATION", req.RequesterAddress, req.WorkID, "SUCCESS")
	httputil.JSON(w, http.StatusCreated, toAuthorizationResponse(result))
}

// writeApplyError は申請処理のドメインエラーをHTTPステータスへ対応付ける。
func writeApplyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidAddress):
		httputil.Error(w, http.StatusBadRequest, "INVALID_ADDRESS", "invalid requester address format")
	case errors.Is(err, domain.ErrInvalidAmount):
		httputil.Error(w, http.StatusBadRequest, "INVALID_AMOUNT", "fee amount must be a positive integer")
	case errors.Is(err, domain.ErrAlreadyAuthorized):
		httputil.Error(w, http.StatusConflict, "ALREADY_AUTHORIZED", "work is already authorized for this requester")
	case errors.Is(err, domain.ErrDuplicateRequest):
		httputil.Error(w, http.StatusConflict, "DUPLICATE_REQUEST", "a request for this work is already in progress")
	case errors.Is(err, domain.ErrUserRejected):
		httputil.Error(w, http.StatusConflict, "USER_REJECTED", "payment was cancelled by the user")
	case errors.Is(err, domain.ErrIdentityNotFound):
		httputil.Error(w, http.StatusNotFound, "IDENTITY_NOT_FOUND", "requester identity not found")
	case errors.Is(err, domain.ErrWorkNotFound):
		httputil.Error(w, http.StatusNotFound, "WORK_NOT_FOUND", "work not found")
	case errors.Is(err, domain.ErrAuthenticationFailed):
		httputil.Error(w, http.StatusUnauthorized, "AUTHENTICATION_FAILED", "secret is incorrect")
	case errors.Is(err, domain.ErrInsufficientFunds):
		httputil.Error(w, http.StatusPaymentRequired, "INSUFFICIENT_FUNDS", "insufficient funds for license fee")
	case errors.Is(err, domain.ErrTransactionReverted):
		httputil.Error(w, http.StatusBadGateway, "TRANSACTION_REVERTED", "payment transaction was reverted")
	case errors.Is(err, domain.ErrSubmissionTimeout):
		httputil.Error(w, http.StatusGatewayTimeout, "SUBMISSION_TIMEOUT", "payment confirmation timed out")
	default:
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}

// GetStatus は申請者と作品のペアに対する許諾状態を返す。
// 台帳に行がない場合もstatus=noneとして200を返す。
func (h *AuthorizationHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	requesterAddress := chi.URLParam(r, "requester_address")
	if !wallet.ValidAddress(requesterAddress) {
		httputil.Error(w, http.StatusBadRequest, "INVALID_ADDRESS", "invalid requester address format")
		return
	}
	workID := chi.URLParam(r, "work_id")
	if workID == "" {
		httputil.Error(w, http.StatusBadRequest, "INVALID_WORK_ID", "work_id is required")
		return
	}

	result, err := h.service.GetStatus(r.Context(), requesterAddress, workID)
	if err != nil {
		httputil.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}

	httputil.JSON(w, http.StatusOK, toAuthorizationResponse(result))
}
