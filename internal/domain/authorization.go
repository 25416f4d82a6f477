package domain

import "time"

// AuthorizationStatus はリミックス許諾申請の状態を表す。
type AuthorizationStatus string

const (
	// AuthorizationStatusNone は申請レコードが存在しないことを表す。
	// 行としては保存されず、照会時にのみ返される。
	AuthorizationStatusNone AuthorizationStatus = "none"
	// AuthorizationStatusPending は支払い確認待ちを表す。
	// 現在のオーケストレーションでは支払い確認後に直接approvedで
	// 記録するため、複数段階の決済プロバイダ対応まで行は取らない。
	AuthorizationStatusPending AuthorizationStatus = "pending"
	// AuthorizationStatusApproved は支払い確認済みの許諾を表す（終端状態）。
	AuthorizationStatusApproved AuthorizationStatus = "approved"
	// AuthorizationStatusFailed は支払い試行が失敗したことを表す。
	// 終端状態だが再申請は許可される。
	AuthorizationStatusFailed AuthorizationStatus = "failed"
)

// AuthorizationRequest はリミックス許諾申請を表す。
// (RequesterAddress, WorkID) が複合自然キーとなる。
// approvedの行はTxHashが確定した時点で不変となる。
type AuthorizationRequest struct {
	ID               string
	RequesterAddress string
	WorkID           string
	Status           AuthorizationStatus
	TxHash           *string
	ErrorMessage     *string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// IsTerminal は状態が終端かどうかを返す。
func (s AuthorizationStatus) IsTerminal() bool {
	return s == AuthorizationStatusApproved || s == AuthorizationStatusFailed
}

// AllowsReapply はこの状態から再申請が可能かどうかを返す。
func (s AuthorizationStatus) AllowsReapply() bool {
	return s == AuthorizationStatusNone || s == AuthorizationStatusFailed
}
