// Package domain はドメインモデルとビジネスルールを定義する。
package domain

import "time"

// EncryptedKey は暗号化された署名鍵のエンベロープを表す。
// アルゴリズムタグを含む自己記述形式のため、将来別方式での
// 再ラップが可能。平文鍵はこの構造体に一切含まれない。
type EncryptedKey struct {
	Algorithm  string // 例: "scrypt-aes256gcm"
	IV         []byte
	Ciphertext []byte
	AuthTag    []byte
}

// Identity はカストディアル署名鍵を持つユーザーを表す。
// 署名アドレスは登録時に一度だけ生成され、以後変更されない。
type Identity struct {
	ID             string
	SigningAddress string
	EncryptedKey   EncryptedKey
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TransferTemplate は代理署名する送金トランザクションの雛形を表す。
// 金額はwei相当の10進文字列で保持する。
type TransferTemplate struct {
	To     string
	Amount string
}

// SignedTransaction は署名済みトランザクションを表す。
type SignedTransaction struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    string `json:"amount"`
	PublicKey []byte `json:"public_key"`
	Signature []byte `json:"signature"`
}

// TransactionReceipt はチェーンクライアントが報告する照会結果を表す。
type TransactionReceipt struct {
	Status TxStatus
	Reason string
}

// TxStatus はチェーンクライアントが報告するトランザクション状態を表す。
type TxStatus string

const (
	TxStatusPending  TxStatus = "pending"
	TxStatusSuccess  TxStatus = "success"
	TxStatusReverted TxStatus = "reverted"
	TxStatusUnknown  TxStatus = "unknown"
)
