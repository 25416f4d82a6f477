package domain

import "errors"

var (
	// ErrEncryptionFailed は鍵のラップ処理が暗号ライブラリ起因で失敗した場合のエラー。
	ErrEncryptionFailed = errors.New("encryption failed")

	// ErrDecryptionFailed は鍵のアンラップ処理が失敗した場合のエラー。
	// 誤ったシークレット・改ざん・エンベロープ破損を区別せず単一のエラーとする
	// （復号オラクルを作らないため原因を漏らさない）。
	ErrDecryptionFailed = errors.New("decryption failed")

	// ErrProvisionFailed は安全な乱数源が利用できず鍵生成に失敗した場合のエラー。
	// 弱い乱数へのフォールバックは行わない。
	ErrProvisionFailed = errors.New("provisioning failed")

	// ErrAuthenticationFailed は署名時にシークレットが誤っていた場合のエラー。
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrInsufficientFunds は残高不足で支払いが失敗した場合のエラー。
	ErrInsufficientFunds = errors.New("insufficient funds")

	// ErrUserRejected はユーザーが支払いを明示的に取り消した場合のエラー。
	ErrUserRejected = errors.New("rejected by user")

	// ErrTransactionReverted はチェーン側で送信が拒否またはrevertされた場合のエラー。
	ErrTransactionReverted = errors.New("transaction reverted")

	// ErrSubmissionTimeout は規定時間内に確認が得られなかった場合のエラー。
	// 失敗と同義ではない。トランザクションが着地している可能性があるため、
	// 照合ジョブによる事後確認の対象となる。
	ErrSubmissionTimeout = errors.New("submission timed out")

	// ErrDuplicateRequest は同一(申請者, 作品)ペアに処理中の申請が既に存在する場合のエラー。
	ErrDuplicateRequest = errors.New("duplicate authorization request")

	// ErrAlreadyAuthorized は同一(申請者, 作品)ペアが既にapprovedの場合のエラー。
	ErrAlreadyAuthorized = errors.New("already authorized")

	// ErrIdentityNotFound は指定されたアドレスのIdentityが存在しない場合のエラー。
	ErrIdentityNotFound = errors.New("identity not found")

	// ErrWorkNotFound は指定された作品が作品ディレクトリに存在しない場合のエラー。
	ErrWorkNotFound = errors.New("work not found")

	// ErrInvalidAddress はアドレスの形式が不正な場合のエラー。
	ErrInvalidAddress = errors.New("invalid address")

	// ErrInvalidAmount は金額の形式が不正な場合のエラー。
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMigrationFailed はマイグレーション実行時のエラー。
	ErrMigrationFailed = errors.New("migration failed")

	// ErrInvalidMigrationFile はマイグレーションファイルのフォーマットが不正な場合のエラー。
	ErrInvalidMigrationFile = errors.New("invalid migration file")
)
