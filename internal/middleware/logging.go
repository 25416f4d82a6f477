// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"time"
)

// WriteAuditLog は監査ログを出力する。シークレットや鍵素材は
// 決して引数に渡さないこと。
func WriteAuditLog(ctx context.Context, operation, address, workID, result string) {
	slog.InfoContext(ctx, "custody operation completed",
		"operation", operation,
		"address", address,
		"work_id", workID,
		"result", result,
		"timestamp", time.Now().UTC().Format(time.RFC3339),
	)
}
