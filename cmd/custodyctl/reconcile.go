package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"custody-service/config"
	"custody-service/internal/infra"
	"custody-service/internal/repository"
	"custody-service/internal/usecase"
)

// reconcileCmd はタイムアウトした支払いの照合コマンド。
// failedのうちブロードキャスト済みハッシュを持つ行をチェーンと突き合わせ、
// 着地していたものをapprovedへ昇格する。cronなどから定期実行する想定。
var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Promote timed-out payments that landed on chain",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		dsn := os.Getenv("DATABASE_URL")
		if dsn == "" {
			return fmt.Errorf("DATABASE_URL environment variable is required")
		}
		cfg := config.Load()

		db, err := infra.NewDB(dsn, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		chainClient, err := infra.NewChainHTTPClient(cfg.ChainRPCURL)
		if err != nil {
			return fmt.Errorf("failed to init chain client: %w", err)
		}

		service := usecase.NewReconcileService(repository.NewAuthorizationRepository(db), chainClient)
		promoted, err := service.Run(ctx)
		if err != nil {
			return fmt.Errorf("reconcile failed: %w", err)
		}

		fmt.Printf("Promoted %d request(s) to approved.\n", promoted)
		return nil
	},
}
