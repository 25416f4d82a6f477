// Package main はCLIツールのエントリポイント。
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var (
	apiURL  string
	output  string
	timeout time.Duration
)

// HTTPクライアント
var httpClient *http.Client

func main() {
	rootCmd := &cobra.Command{
		Use:   "custodyctl",
		Short: "Custody Service CLI",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if apiURL == "" {
				apiURL = os.Getenv("CUSTODYCTL_API_URL")
			}
			httpClient = &http.Client{Timeout: timeout}
		},
	}

	// グローバルフラグ
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "", "API endpoint URL (or set CUSTODYCTL_API_URL)")
	rootCmd.PersistentFlags().StringVar(&output, "output", "text", "Output format: text, json")
	rootCmd.PersistentFlags().DurationVar(&timeout, "timeout", 2*time.Minute, "Request timeout")

	// サブコマンド登録
	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(accountCmd())
	rootCmd.AddCommand(statusCmd())
	rootCmd.AddCommand(reconcileCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// versionCmd はバージョン情報を表示する。
func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("custodyctl version %s\n", version)
		},
	}
}

// registerCmd はアカウント登録コマンド。
func registerCmd() *cobra.Command {
	var secret string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Register a new custodial account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CUSTODYCTL_API_URL)")
			}

			payload, err := json.Marshal(map[string]string{"secret": secret})
			if err != nil {
				return fmt.Errorf("encoding request: %w", err)
			}

			resp, err := httpClient.Post(apiURL+"/v1/accounts", "application/json", bytes.NewReader(payload))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusCreated {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result map[string]interface{}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Registered account %s\n", result["signing_address"])
				fmt.Printf("Recovery phrase (shown once, store it safely):\n  %s\n", result["recovery_phrase"])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&secret, "secret", "", "Account secret (required)")
	cmd.MarkFlagRequired("secret")
	return cmd
}

// accountCmd はアカウント照会コマンド。
func accountCmd() *cobra.Command {
	var address string
	cmd := &cobra.Command{
		Use:   "account",
		Short: "Show a custodial account",
		RunE: func(cmd *cobra.Command, args []string) error {
			if address == "" {
				return fmt.Errorf("--address is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CUSTODYCTL_API_URL)")
			}

			resp, err := httpClient.Get(fmt.Sprintf("%s/v1/accounts/%s", apiURL, address))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result map[string]interface{}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Address:    %s\nCreated at: %s\n", result["signing_address"], result["created_at"])
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&address, "address", "", "Signing address (required)")
	cmd.MarkFlagRequired("address")
	return cmd
}

// statusCmd は許諾申請の状態照会コマンド。
func statusCmd() *cobra.Command {
	var requester string
	var workID string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show authorization status for a requester and work",
		RunE: func(cmd *cobra.Command, args []string) error {
			if requester == "" {
				return fmt.Errorf("--requester is required")
			}
			if workID == "" {
				return fmt.Errorf("--work is required")
			}
			if apiURL == "" {
				return fmt.Errorf("--api-url is required (or set CUSTODYCTL_API_URL)")
			}

			resp, err := httpClient.Get(fmt.Sprintf("%s/v1/authorizations/%s/%s", apiURL, requester, workID))
			if err != nil {
				return fmt.Errorf("API request failed: %w", err)
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(resp.Body)
			if err != nil {
				return fmt.Errorf("reading response: %w", err)
			}

			if resp.StatusCode != http.StatusOK {
				return handleErrorResponse(resp.StatusCode, body)
			}

			if output == "json" {
				fmt.Println(string(body))
			} else {
				var result struct {
					Status       string  `json:"status"`
					TxHash       *string `json:"tx_hash"`
					ErrorMessage *string `json:"error_message"`
				}
				if err := json.Unmarshal(body, &result); err != nil {
					return fmt.Errorf("parsing response: %w", err)
				}
				fmt.Printf("Status: %s\n", result.Status)
				if result.TxHash != nil {
					fmt.Printf("Tx:     %s\n", *result.TxHash)
				}
				if result.ErrorMessage != nil {
					fmt.Printf("Error:  %s\n", *result.ErrorMessage)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&requester, "requester", "", "Requester signing address (required)")
	cmd.Flags().StringVar(&workID, "work", "", "Work ID (required)")
	cmd.MarkFlagRequired("requester")
	cmd.MarkFlagRequired("work")
	return cmd
}

func handleErrorResponse(statusCode int, body []byte) error {
	var errResp struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&errResp); err == nil && errResp.Message != "" {
		return fmt.Errorf("Error: %s", errResp.Message)
	}
	return fmt.Errorf("Error: server returned status %d", statusCode)
}
