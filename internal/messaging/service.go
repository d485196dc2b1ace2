// Package messaging はWAHA(WhatsApp HTTP API)連携のプレースホルダーを提供する。
// 外部APIは呼び出さず、固定の「未実装」応答を返す。
package messaging

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/sheetdash/internal/clock"
)

const notImplementedMessage = "メッセージング連携は未実装です"

// Status はメッセージング連携の状態。
type Status struct {
	Status           string `json:"status"`
	Message          string `json:"message"`
	APIKeyConfigured bool   `json:"apiKeyConfigured"`
	BaseURL          string `json:"baseUrl"`
	Timestamp        string `json:"timestamp"`
}

// SessionList はメッセージングセッションの一覧。
type SessionList struct {
	Sessions []string `json:"sessions"`
	Total    int      `json:"total"`
	Message  string   `json:"message"`
}

// SendResult はメッセージ送信の結果。
type SendResult struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SessionID   string `json:"sessionId"`
	MessageText string `json:"messageText"`
}

// Config はWAHAの接続設定。
type Config struct {
	BaseURL string
	APIKey  string
}

// Service はメッセージング連携のプレースホルダー。
type Service struct {
	cfg   Config
	clock clock.Clock
}

// NewService は新しいServiceを生成する。
func NewService(cfg Config, clk clock.Clock) *Service {
	return &Service{cfg: cfg, clock: clk}
}

// Status は連携の状態を返す。APIキーそのものは返さない。
func (s *Service) Status(ctx context.Context) Status {
	slog.InfoContext(ctx, "messaging status requested (placeholder)")

	return Status{
		Status:           "placeholder",
		Message:          notImplementedMessage,
		APIKeyConfigured: s.cfg.APIKey != "",
		BaseURL:          s.cfg.BaseURL,
		Timestamp:        s.clock.Now().UTC().Format(time.RFC3339),
	}
}

// ListSessions は常に空の一覧を返す。
func (s *Service) ListSessions(ctx context.Context) SessionList {
	slog.InfoContext(ctx, "messaging sessions requested (placeholder)")

	return SessionList{
		Sessions: []string{},
		Total:    0,
		Message:  notImplementedMessage,
	}
}

// SendMessage は送信せずに失敗結果を返す。
func (s *Service) SendMessage(ctx context.Context, sessionID, text string) SendResult {
	slog.InfoContext(ctx, "messaging send requested (placeholder)", "sessionID", sessionID)

	return SendResult{
		Success:     false,
		Message:     notImplementedMessage,
		SessionID:   sessionID,
		MessageText: text,
	}
}
