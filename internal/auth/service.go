// Package auth はGoogle OAuth認証フロー、ユーザー解決、ベアラートークンとセッションの管理を提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sheetdash/internal/model"
)

// LoginResult はOAuthコールバック処理の結果。
// GoogleAccessTokenはSheets APIの呼び出しにクライアントが使用する。
type LoginResult struct {
	*IssuedToken
	GoogleAccessToken string
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth    OAuthProvider
	resolver *Resolver
	tokens   *TokenService
}

// NewService はServiceを生成する。
func NewService(oauth OAuthProvider, resolver *Resolver, tokens *TokenService) *Service {
	return &Service{
		oauth:    oauth,
		resolver: resolver,
		tokens:   tokens,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、トークンを発行する。
// 認可コードの交換、ユーザーの作成または更新、セッション付きトークンの発行を順に行う。
func (s *Service) HandleCallback(ctx context.Context, code string) (*LoginResult, error) {
	info, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	user, err := s.resolver.Resolve(ctx, info.Claims)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve identity: %w", err)
	}

	issued, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to issue token: %w", err)
	}

	return &LoginResult{IssuedToken: issued, GoogleAccessToken: info.AccessToken}, nil
}

// Authenticate はベアラートークンを検証し、ユーザーを返す。
func (s *Service) Authenticate(ctx context.Context, token string) (*model.User, error) {
	return s.tokens.Validate(ctx, token)
}

// Refresh は認証済みユーザーに新しいトークンを発行する。
// 既存のセッションは失効させず、期限切れかログアウトまで有効なまま残る。
func (s *Service) Refresh(ctx context.Context, user *model.User) (*IssuedToken, error) {
	issued, err := s.tokens.Issue(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh token: %w", err)
	}
	return issued, nil
}

// Logout はトークンに対応するセッションを破棄する。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return fmt.Errorf("token is required")
	}
	if err := s.tokens.Revoke(ctx, token); err != nil {
		return err
	}
	slog.Info("user logged out")
	return nil
}

// SweepExpiredSessions は期限切れセッションを一括削除する。
func (s *Service) SweepExpiredSessions(ctx context.Context) (int64, error) {
	return s.tokens.SweepExpired(ctx)
}
