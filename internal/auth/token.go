package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
)

// DefaultTokenTTL はトークンとセッションの既定の有効期間。
const DefaultTokenTTL = 24 * time.Hour

var (
	// ErrInvalidToken は署名・形式・埋め込み有効期限の検証に失敗したことを示す。
	ErrInvalidToken = errors.New("invalid token")
	// ErrSessionExpiredOrRevoked は署名は正しいが有効なセッションが存在しないことを示す。
	ErrSessionExpiredOrRevoked = errors.New("session expired or revoked")
)

// TokenClaims はJWTのペイロード。
type TokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// UserSummary はトークン発行時に返すユーザー情報。
type UserSummary struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	Picture string `json:"picture,omitempty"`
}

// IssuedToken は発行済みトークンとその有効期限。
type IssuedToken struct {
	Token     string      `json:"accessToken"`
	ExpiresAt time.Time   `json:"expiresAt"`
	User      UserSummary `json:"user"`
}

// TokenConfig はトークンサービスの設定。
type TokenConfig struct {
	Secret []byte
	TTL    time.Duration
}

// TokenService はセッションに紐付いたHS256署名のベアラートークンを発行・検証する。
// トークンはJWTの有効期限とセッション行の有効期限の両方を満たす場合のみ有効。
type TokenService struct {
	sessions repository.SessionRepository
	users    repository.UserRepository
	clock    clock.Clock
	secret   []byte
	ttl      time.Duration
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(
	sessions repository.SessionRepository,
	users repository.UserRepository,
	clk clock.Clock,
	cfg TokenConfig,
) *TokenService {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTokenTTL
	}
	return &TokenService{
		sessions: sessions,
		users:    users,
		clock:    clk,
		secret:   cfg.Secret,
		ttl:      cfg.TTL,
	}
}

// Issue はユーザーのトークンを発行し、同じトークンと有効期限でセッションを作成する。
func (s *TokenService) Issue(ctx context.Context, user *model.User) (*IssuedToken, error) {
	// JWTのiat/expは秒精度のため、発行時刻を先に切り捨ててセッション行と一致させる。
	// exp - iat は常にttlちょうどになる。
	now := s.clock.Now().Truncate(time.Second)
	expiresAt := now.Add(s.ttl)

	claims := TokenClaims{
		Email: user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.New().String(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	session := &model.Session{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		Token:     signed,
		ExpiresAt: expiresAt,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &IssuedToken{
		Token:     signed,
		ExpiresAt: expiresAt,
		User: UserSummary{
			ID:      user.ID,
			Email:   user.Email,
			Name:    user.Name,
			Picture: user.Picture,
		},
	}, nil
}

// Validate はトークンを検証し、所有ユーザーを返す。
// 署名・形式・有効期限の不正はErrInvalidToken、セッション不在・失効・ユーザー不在は
// ErrSessionExpiredOrRevokedを返す。ストアのエラーはそのままラップして返す。
func (s *TokenService) Validate(ctx context.Context, token string) (*model.User, error) {
	claims := &TokenClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (interface{}, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	session, err := s.sessions.FindActiveByToken(ctx, token, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionExpiredOrRevoked
	}
	if claims.Subject != session.UserID {
		return nil, fmt.Errorf("%w: subject does not match session owner", ErrInvalidToken)
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionExpiredOrRevoked
	}

	return user, nil
}

// Revoke はトークンに一致するセッションを削除する。存在しない場合も成功とする。
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if _, err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}
	return nil
}

// SweepExpired は期限切れセッションを削除し、削除件数を返す。
func (s *TokenService) SweepExpired(ctx context.Context) (int64, error) {
	n, err := s.sessions.DeleteExpired(ctx, s.clock.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired sessions: %w", err)
	}
	return n, nil
}
