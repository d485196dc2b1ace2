// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
)

// NameSanitizer は表示名の無害化インターフェース。
type NameSanitizer interface {
	SanitizeName(name string) string
}

// URLValidator はプロフィール画像URLの検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// UpdateInput はプロフィール更新の入力。nilのフィールドは変更しない。
type UpdateInput struct {
	Name    *string `json:"name"`
	Picture *string `json:"picture"`
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	sanitizer   NameSanitizer
	urls        URLValidator
	clock       clock.Clock
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	sanitizer NameSanitizer,
	urls URLValidator,
	clk clock.Clock,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		sanitizer:   sanitizer,
		urls:        urls,
		clock:       clk,
	}
}

// FindByID は指定IDのユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByID(ctx context.Context, id string) (*model.User, error) {
	user, err := s.userRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// FindByEmail はメールアドレスでユーザーを返す。存在しない場合はUSER_NOT_FOUNDを返す。
func (s *Service) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return user, nil
}

// List は全ユーザーを作成日時の昇順で返す。
func (s *Service) List(ctx context.Context) ([]*model.User, error) {
	users, err := s.userRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("ユーザー一覧の取得に失敗しました: %w", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// Update はユーザーの表示名とプロフィール画像を部分更新し、更新後のユーザーを返す。
// 表示名はタグを除去して保存する。画像URLは空文字列で削除、それ以外は絶対URLのみ受け付ける。
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*model.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Picture != nil && *in.Picture != "" {
		if err := s.urls.ValidateURL(*in.Picture); err != nil {
			return nil, model.NewInvalidPictureURLError(*in.Picture)
		}
	}

	if in.Name != nil {
		user.Name = s.sanitizer.SanitizeName(*in.Name)
	}
	if in.Picture != nil {
		user.Picture = *in.Picture
	}
	user.UpdatedAt = s.clock.Now()

	if err := s.userRepo.UpdateProfile(ctx, user); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ユーザーの更新に失敗しました: %w", err)
	}

	return s.FindByID(ctx, id)
}

// Delete はユーザーと全セッションを削除し、削除したユーザーを返す。
// セッションを先に削除する。FKのCASCADEは取りこぼしの保険として残している。
func (s *Service) Delete(ctx context.Context, id string) (*model.User, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	slog.Info("ユーザー削除を開始します",
		slog.String("user_id", id),
	)

	revoked, err := s.sessionRepo.DeleteByUserID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("セッションの削除に失敗しました: %w", err)
	}

	if err := s.userRepo.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewUserNotFoundError()
		}
		return nil, fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	slog.Info("ユーザー削除が完了しました",
		slog.String("user_id", id),
		slog.Int64("revoked_sessions", revoked),
	)

	return user, nil
}

// Stats はユーザー情報と有効なセッション数を返す。
func (s *Service) Stats(ctx context.Context, id string) (*model.UserStats, error) {
	user, err := s.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	active, err := s.sessionRepo.CountActiveByUserID(ctx, id, s.clock.Now())
	if err != nil {
		return nil, fmt.Errorf("セッション数の取得に失敗しました: %w", err)
	}

	return &model.UserStats{User: *user, ActiveSessions: active}, nil
}
