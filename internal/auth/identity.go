package auth

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
)

// IdentityClaims はGoogleから取得したユーザー識別情報。
type IdentityClaims struct {
	GoogleID string
	Email    string
	Name     string
	Picture  string
}

// Resolver はGoogleの識別情報からユーザーを作成または更新する。
type Resolver struct {
	users repository.UserRepository
	clock clock.Clock
}

// NewResolver はResolverを生成する。
func NewResolver(users repository.UserRepository, clk clock.Clock) *Resolver {
	return &Resolver{users: users, clock: clk}
}

// Resolve はGoogle IDでユーザーを検索し、未登録なら作成、登録済みならプロフィールを上書きする。
// 更新後はDBから読み直した正規の行を返す。
func (r *Resolver) Resolve(ctx context.Context, claims IdentityClaims) (*model.User, error) {
	if claims.GoogleID == "" || claims.Email == "" {
		return nil, fmt.Errorf("google id and email are required")
	}

	existing, err := r.users.FindByGoogleID(ctx, claims.GoogleID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user by google id: %w", err)
	}

	now := r.clock.Now()

	if existing == nil {
		user := &model.User{
			ID:        uuid.New().String(),
			GoogleID:  claims.GoogleID,
			Email:     claims.Email,
			Name:      claims.Name,
			Picture:   claims.Picture,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := r.users.Create(ctx, user); err != nil {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", user.ID),
			slog.String("email", user.Email),
		)
		return user, nil
	}

	existing.Email = claims.Email
	existing.Name = claims.Name
	existing.Picture = claims.Picture
	existing.UpdatedAt = now
	if err := r.users.UpdateProfile(ctx, existing); err != nil {
		return nil, fmt.Errorf("failed to update user profile: %w", err)
	}

	user, err := r.users.FindByID(ctx, existing.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload user: %w", err)
	}
	if user == nil {
		return nil, fmt.Errorf("user %s disappeared during resolve", existing.ID)
	}

	slog.Info("existing user logged in", slog.String("user_id", user.ID))
	return user, nil
}
