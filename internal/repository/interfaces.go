// Package repository はデータ永続化のインターフェースとSQL実装を定義する。
// 実装はPostgreSQLとSQLiteで共通のSQLを使い、時刻の受け渡しだけを方言ごとに切り替える。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/sheetdash/internal/model"
)

// ErrNotFound は更新・削除対象のレコードが存在しない場合のエラー。
var ErrNotFound = errors.New("record not found")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByGoogleID はGoogle IDでユーザーを取得する。見つからない場合はnilを返す。
	FindByGoogleID(ctx context.Context, googleID string) (*model.User, error)

	// List は全ユーザーを作成日時の昇順で返す。
	List(ctx context.Context) ([]*model.User, error)

	// Create はユーザーを作成する。google_id / email の一意制約違反はエラーとして返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はemail、name、picture、updated_atを上書きする。
	// 対象が存在しない場合はErrNotFoundを返す。
	UpdateProfile(ctx context.Context, user *model.User) error

	// DeleteByID は指定IDのユーザーを削除する。関連セッションはCASCADE削除される。
	// 対象が存在しない場合はErrNotFoundを返す。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// 有効期限の判定に使う現在時刻は呼び出し側が渡す。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindActiveByToken はトークンに一致し expires_at > now のセッションを取得する。
	// 見つからない場合はnilを返す。
	FindActiveByToken(ctx context.Context, token string, now time.Time) (*model.Session, error)

	// DeleteByToken はトークンに一致するセッションを削除し、削除件数を返す。
	DeleteByToken(ctx context.Context, token string) (int64, error)

	// DeleteByUserID は指定ユーザーの全セッションを削除し、削除件数を返す。
	DeleteByUserID(ctx context.Context, userID string) (int64, error)

	// DeleteExpired は expires_at < now のセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)

	// CountActiveByUserID は指定ユーザーの expires_at > now のセッション数を返す。
	CountActiveByUserID(ctx context.Context, userID string, now time.Time) (int64, error)
}

// SheetSnapshotRepository はシートデータスナップショットの永続化インターフェース。
type SheetSnapshotRepository interface {
	// Upsert はsheet_idをキーにスナップショットを作成または更新する。
	// 既存行のidとcreated_atは保持される。
	Upsert(ctx context.Context, snapshot *model.SheetSnapshot) error

	// FindBySheetID はスナップショットを取得する。見つからない場合はnilを返す。
	FindBySheetID(ctx context.Context, sheetID string) (*model.SheetSnapshot, error)
}
