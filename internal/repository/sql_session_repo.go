package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/hitoshi/sheetdash/internal/database"
	"github.com/hitoshi/sheetdash/internal/model"
)

// SQLSessionRepo はSQLデータベースを使用したセッションリポジトリ。
// 現在時刻はDB側のnow()ではなく引数で受け取る。
type SQLSessionRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLSessionRepo はSQLSessionRepoを生成する。
func NewSQLSessionRepo(db *sql.DB, dialect database.Dialect) *SQLSessionRepo {
	return &SQLSessionRepo{db: db, dialect: dialect}
}

// Create はセッションを作成する。
func (r *SQLSessionRepo) Create(ctx context.Context, session *model.Session) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sessions (id, user_id, token, expires_at, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		session.ID, session.UserID, session.Token,
		timeArg(r.dialect, session.ExpiresAt), timeArg(r.dialect, session.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// FindActiveByToken はトークンに一致し期限内のセッションを取得する。見つからない場合はnilを返す。
func (r *SQLSessionRepo) FindActiveByToken(ctx context.Context, token string, now time.Time) (*model.Session, error) {
	session := &model.Session{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, token, expires_at, created_at
		 FROM sessions
		 WHERE token = $1 AND expires_at > $2`,
		token, timeArg(r.dialect, now),
	).Scan(&session.ID, &session.UserID, &session.Token,
		scanTime{&session.ExpiresAt}, scanTime{&session.CreatedAt})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}

	return session, nil
}

// DeleteByToken はトークンに一致するセッションを削除する。
func (r *SQLSessionRepo) DeleteByToken(ctx context.Context, token string) (int64, error) {
	return r.exec(ctx, "failed to delete session",
		`DELETE FROM sessions WHERE token = $1`, token)
}

// DeleteByUserID は指定ユーザーの全セッションを削除する。
func (r *SQLSessionRepo) DeleteByUserID(ctx context.Context, userID string) (int64, error) {
	return r.exec(ctx, "failed to delete user sessions",
		`DELETE FROM sessions WHERE user_id = $1`, userID)
}

// DeleteExpired は期限切れセッションを削除する。
func (r *SQLSessionRepo) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	return r.exec(ctx, "failed to delete expired sessions",
		`DELETE FROM sessions WHERE expires_at < $1`, timeArg(r.dialect, now))
}

// CountActiveByUserID は指定ユーザーの期限内セッション数を返す。
func (r *SQLSessionRepo) CountActiveByUserID(ctx context.Context, userID string, now time.Time) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM sessions WHERE user_id = $1 AND expires_at > $2`,
		userID, timeArg(r.dialect, now),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count active sessions: %w", err)
	}
	return count, nil
}

func (r *SQLSessionRepo) exec(ctx context.Context, msg, query string, args ...any) (int64, error) {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", msg, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ SessionRepository = (*SQLSessionRepo)(nil)
