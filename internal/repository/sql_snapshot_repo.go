package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/hitoshi/sheetdash/internal/database"
	"github.com/hitoshi/sheetdash/internal/model"
)

// SQLSheetSnapshotRepo はSQLデータベースを使用したスナップショットリポジトリ。
type SQLSheetSnapshotRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewSQLSheetSnapshotRepo はSQLSheetSnapshotRepoを生成する。
func NewSQLSheetSnapshotRepo(db *sql.DB, dialect database.Dialect) *SQLSheetSnapshotRepo {
	return &SQLSheetSnapshotRepo{db: db, dialect: dialect}
}

// Upsert はsheet_idをキーにスナップショットを作成または更新する。
// PostgreSQLのJSONBとSQLiteのTEXTのどちらにも渡せるよう、dataは文字列としてバインドする。
func (r *SQLSheetSnapshotRepo) Upsert(ctx context.Context, s *model.SheetSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sheet_snapshots (id, sheet_id, data, last_sync, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (sheet_id) DO UPDATE SET
		   data = excluded.data,
		   last_sync = excluded.last_sync,
		   updated_at = excluded.updated_at`,
		s.ID, s.SheetID, string(s.Data),
		timeArg(r.dialect, s.LastSync), timeArg(r.dialect, s.CreatedAt), timeArg(r.dialect, s.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert sheet snapshot: %w", err)
	}
	return nil
}

// FindBySheetID はスナップショットを取得する。見つからない場合はnilを返す。
func (r *SQLSheetSnapshotRepo) FindBySheetID(ctx context.Context, sheetID string) (*model.SheetSnapshot, error) {
	s := &model.SheetSnapshot{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, sheet_id, data, last_sync, created_at, updated_at
		 FROM sheet_snapshots WHERE sheet_id = $1`,
		sheetID,
	).Scan(&s.ID, &s.SheetID, &s.Data,
		scanTime{&s.LastSync}, scanTime{&s.CreatedAt}, scanTime{&s.UpdatedAt})

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find sheet snapshot: %w", err)
	}
	return s, nil
}

// compile-time interface check
var _ SheetSnapshotRepository = (*SQLSheetSnapshotRepo)(nil)
