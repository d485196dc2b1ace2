// Package testutil はパッケージ横断のテストヘルパーを提供する。
package testutil

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/hitoshi/sheetdash/internal/database"
)

// OpenTestDB は一時ディレクトリにマイグレーション適用済みのSQLiteデータベースを作成する。
// テスト終了時に自動でクローズされる。
func OpenTestDB(t *testing.T) (*sql.DB, database.Dialect) {
	t.Helper()

	db, dialect, err := database.Open("sqlite://" + filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("テスト用データベースの作成に失敗: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	return db, dialect
}
