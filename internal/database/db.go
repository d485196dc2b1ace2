// Package database はデータベース接続とマイグレーション管理を提供する。
// 本番はPostgreSQL、単一ノード運用や開発ではSQLiteを使用する。
package database

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// Dialect はSQL方言を表す。
type Dialect string

const (
	// Postgres はPostgreSQL（lib/pq）を表す。
	Postgres Dialect = "postgres"
	// SQLite はSQLite（modernc.org/sqlite）を表す。
	SQLite Dialect = "sqlite"
)

const sqliteScheme = "sqlite://"

// ParseURL はDATABASE_URLからSQL方言とドライバ用DSNを判定する。
// postgres:// と postgresql:// はPostgreSQL、sqlite:// はSQLiteのファイルパスとして扱う。
func ParseURL(databaseURL string) (Dialect, string, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return Postgres, databaseURL, nil
	case strings.HasPrefix(databaseURL, sqliteScheme):
		path := strings.TrimPrefix(databaseURL, sqliteScheme)
		if path == "" {
			return "", "", fmt.Errorf("sqlite database path is empty")
		}
		return SQLite, sqliteDSN(path), nil
	default:
		return "", "", fmt.Errorf("unsupported database url scheme: %q", schemeOf(databaseURL))
	}
}

// Open はDATABASE_URLに応じたデータベース接続を開く。
//
// PostgreSQLの場合、sql.Openは接続を試行しないため、実際の接続確認にはdb.Ping()を使用すること。
// スキーマは migrate サブコマンドで適用する。
//
// SQLiteの場合は接続確認とgooseによるマイグレーション適用まで行う。
// 書き込みの直列化のため接続数は1に制限する。
func Open(databaseURL string) (*sql.DB, Dialect, error) {
	dialect, dsn, err := ParseURL(databaseURL)
	if err != nil {
		return nil, "", err
	}

	switch dialect {
	case Postgres:
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(20)
		db.SetConnMaxIdleTime(5 * time.Minute)
		return db, Postgres, nil

	default:
		db, err := sql.Open("sqlite", dsn)
		if err != nil {
			return nil, "", fmt.Errorf("failed to open database: %w", err)
		}
		db.SetMaxOpenConns(1)

		if err := db.Ping(); err != nil {
			db.Close()
			return nil, "", fmt.Errorf("failed to ping sqlite database: %w", err)
		}
		if err := migrateSQLite(db); err != nil {
			db.Close()
			return nil, "", err
		}
		return db, SQLite, nil
	}
}

func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
}

func schemeOf(databaseURL string) string {
	if i := strings.Index(databaseURL, "://"); i >= 0 {
		return databaseURL[:i]
	}
	return ""
}
