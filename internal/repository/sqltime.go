package repository

import (
	"fmt"
	"time"

	"github.com/hitoshi/sheetdash/internal/database"
)

// sqliteTimeLayout は固定幅のUTC表記。文字列比較が時刻順と一致する。
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z"

// timeArg は方言に応じたクエリパラメータ表現に時刻を変換する。
func timeArg(d database.Dialect, t time.Time) any {
	if d == database.SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t
}

// scanTime はtime.Time・文字列のどちらで返る時刻カラムも読み取るsql.Scanner。
type scanTime struct {
	dest *time.Time
}

func (s scanTime) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		*s.dest = v
		return nil
	case string:
		return s.parse(v)
	case []byte:
		return s.parse(string(v))
	case nil:
		*s.dest = time.Time{}
		return nil
	default:
		return fmt.Errorf("unsupported time column type %T", src)
	}
}

func (s scanTime) parse(v string) error {
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, v); err == nil {
			*s.dest = t
			return nil
		}
	}
	return fmt.Errorf("failed to parse time column %q", v)
}
