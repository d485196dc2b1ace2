package model

import "time"

// SheetPayload はスプレッドシートから取得した表データを表す。
// キャッシュとスナップショットの両方にこの形で保存される。
type SheetPayload struct {
	Headers     []string   `json:"headers"`
	Rows        [][]string `json:"rows"`
	TotalRows   int        `json:"totalRows"`
	LastUpdated string     `json:"lastUpdated"`
	SheetID     string     `json:"sheetId"`
}

// SheetSnapshot は最後に取得したシートデータの永続化レコード。
type SheetSnapshot struct {
	ID        string
	SheetID   string
	Data      []byte // SheetPayloadのJSON
	LastSync  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GridProperties はシートの行数・列数。
type GridProperties struct {
	RowCount    int64 `json:"rowCount"`
	ColumnCount int64 `json:"columnCount"`
}

// SheetTab はスプレッドシート内の1シート。
type SheetTab struct {
	Title          string         `json:"title"`
	SheetID        int64          `json:"sheetId"`
	GridProperties GridProperties `json:"gridProperties"`
}

// SheetInfo はスプレッドシートのメタデータを表す。
type SheetInfo struct {
	Title       string     `json:"title"`
	SheetID     string     `json:"sheetId"`
	Sheets      []SheetTab `json:"sheets"`
	LastUpdated string     `json:"lastUpdated"`
}
