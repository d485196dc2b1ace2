package sheets

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/hitoshi/sheetdash/internal/model"
)

// SpreadsheetClient はスプレッドシートの外部APIクライアントのインターフェース。
// アクセストークンは呼び出しごとにユーザーのものを渡す。
type SpreadsheetClient interface {
	// GetValues は指定範囲のセル値を文字列の2次元配列で返す。
	GetValues(ctx context.Context, accessToken, spreadsheetID, readRange string) ([][]string, error)
	// GetSpreadsheet はスプレッドシートのタイトルとシート一覧を返す。
	GetSpreadsheet(ctx context.Context, accessToken, spreadsheetID string) (*Spreadsheet, error)
}

// Spreadsheet はスプレッドシートのメタデータ。
type Spreadsheet struct {
	Title  string
	Sheets []model.SheetTab
}

// GoogleClientConfig はGoogleClientの設定。
type GoogleClientConfig struct {
	// nilの場合はhttp.DefaultTransportを使用する
	HTTPClient *http.Client
	// 1回のAPI呼び出しのタイムアウト
	Timeout time.Duration
	// テスト用にオーバーライド可能なAPIエンドポイント
	Endpoint string
}

// GoogleClient はGoogle Sheets API v4を使用したSpreadsheetClient実装。
type GoogleClient struct {
	base     *http.Client
	timeout  time.Duration
	endpoint string
}

// NewGoogleClient はGoogleClientを生成する。
func NewGoogleClient(cfg GoogleClientConfig) *GoogleClient {
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &GoogleClient{
		base:     cfg.HTTPClient,
		timeout:  cfg.Timeout,
		endpoint: cfg.Endpoint,
	}
}

func (c *GoogleClient) service(ctx context.Context, accessToken string) (*sheetsapi.Service, error) {
	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	hc := oauth2.NewClient(context.WithValue(ctx, oauth2.HTTPClient, c.base), src)
	hc.Timeout = c.timeout

	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := sheetsapi.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheets service: %w", err)
	}
	return svc, nil
}

// GetValues は values.get を呼び出し、セル値を文字列化して返す。
func (c *GoogleClient) GetValues(ctx context.Context, accessToken, spreadsheetID, readRange string) ([][]string, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Values.Get(spreadsheetID, readRange).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("values.get failed: %w", err)
	}

	grid := make([][]string, 0, len(resp.Values))
	for _, row := range resp.Values {
		cells := make([]string, len(row))
		for i, cell := range row {
			cells[i] = cellString(cell)
		}
		grid = append(grid, cells)
	}
	return grid, nil
}

// GetSpreadsheet は spreadsheets.get を呼び出し、タイトルとシート一覧を返す。
func (c *GoogleClient) GetSpreadsheet(ctx context.Context, accessToken, spreadsheetID string) (*Spreadsheet, error) {
	svc, err := c.service(ctx, accessToken)
	if err != nil {
		return nil, err
	}

	resp, err := svc.Spreadsheets.Get(spreadsheetID).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("spreadsheets.get failed: %w", err)
	}

	out := &Spreadsheet{Sheets: make([]model.SheetTab, 0, len(resp.Sheets))}
	if resp.Properties != nil {
		out.Title = resp.Properties.Title
	}
	for _, sh := range resp.Sheets {
		if sh.Properties == nil {
			continue
		}
		tab := model.SheetTab{
			Title:   sh.Properties.Title,
			SheetID: sh.Properties.SheetId,
		}
		if gp := sh.Properties.GridProperties; gp != nil {
			tab.GridProperties = model.GridProperties{
				RowCount:    gp.RowCount,
				ColumnCount: gp.ColumnCount,
			}
		}
		out.Sheets = append(out.Sheets, tab)
	}
	return out, nil
}

func cellString(v interface{}) string {
	switch c := v.(type) {
	case nil:
		return ""
	case string:
		return c
	default:
		return fmt.Sprint(c)
	}
}

// compile-time interface check
var _ SpreadsheetClient = (*GoogleClient)(nil)
