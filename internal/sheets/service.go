// Package sheets はGoogleスプレッドシートのデータ取得とキャッシュを提供する。
// 取得結果はTTLキャッシュに書き込まれ、スナップショットとしてDBにも保存される。
// スナップショットの保存はベストエフォートで、失敗しても呼び出し元には返さない。
package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/google/uuid"
	"google.golang.org/api/googleapi"

	"github.com/hitoshi/sheetdash/internal/cache"
	"github.com/hitoshi/sheetdash/internal/clock"
	"github.com/hitoshi/sheetdash/internal/metrics"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/repository"
)

// DefaultRange は読み取り範囲の既定値。
const DefaultRange = "A:Z"

// SheetFetchError は外部APIからのシート取得失敗を表す。
// Messageには上流のエラーメッセージをそのまま格納する。
type SheetFetchError struct {
	Message string
	Err     error
}

func (e *SheetFetchError) Error() string {
	return "failed to fetch sheet data: " + e.Message
}

func (e *SheetFetchError) Unwrap() error {
	return e.Err
}

// CacheStats はキャッシュの統計情報とプロセスのヒープ使用量。
type CacheStats struct {
	cache.Stats
	MemoryUsage string `json:"memoryUsage"`
}

// Config はServiceの設定。
type Config struct {
	SheetID  string
	Range    string
	CacheTTL time.Duration
}

// Service はシートデータの取得・キャッシュ・スナップショット保存を行う。
type Service struct {
	client    SpreadsheetClient
	cache     *cache.TTLCache[*model.SheetPayload]
	snapshots repository.SheetSnapshotRepository
	clock     clock.Clock
	metrics   metrics.MetricsCollector
	cfg       Config
}

// NewService は新しいServiceを生成する。
// snapshotsがnilの場合、スナップショットは保存しない。
func NewService(
	client SpreadsheetClient,
	c *cache.TTLCache[*model.SheetPayload],
	snapshots repository.SheetSnapshotRepository,
	clk clock.Clock,
	mc metrics.MetricsCollector,
	cfg Config,
) *Service {
	if cfg.Range == "" {
		cfg.Range = DefaultRange
	}
	return &Service{
		client:    client,
		cache:     c,
		snapshots: snapshots,
		clock:     clk,
		metrics:   metrics.OrNop(mc),
		cfg:       cfg,
	}
}

// CacheKey はシートデータのキャッシュキーを返す。
func (s *Service) CacheKey() string {
	return "sheet_data_" + s.cfg.SheetID
}

// GetData はシートデータを返す。
// forceRefreshがfalseでキャッシュに有効なデータがあれば外部APIを呼ばずにそれを返す。
func (s *Service) GetData(ctx context.Context, accessToken string, forceRefresh bool) (*model.SheetPayload, error) {
	key := s.CacheKey()

	if !forceRefresh {
		if payload, ok := s.cache.Get(key); ok {
			s.metrics.RecordCacheHit()
			return payload, nil
		}
		s.metrics.RecordCacheMiss()
	}

	start := time.Now()
	grid, err := s.client.GetValues(ctx, accessToken, s.cfg.SheetID, s.cfg.Range)
	s.metrics.RecordFetchLatency(time.Since(start))
	if err != nil {
		s.metrics.RecordFetchFailure(failureReason(err))
		slog.Error("シートデータの取得に失敗", "sheetID", s.cfg.SheetID, "error", err)
		return nil, &SheetFetchError{Message: upstreamMessage(err), Err: err}
	}
	s.metrics.RecordFetchSuccess()

	payload := s.buildPayload(grid)
	s.cache.SetWithTTL(key, payload, s.cfg.CacheTTL)

	s.saveSnapshot(context.WithoutCancel(ctx), payload)

	return payload, nil
}

// Refresh はキャッシュを無視してシートデータを再取得する。
func (s *Service) Refresh(ctx context.Context, accessToken string) (*model.SheetPayload, error) {
	return s.GetData(ctx, accessToken, true)
}

// GetInfo はスプレッドシートのタイトルとシート一覧を返す。キャッシュは使用しない。
func (s *Service) GetInfo(ctx context.Context, accessToken string) (*model.SheetInfo, error) {
	sp, err := s.client.GetSpreadsheet(ctx, accessToken, s.cfg.SheetID)
	if err != nil {
		s.metrics.RecordFetchFailure(failureReason(err))
		slog.Error("シート情報の取得に失敗", "sheetID", s.cfg.SheetID, "error", err)
		return nil, &SheetFetchError{Message: upstreamMessage(err), Err: err}
	}

	sheets := sp.Sheets
	if sheets == nil {
		sheets = []model.SheetTab{}
	}
	return &model.SheetInfo{
		Title:       sp.Title,
		SheetID:     s.cfg.SheetID,
		Sheets:      sheets,
		LastUpdated: s.clock.Now().UTC().Format(time.RFC3339),
	}, nil
}

// ClearCache はキャッシュを全て削除する。
func (s *Service) ClearCache() {
	s.cache.Clear()
	slog.Info("シートデータキャッシュをクリア", "sheetID", s.cfg.SheetID)
}

// CacheStats はキャッシュの統計情報を返す。
func (s *Service) CacheStats() CacheStats {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	return CacheStats{
		Stats:       s.cache.Stats(),
		MemoryUsage: fmt.Sprintf("%dMB", m.HeapAlloc/1024/1024),
	}
}

// SweepCache は期限切れのキャッシュエントリを削除し、削除件数を返す。
func (s *Service) SweepCache() int {
	return s.cache.Sweep()
}

// buildPayload は先頭行をヘッダー、残りをデータ行として組み立てる。
func (s *Service) buildPayload(grid [][]string) *model.SheetPayload {
	headers := []string{}
	rows := [][]string{}
	if len(grid) > 0 {
		headers = grid[0]
		rows = append(rows, grid[1:]...)
	}
	return &model.SheetPayload{
		Headers:     headers,
		Rows:        rows,
		TotalRows:   len(rows),
		LastUpdated: s.clock.Now().UTC().Format(time.RFC3339),
		SheetID:     s.cfg.SheetID,
	}
}

func (s *Service) saveSnapshot(ctx context.Context, payload *model.SheetPayload) {
	if s.snapshots == nil {
		return
	}

	data, err := json.Marshal(payload)
	if err != nil {
		s.metrics.RecordSnapshotWriteFailure()
		slog.Warn("スナップショットのシリアライズに失敗", "sheetID", s.cfg.SheetID, "error", err)
		return
	}

	now := s.clock.Now()
	err = s.snapshots.Upsert(ctx, &model.SheetSnapshot{
		ID:        uuid.New().String(),
		SheetID:   s.cfg.SheetID,
		Data:      data,
		LastSync:  now,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		s.metrics.RecordSnapshotWriteFailure()
		slog.Warn("スナップショットの保存に失敗", "sheetID", s.cfg.SheetID, "error", err)
	}
}

func upstreamMessage(err error) string {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) && gerr.Message != "" {
		return gerr.Message
	}
	return err.Error()
}

func failureReason(err error) string {
	var gerr *googleapi.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &gerr):
		return fmt.Sprintf("http_%d", gerr.Code)
	default:
		return "network"
	}
}
