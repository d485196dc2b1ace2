// Package cleanup は期限切れデータの定期削除ジョブを提供する。
// 期限切れのセッション行とキャッシュエントリを削除する。
// 複数インスタンス構成では、キャッシュはプロセスごとに、セッションはworkerで掃除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/sheetdash/internal/metrics"
)

// SessionSweeper は期限切れセッションの削除インターフェース。
type SessionSweeper interface {
	SweepExpiredSessions(ctx context.Context) (int64, error)
}

// CacheSweeper は期限切れキャッシュエントリの削除インターフェース。
type CacheSweeper interface {
	SweepCache() int
}

// CleanupJob は期限切れデータの削除ジョブ。
// sessionsとcacheはどちらもnilを許容し、nilの対象は掃除しない。
type CleanupJob struct {
	sessions SessionSweeper
	cache    CacheSweeper
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewCleanupJob は新しいCleanupJobを生成する。
func NewCleanupJob(sessions SessionSweeper, cache CacheSweeper, mc metrics.MetricsCollector, logger *slog.Logger) *CleanupJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &CleanupJob{
		sessions: sessions,
		cache:    cache,
		metrics:  metrics.OrNop(mc),
		logger:   logger,
	}
}

// Run は期限切れのキャッシュエントリとセッションを1回削除する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	var cacheSwept int
	if j.cache != nil {
		cacheSwept = j.cache.SweepCache()
		j.metrics.RecordCacheEntriesSwept(cacheSwept)
	}

	var sessionsSwept int64
	if j.sessions != nil {
		n, err := j.sessions.SweepExpiredSessions(ctx)
		if err != nil {
			j.logger.Error("期限切れセッションの削除に失敗しました",
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
		}
		sessionsSwept = n
		j.metrics.RecordSessionsSwept(n)
	}

	duration := time.Since(start)
	j.logger.Info("クリーンアップジョブが完了しました",
		slog.Int64("sessions_deleted", sessionsSwept),
		slog.Int("cache_entries_deleted", cacheSwept),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start はinterval間隔でRunを実行する。起動直後に1回実行し、
// コンテキストがキャンセルされるまで継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("クリーンアップジョブを開始しました",
		slog.Duration("interval", interval),
		slog.Bool("sessions", j.sessions != nil),
		slog.Bool("cache", j.cache != nil),
	)

	j.Run(ctx)

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("クリーンアップジョブを停止しました")
			return
		case <-ticker.C:
			j.Run(ctx)
		}
	}
}
