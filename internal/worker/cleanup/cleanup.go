// Package cleanup は期限切れセッションの自動削除ジョブを提供する。
// serveとは別プロセスのworkerから一定間隔で実行する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// SessionPurger は期限切れセッションの削除を抽象化するインターフェース。
// repository.SessionRepositoryが満たす。
type SessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Recorder は削除件数を記録するメトリクスのインターフェース。
type Recorder interface {
	RecordSessionsPurged(count int64)
}

// CleanupJob は期限切れセッションの削除ジョブ。
// 冪等であり、削除対象が無くてもエラーにならない。
type CleanupJob struct {
	sessions SessionPurger
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。recorderはnilでもよい。
func NewCleanupJob(sessions SessionPurger, recorder Recorder, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		sessions: sessions,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
}

// Run は現在時刻以前に失効したセッションを削除する。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	deletedCount, err := j.sessions.DeleteExpired(ctx, j.now())
	if err != nil {
		j.logger.Error("セッションクリーンアップジョブの実行に失敗しました",
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("セッションクリーンアップの実行に失敗: %w", err)
	}

	if j.recorder != nil {
		j.recorder.RecordSessionsPurged(deletedCount)
	}

	duration := time.Since(start)
	j.logger.Info("セッションクリーンアップジョブが完了しました",
		slog.Int64("deleted_count", deletedCount),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は起動直後に1回、その後intervalごとにRunを実行する。
// ctxがキャンセルされるまでブロックする。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	if err := j.Run(ctx); err != nil {
		j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("cleanup job failed", slog.String("error", err.Error()))
			}
		}
	}
}
