// Package worker はバックグラウンドジョブの定期実行を提供する。
package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job は定期実行されるジョブ。
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// entry はジョブと実行間隔の組。
type entry struct {
	job      Job
	interval time.Duration
}

// Scheduler は登録されたジョブをそれぞれの間隔で実行する。
// 各ジョブは専用のgoroutineで動き、起動直後に1回実行される。
type Scheduler struct {
	logger  *slog.Logger
	entries []entry
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
func NewScheduler(logger *slog.Logger) *Scheduler {
	return &Scheduler{logger: logger}
}

// Add はジョブを登録する。intervalが0以下のジョブは登録しない。
func (s *Scheduler) Add(job Job, interval time.Duration) {
	if interval <= 0 {
		s.logger.Warn("ジョブの実行間隔が不正なため登録しません",
			slog.String("job", job.Name()),
			slog.Duration("interval", interval),
		)
		return
	}
	s.entries = append(s.entries, entry{job: job, interval: interval})
}

// Start は全ジョブを起動し、コンテキストがキャンセルされるまでブロックする。
func (s *Scheduler) Start(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	wg.Wait()
	s.logger.Info("スケジューラを停止しました")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	s.logger.Info("ジョブを開始しました",
		slog.String("job", e.job.Name()),
		slog.Duration("interval", e.interval),
	)

	// 起動直後に1回実行
	s.runOnce(ctx, e.job)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runOnce(ctx, e.job)
		}
	}
}

// runOnce はジョブを1回実行する。失敗はログに記録し、次回の実行を妨げない。
func (s *Scheduler) runOnce(ctx context.Context, job Job) {
	if ctx.Err() != nil {
		return
	}
	if err := job.Run(ctx); err != nil {
		s.logger.Error("ジョブの実行に失敗しました",
			slog.String("job", job.Name()),
			slog.String("error", err.Error()),
		)
	}
}
