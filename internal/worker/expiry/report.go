// Package expiry は明日アクセス期限を迎えるプロフィールを定期的に報告するジョブを提供する。
package expiry

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"github.com/locauto/locauto/internal/account"
	"github.com/locauto/locauto/internal/metrics"
	"github.com/locauto/locauto/internal/model"
)

// AccountLister は全プロフィールの取得に必要なインターフェース。
// repository.AccountRepository の部分集合。
type AccountLister interface {
	ListAll(ctx context.Context) ([]model.Account, error)
}

// Report は1回の実行結果。
type Report struct {
	Today            civil.Date
	ExpiringTomorrow []model.Account
	ExpiredCount     int
}

// ReportJob は期限通知の対象を集計し、ログとメトリクスに出力する。
// 管理パネルの一覧と同じ判定（明日ちょうど期限、凍結中は除外）を使う。
type ReportJob struct {
	accounts AccountLister
	clock    account.Clock
	metrics  metrics.MetricsCollector
	logger   *slog.Logger
}

// NewReportJob はReportJobを生成する。
func NewReportJob(accounts AccountLister, clock account.Clock, collector metrics.MetricsCollector, logger *slog.Logger) *ReportJob {
	if clock == nil {
		clock = account.SystemClock{}
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &ReportJob{
		accounts: accounts,
		clock:    clock,
		metrics:  collector,
		logger:   logger,
	}
}

// Name はスケジューラのログに使うジョブ名を返す。
func (j *ReportJob) Name() string {
	return "expiry_report"
}

// Run は1回分の集計を行う。
func (j *ReportJob) Run(ctx context.Context) error {
	_, err := j.Collect(ctx)
	return err
}

// Collect は全プロフィールを読み込み、明日期限を迎えるものと期限切れの件数を集計する。
func (j *ReportJob) Collect(ctx context.Context) (Report, error) {
	start := time.Now()

	accounts, err := j.accounts.ListAll(ctx)
	if err != nil {
		j.logger.Error("期限レポートのためのプロフィール取得に失敗しました",
			slog.String("error", err.Error()),
		)
		return Report{}, fmt.Errorf("failed to list accounts: %w", err)
	}

	now := j.clock.Now()
	report := Report{
		Today:            civil.DateOf(now),
		ExpiringTomorrow: account.ComputeExpiryAlerts(accounts, now),
	}
	for _, a := range accounts {
		if account.IsExpired(a, now) {
			report.ExpiredCount++
		}
	}

	j.metrics.SetExpiringTomorrow(len(report.ExpiringTomorrow))

	for _, a := range report.ExpiringTomorrow {
		j.logger.Info("アクセス期限が明日に迫っています",
			slog.Int64("account_id", a.ID),
			slog.String("display_name", a.DisplayName),
			slog.String("email", a.Email),
			slog.String("expiry_date", a.ExpiryDate.String()),
		)
	}

	j.logger.Info("期限レポートジョブが完了しました",
		slog.String("today", report.Today.String()),
		slog.Int("account_count", len(accounts)),
		slog.Int("expiring_tomorrow", len(report.ExpiringTomorrow)),
		slog.Int("expired_count", report.ExpiredCount),
		slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
	)

	return report, nil
}
