// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// アカウント管理サービス、認証サービス、ワーカーから利用する。
type MetricsCollector interface {
	RecordRegistration(outcome string)
	RecordSignIn(result string)
	RecordFrozenChange(frozen bool)
	RecordDeletion()
	RecordEditCommit()
	RecordAccessDenied()
	RecordSessionsCleaned(count int64)
	SetExpiringTomorrow(count int)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	registrations   *prometheus.CounterVec
	signIns         *prometheus.CounterVec
	frozenChanges   *prometheus.CounterVec
	deletions       prometheus.Counter
	editCommits     prometheus.Counter
	accessDenied    prometheus.Counter
	sessionsCleaned prometheus.Counter
	expiringSoon    prometheus.Gauge
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		registrations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locauto_registrations_total",
			Help: "登録結果（created, orphaned_identity, failed_before_write）別のユーザー登録数",
		}, []string{"outcome"}),
		signIns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locauto_signins_total",
			Help: "結果別のログイン試行数",
		}, []string{"result"}),
		frozenChanges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "locauto_frozen_changes_total",
			Help: "凍結・凍結解除の操作数",
		}, []string{"frozen"}),
		deletions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locauto_account_deletions_total",
			Help: "削除されたユーザープロフィールの合計数",
		}),
		editCommits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locauto_edit_commits_total",
			Help: "保存された編集の合計数",
		}),
		accessDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locauto_access_denied_total",
			Help: "管理者以外による管理操作の拒否数",
		}),
		sessionsCleaned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "locauto_sessions_cleaned_total",
			Help: "クリーンアップで削除された期限切れセッションの合計数",
		}),
		expiringSoon: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "locauto_accounts_expiring_tomorrow",
			Help: "明日アクセス期限を迎えるユーザー数",
		}),
	}

	reg.MustRegister(
		c.registrations,
		c.signIns,
		c.frozenChanges,
		c.deletions,
		c.editCommits,
		c.accessDenied,
		c.sessionsCleaned,
		c.expiringSoon,
	)

	return c
}

// RecordRegistration は登録結果を記録する。
func (c *Collector) RecordRegistration(outcome string) {
	c.registrations.WithLabelValues(outcome).Inc()
}

// RecordSignIn はログイン結果を記録する。
func (c *Collector) RecordSignIn(result string) {
	c.signIns.WithLabelValues(result).Inc()
}

// RecordFrozenChange は凍結フラグの変更を記録する。
func (c *Collector) RecordFrozenChange(frozen bool) {
	c.frozenChanges.WithLabelValues(strconv.FormatBool(frozen)).Inc()
}

// RecordDeletion はプロフィール削除を記録する。
func (c *Collector) RecordDeletion() {
	c.deletions.Inc()
}

// RecordEditCommit は編集の保存を記録する。
func (c *Collector) RecordEditCommit() {
	c.editCommits.Inc()
}

// RecordAccessDenied は管理操作の拒否を記録する。
func (c *Collector) RecordAccessDenied() {
	c.accessDenied.Inc()
}

// RecordSessionsCleaned は削除した期限切れセッション数を記録する。
func (c *Collector) RecordSessionsCleaned(count int64) {
	c.sessionsCleaned.Add(float64(count))
}

// SetExpiringTomorrow は明日期限を迎えるユーザー数を設定する。
func (c *Collector) SetExpiringTomorrow(count int) {
	c.expiringSoon.Set(float64(count))
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Noop は何も記録しないMetricsCollector。メトリクスを使わない構成やテストで利用する。
type Noop struct{}

func (Noop) RecordRegistration(string)   {}
func (Noop) RecordSignIn(string)         {}
func (Noop) RecordFrozenChange(bool)     {}
func (Noop) RecordDeletion()             {}
func (Noop) RecordEditCommit()           {}
func (Noop) RecordAccessDenied()         {}
func (Noop) RecordSessionsCleaned(int64) {}
func (Noop) SetExpiringTomorrow(int)     {}
