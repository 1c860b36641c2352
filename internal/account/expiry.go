package account

import (
	"time"

	"cloud.google.com/go/civil"
	"github.com/locauto/locauto/internal/model"
)

// DaysUntil はnowの暦日から期限日までの日数を返す。
// 期限日が今日なら0、明日なら1、過去なら負の値になる。
func DaysUntil(now time.Time, expiry civil.Date) int {
	return expiry.DaysSince(civil.DateOf(now))
}

// IsExpiryAlert はアカウントが期限切れ前日の通知対象かを判定する。
// 期限日があり、凍結されておらず、期限日までがちょうど1日の場合のみ対象。
// 0日（今日）や2日以上先は対象外。
func IsExpiryAlert(a model.Account, now time.Time) bool {
	if a.ExpiryDate == nil || a.Frozen {
		return false
	}
	return DaysUntil(now, *a.ExpiryDate) == 1
}

// ComputeExpiryAlerts は明日アクセス期限を迎えるアカウントを入力順のまま返す。
// 入力を変更しない純粋関数。
func ComputeExpiryAlerts(accounts []model.Account, now time.Time) []model.Account {
	alerts := []model.Account{}
	for _, a := range accounts {
		if IsExpiryAlert(a, now) {
			alerts = append(alerts, a)
		}
	}
	return alerts
}

// IsExpired は期限日が今日より前かを返す。期限日がない場合はfalse。
func IsExpired(a model.Account, now time.Time) bool {
	if a.ExpiryDate == nil {
		return false
	}
	return DaysUntil(now, *a.ExpiryDate) < 0
}
