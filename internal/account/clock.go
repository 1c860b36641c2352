package account

import "time"

// Clock は現在時刻の取得元。
type Clock interface {
	Now() time.Time
}

// SystemClock は指定したタイムゾーンで現在時刻を返すClock。
// 期限日の「今日」はこのタイムゾーンの暦日で決まる。
type SystemClock struct {
	Location *time.Location
}

// Now は現在時刻を返す。
func (c SystemClock) Now() time.Time {
	if c.Location == nil {
		return time.Now()
	}
	return time.Now().In(c.Location)
}

// ClockFunc は関数をClockとして扱うアダプタ。
type ClockFunc func() time.Time

// Now はf()を返す。
func (f ClockFunc) Now() time.Time {
	return f()
}
