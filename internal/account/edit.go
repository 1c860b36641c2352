package account

import (
	"sync"
	"time"

	"github.com/locauto/locauto/internal/model"
)

// Draft は編集中アカウントの可変項目。
// ExpiryDateは "YYYY-MM-DD" 形式で、空文字列は無期限を表す。
type Draft struct {
	DisplayName string
	Email       string
	ExpiryDate  string
	Frozen      bool
}

// EditState は管理者セッションごとの編集状態。
// Viewing または Editing のいずれか。
type EditState interface {
	isEditState()
}

// Viewing は編集中のアカウントがない状態。
type Viewing struct{}

// Editing は1件のアカウントを編集中の状態。
type Editing struct {
	AccountID int64
	Draft     Draft
}

func (Viewing) isEditState() {}
func (Editing) isEditState() {}

// draftFromAccount はアカウントの現在値から編集用の下書きを作る。
func draftFromAccount(a *model.Account) Draft {
	d := Draft{
		DisplayName: a.DisplayName,
		Email:       a.Email,
		Frozen:      a.Frozen,
	}
	if a.ExpiryDate != nil {
		d.ExpiryDate = a.ExpiryDate.String()
	}
	return d
}

// DefaultDraftMaxAge は下書きを保持する既定の最長期間。
const DefaultDraftMaxAge = 24 * time.Hour

// editBook はセッションごとの編集状態を保持する。
// 1セッションにつき編集中のアカウントは高々1件。
// maxAge を過ぎた下書きは次の begin で捨てられる。
type editBook struct {
	mu     sync.Mutex
	states map[string]draftEntry
	maxAge time.Duration
}

type draftEntry struct {
	Editing
	begunAt time.Time
}

func newEditBook() *editBook {
	return &editBook{states: make(map[string]draftEntry), maxAge: DefaultDraftMaxAge}
}

// get は現在の編集状態を返す。
func (b *editBook) get(key string) EditState {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.states[key]; ok {
		return e.Editing
	}
	return Viewing{}
}

// begin は編集を開始する。既存の下書きは破棄される。
func (b *editBook) begin(key string, e Editing, now time.Time) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pruneLocked(now)
	b.states[key] = draftEntry{Editing: e, begunAt: now}
}

// pruneLocked は maxAge より前に始まった下書きを捨てる。呼び出し側がmuを保持する。
func (b *editBook) pruneLocked(now time.Time) {
	if b.maxAge <= 0 {
		return
	}
	cutoff := now.Add(-b.maxAge)
	for key, e := range b.states {
		if e.begunAt.Before(cutoff) {
			delete(b.states, key)
		}
	}
}

// setMaxAge は下書きの最長保持期間を変更する。
func (b *editBook) setMaxAge(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.maxAge = d
}

// editing は指定アカウントを編集中であればその状態を返す。
func (b *editBook) editing(key string, accountID int64) (Editing, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.states[key]
	if !ok || e.AccountID != accountID {
		return Editing{}, false
	}
	return e.Editing, true
}

// reset は編集状態をViewingに戻す。
func (b *editBook) reset(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.states, key)
}

// resetIfEditing は指定アカウントを編集中の場合のみViewingに戻す。
func (b *editBook) resetIfEditing(key string, accountID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.states[key]; ok && e.AccountID == accountID {
		delete(b.states, key)
	}
}
