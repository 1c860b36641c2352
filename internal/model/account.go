// Package model はドメインモデルを定義する。
package model

import (
	"time"

	"cloud.google.com/go/civil"
)

// Account は管理パネルで扱う利用者プロフィール（accountsテーブルの1行）を表す。
// IDはレコードストアが採番し、採番後に再利用・変更されることはない。
type Account struct {
	ID          int64
	DisplayName string
	Email       string
	// ExpiryDate はアクセス期限日。nilは無期限を表す。
	// タイムゾーンや時刻は持たない暦日として扱う。
	ExpiryDate *civil.Date
	Frozen     bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// HasExpiry はアクセス期限日が設定されているかを返す。
func (a *Account) HasExpiry() bool {
	return a.ExpiryDate != nil
}

// AccountChanges は管理者編集で書き換えるプロフィール項目。
// 資格情報（パスワード）は含まない。
type AccountChanges struct {
	DisplayName string
	Email       string
	ExpiryDate  *civil.Date
	Frozen      bool
}

// Credential はIdPが保持する認証情報を表す。
// 平文のパスワードは保持しない。
type Credential struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session はログインセッションを表す。
type Session struct {
	ID           string
	CredentialID string
	Email        string // credentialsから解決する。sessionsテーブルには保存しない
	ExpiresAt    time.Time
	CreatedAt    time.Time
}
