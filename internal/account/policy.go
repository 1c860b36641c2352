package account

import (
	"github.com/locauto/locauto/internal/identity"
)

// Actor は操作を実行するセッションの主体。
type Actor struct {
	SessionID string
	Email     string
}

// draftKey は編集状態を保持するキーを返す。
func (a Actor) draftKey() string {
	if a.SessionID != "" {
		return a.SessionID
	}
	return "email:" + a.Email
}

// Authorizer は管理パネルの操作を許可するかを判定するポリシー。
type Authorizer interface {
	IsAuthorized(actor Actor) bool
}

// AuthorizerFunc は関数をAuthorizerとして扱うアダプタ。
type AuthorizerFunc func(actor Actor) bool

// IsAuthorized はf(actor)を返す。
func (f AuthorizerFunc) IsAuthorized(actor Actor) bool {
	return f(actor)
}

// SingleAdminPolicy は1件のメールアドレスだけを許可する許可リスト。
// ロールや権限の概念は持たない。
type SingleAdminPolicy struct {
	AdminEmail string
}

// NewSingleAdminPolicy はSingleAdminPolicyを生成する。
func NewSingleAdminPolicy(adminEmail string) SingleAdminPolicy {
	return SingleAdminPolicy{AdminEmail: adminEmail}
}

// IsAuthorized はセッションのメールアドレスが管理者のアドレスと一致する場合にtrueを返す。
func (p SingleAdminPolicy) IsAuthorized(actor Actor) bool {
	if actor.Email == "" || p.AdminEmail == "" {
		return false
	}
	return identity.SameEmail(actor.Email, p.AdminEmail)
}
