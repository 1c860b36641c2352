// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, identity, storage, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidationFailed     = "VALIDATION_FAILED"
	ErrCodePasswordMismatch     = "PASSWORD_MISMATCH"
	ErrCodePasswordTooShort     = "PASSWORD_TOO_SHORT"
	ErrCodeInvalidExpiryDate    = "INVALID_EXPIRY_DATE"
	ErrCodeIdentityProvider     = "IDENTITY_PROVIDER_ERROR"
	ErrCodeRecordStore          = "RECORD_STORE_ERROR"
	ErrCodeAccessDenied         = "ACCESS_DENIED"
	ErrCodeAccountNotFound      = "ACCOUNT_NOT_FOUND"
	ErrCodeConfirmationRequired = "CONFIRMATION_REQUIRED"
	ErrCodeNoEditInProgress     = "NO_EDIT_IN_PROGRESS"
	ErrCodeInvalidCredentials   = "INVALID_CREDENTIALS"
	ErrCodeAccountFrozen        = "ACCOUNT_FROZEN"
	ErrCodeAccountExpired       = "ACCOUNT_EXPIRED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeCSRFInvalid          = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimitExceeded    = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal             = "INTERNAL_ERROR"
	ErrCodeInvalidRequest       = "INVALID_REQUEST"
)

// NewValidationError は入力検証エラーを生成する。
// 外部呼び出しの前に検出され、副作用は発生しない。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeValidationFailed,
		Message:  fmt.Sprintf("入力内容が正しくありません: %s", reason),
		Category: "validation",
		Action:   "必須項目（名前、メールアドレス、パスワード）を入力してください。",
	}
}

// NewPasswordMismatchError はパスワードと確認用パスワードの不一致エラーを生成する。
func NewPasswordMismatchError() *APIError {
	return &APIError{
		Code:     ErrCodePasswordMismatch,
		Message:  "パスワードが一致しません。",
		Category: "validation",
		Action:   "確認用パスワードを同じ値で入力してください。",
	}
}

// NewPasswordTooShortError はパスワード長不足エラーを生成する。
func NewPasswordTooShortError(minLength int) *APIError {
	return &APIError{
		Code:     ErrCodePasswordTooShort,
		Message:  fmt.Sprintf("パスワードは%d文字以上で入力してください。", minLength),
		Category: "validation",
		Action:   "より長いパスワードを指定してください。",
	}
}

// NewInvalidExpiryDateError は期限日の形式エラーを生成する。
func NewInvalidExpiryDateError(value string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidExpiryDate,
		Message:  fmt.Sprintf("無効な期限日です: %s", value),
		Category: "validation",
		Action:   "期限日は YYYY-MM-DD 形式で指定するか、無期限の場合は空にしてください。",
	}
}

// NewIdentityProviderError はIdPが返したメッセージをそのまま保持するエラーを生成する。
func NewIdentityProviderError(providerMessage string) *APIError {
	if providerMessage == "" {
		providerMessage = "ユーザーの登録に失敗しました。"
	}
	return &APIError{
		Code:     ErrCodeIdentityProvider,
		Message:  providerMessage,
		Category: "identity",
		Action:   "メールアドレスとパスワードを確認して再度お試しください。",
	}
}

// NewRecordStoreError はレコードストアの書き込み・読み込み失敗エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewRecordStoreError() *APIError {
	return &APIError{
		Code:     ErrCodeRecordStore,
		Message:  "データベースの処理に失敗しました。",
		Category: "storage",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewOrphanedIdentityError はIdPへの登録後にプロフィール保存が失敗したエラーを生成する。
// IdP側のレコードは残る。
func NewOrphanedIdentityError() *APIError {
	return &APIError{
		Code:     ErrCodeRecordStore,
		Message:  "ユーザーは作成されましたが、データベースへの保存に失敗しました。",
		Category: "storage",
		Action:   "同じメールアドレスでは再登録できません。管理者に連絡してください。",
	}
}

// NewAccessDeniedError は管理パネルへのアクセス拒否エラーを生成する。
func NewAccessDeniedError() *APIError {
	return &APIError{
		Code:     ErrCodeAccessDenied,
		Message:  "このパネルにアクセスする権限がありません。",
		Category: "auth",
		Action:   "管理者アカウントでログインしてください。",
	}
}

// NewAccountNotFoundError は対象アカウントが存在しない場合のエラーを生成する。
func NewAccountNotFoundError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("指定されたユーザーが見つかりません: %d", id),
		Category: "storage",
		Action:   "一覧を再読み込みしてください。",
	}
}

// NewConfirmationRequiredError は削除確認が行われていない場合のエラーを生成する。
func NewConfirmationRequiredError() *APIError {
	return &APIError{
		Code:     ErrCodeConfirmationRequired,
		Message:  "本当にこのユーザーを削除しますか？",
		Category: "validation",
		Action:   "削除を確定する場合は confirm=true を指定してください。",
	}
}

// NewNoEditInProgressError は対象アカウントの編集が開始されていない場合のエラーを生成する。
func NewNoEditInProgressError(id int64) *APIError {
	return &APIError{
		Code:     ErrCodeNoEditInProgress,
		Message:  fmt.Sprintf("ユーザー %d は編集中ではありません。", id),
		Category: "validation",
		Action:   "編集を開始してから保存してください。",
	}
}

// NewInvalidCredentialsError はログイン失敗エラーを生成する。
// IdPのメッセージが空の場合は既定のメッセージを使う。
func NewInvalidCredentialsError(providerMessage string) *APIError {
	if providerMessage == "" {
		providerMessage = "メールアドレスまたはパスワードが正しくありません。"
	}
	return &APIError{
		Code:     ErrCodeInvalidCredentials,
		Message:  providerMessage,
		Category: "auth",
		Action:   "入力内容を確認して再度お試しください。",
	}
}

// NewAccountFrozenError は凍結中アカウントのログイン拒否エラーを生成する。
func NewAccountFrozenError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountFrozen,
		Message:  "このアカウントは凍結されています。",
		Category: "auth",
		Action:   "管理者に連絡してください。",
	}
}

// NewAccountExpiredError はアクセス期限切れアカウントのログイン拒否エラーを生成する。
func NewAccountExpiredError() *APIError {
	return &APIError{
		Code:     ErrCodeAccountExpired,
		Message:  "このアカウントのアクセス期限が切れています。",
		Category: "auth",
		Action:   "管理者に期限の延長を依頼してください。",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewCSRFInvalidError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitExceededError はレート制限超過エラーを生成する。
func NewRateLimitExceededError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "Retry-Afterヘッダーの秒数だけ待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエストボディやパスパラメータの解析失敗エラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストの解析に失敗しました: %s", reason),
		Category: "validation",
		Action:   "正しいJSON形式でリクエストしてください。",
	}
}
