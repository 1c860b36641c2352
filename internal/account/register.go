package account

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/locauto/locauto/internal/identity"
	"github.com/locauto/locauto/internal/model"
)

// RegisterInput は新規ユーザー登録の入力。
// PasswordConfirmation は空でなければPasswordと一致する必要がある。
type RegisterInput struct {
	DisplayName          string `validate:"required,max=200"`
	Email                string `validate:"required,max=254"`
	Password             string `validate:"required"`
	PasswordConfirmation string
}

// Outcome は登録処理がどこまで進んだかを表す。
type Outcome int

const (
	// OutcomeFailedBeforeWrite はどのストアにも書き込まれていないことを表す。
	OutcomeFailedBeforeWrite Outcome = iota
	// OutcomeOrphanedIdentity はIdPの認証情報だけが作成され、プロフィールが保存されなかったことを表す。
	OutcomeOrphanedIdentity
	// OutcomeCreated は認証情報とプロフィールの両方が作成されたことを表す。
	OutcomeCreated
)

// String はメトリクスやログで使う名前を返す。
func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeOrphanedIdentity:
		return "orphaned_identity"
	default:
		return "failed_before_write"
	}
}

// RegistrationResult は登録処理の結果。
// エラーが返る場合もOutcomeで書き込み状況を判別できる。
type RegistrationResult struct {
	Outcome      Outcome
	Account      *model.Account // OutcomeCreated の場合のみ
	CredentialID string         // OutcomeFailedBeforeWrite 以外
}

// normalize は前後の空白を除去した入力を返す。パスワードはそのまま扱う。
func (in RegisterInput) normalize() RegisterInput {
	in.DisplayName = strings.TrimSpace(in.DisplayName)
	in.Email = strings.TrimSpace(in.Email)
	return in
}

// validateRegisterInput は外部呼び出しの前に入力を検証する。
func validateRegisterInput(v *validator.Validate, in RegisterInput) error {
	if err := v.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldLabel(fe.Field())+"("+fe.Tag()+")")
			}
			return model.NewValidationError(strings.Join(fields, ", "))
		}
		return model.NewValidationError(err.Error())
	}
	if in.PasswordConfirmation != "" && in.PasswordConfirmation != in.Password {
		return model.NewPasswordMismatchError()
	}
	if len([]rune(in.Password)) < identity.MinPasswordLength {
		return model.NewPasswordTooShortError(identity.MinPasswordLength)
	}
	return nil
}

func fieldLabel(field string) string {
	switch field {
	case "DisplayName":
		return "名前"
	case "Email":
		return "メールアドレス"
	case "Password":
		return "パスワード"
	}
	return field
}
