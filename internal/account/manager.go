// Package account は管理パネルのユーザーライフサイクル（登録、一覧、期限通知、
// 編集、凍結、削除）を提供する。全ての操作は認可ポリシーを通過した場合のみ実行される。
package account

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-playground/validator/v10"
	"github.com/locauto/locauto/internal/identity"
	"github.com/locauto/locauto/internal/metrics"
	"github.com/locauto/locauto/internal/model"
	"github.com/locauto/locauto/internal/repository"
	"github.com/locauto/locauto/internal/security"
)

// CredentialNotice はパスワード変更が要求された場合に返す案内。
const CredentialNotice = "パスワードは管理パネルから変更できません。利用者自身がパスワード再設定の手続きを行ってください。その他の変更は保存されました。"

// IdentityProvider はユーザー登録で利用するIdPの操作。
type IdentityProvider interface {
	CreateCredential(ctx context.Context, email, password string) (*model.Credential, error)
}

// EditInput は編集保存の入力。
// ExpiryDate は "YYYY-MM-DD" 形式で、空文字列は無期限を表す。
type EditInput struct {
	AccountID   int64
	DisplayName string
	Email       string
	ExpiryDate  string
	Frozen      bool
	NewPassword string
}

// CommitResult は編集保存の結果。
// Notice はパスワード変更が要求されて適用されなかった場合のみ設定される。
type CommitResult struct {
	Account *model.Account
	Notice  string
}

// Manager はユーザーライフサイクルのサービス層。
type Manager struct {
	accounts  repository.AccountRepository
	idp       IdentityProvider
	authz     Authorizer
	clock     Clock
	sanitizer security.TextSanitizerService
	metrics   metrics.MetricsCollector
	validate  *validator.Validate
	edits     *editBook
}

// NewManager はManagerの新しいインスタンスを生成する。
// sanitizer と collector は nil の場合に既定の実装を使う。
func NewManager(
	accounts repository.AccountRepository,
	idp IdentityProvider,
	authz Authorizer,
	clock Clock,
	sanitizer security.TextSanitizerService,
	collector metrics.MetricsCollector,
) *Manager {
	if clock == nil {
		clock = SystemClock{}
	}
	if sanitizer == nil {
		sanitizer = security.NewTextSanitizer()
	}
	if collector == nil {
		collector = metrics.Noop{}
	}
	return &Manager{
		accounts:  accounts,
		idp:       idp,
		authz:     authz,
		clock:     clock,
		sanitizer: sanitizer,
		metrics:   collector,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
		edits:     newEditBook(),
	}
}

// IsAuthorized は操作者が管理パネルを利用できるかを返す。
func (m *Manager) IsAuthorized(actor Actor) bool {
	return m.authz.IsAuthorized(actor)
}

// authorize は認可ポリシーを評価し、拒否された場合はACCESS_DENIEDを返す。
func (m *Manager) authorize(actor Actor, op string) error {
	if m.authz.IsAuthorized(actor) {
		return nil
	}
	m.metrics.RecordAccessDenied()
	slog.Warn("admin operation denied",
		slog.String("operation", op),
		slog.String("email", actor.Email),
	)
	return model.NewAccessDeniedError()
}

// RegisterAccount はIdPに認証情報を作成し、続けてプロフィールを保存する。
// 入力検証とIdPの失敗ではどちらのストアにも書き込まれない。
// プロフィールの保存に失敗した場合、IdPの認証情報は残り OutcomeOrphanedIdentity を返す。
func (m *Manager) RegisterAccount(ctx context.Context, actor Actor, in RegisterInput) (RegistrationResult, error) {
	result := RegistrationResult{Outcome: OutcomeFailedBeforeWrite}
	if err := m.authorize(actor, "register"); err != nil {
		return result, err
	}

	in = in.normalize()
	in.DisplayName = m.sanitizer.SanitizeText(in.DisplayName)
	if err := validateRegisterInput(m.validate, in); err != nil {
		m.metrics.RecordRegistration(result.Outcome.String())
		return result, err
	}

	credential, err := m.idp.CreateCredential(ctx, in.Email, in.Password)
	if err != nil {
		m.metrics.RecordRegistration(result.Outcome.String())
		msg, ok := identity.MessageOf(err)
		if !ok {
			slog.Error("identity provider failure",
				slog.String("email", in.Email),
				slog.String("error", err.Error()),
			)
		}
		return result, model.NewIdentityProviderError(msg)
	}
	result.CredentialID = credential.ID

	// プロフィールのメールアドレスはIdPが正規化した値に揃える
	account := &model.Account{
		DisplayName: in.DisplayName,
		Email:       credential.Email,
		ExpiryDate:  nil,
		Frozen:      false,
	}
	if err := m.accounts.Insert(ctx, account); err != nil {
		result.Outcome = OutcomeOrphanedIdentity
		m.metrics.RecordRegistration(result.Outcome.String())
		slog.Error("profile insert failed after credential creation",
			slog.String("credential_id", credential.ID),
			slog.String("email", in.Email),
			slog.String("error", err.Error()),
		)
		return result, model.NewOrphanedIdentityError()
	}

	result.Outcome = OutcomeCreated
	result.Account = account
	m.metrics.RecordRegistration(result.Outcome.String())
	slog.Info("account registered",
		slog.Int64("account_id", account.ID),
		slog.String("credential_id", credential.ID),
		slog.String("admin", actor.Email),
	)
	return result, nil
}

// ListAccounts は全プロフィールをid昇順で返す。
func (m *Manager) ListAccounts(ctx context.Context, actor Actor) ([]model.Account, error) {
	if err := m.authorize(actor, "list"); err != nil {
		return nil, err
	}
	accounts, err := m.accounts.ListAll(ctx)
	if err != nil {
		slog.Error("failed to list accounts", slog.String("error", err.Error()))
		return nil, model.NewRecordStoreError()
	}
	return accounts, nil
}

// ExpiryAlerts は明日アクセス期限を迎えるプロフィールを返す。
func (m *Manager) ExpiryAlerts(ctx context.Context, actor Actor) ([]model.Account, error) {
	accounts, err := m.ListAccounts(ctx, actor)
	if err != nil {
		return nil, err
	}
	return ComputeExpiryAlerts(accounts, m.clock.Now()), nil
}

// Overview は一覧画面の表示内容。
type Overview struct {
	Accounts []model.Account
	Alerts   []model.Account
	Today    civil.Date
}

// Overview は全プロフィールと期限通知を1回の読み込みでまとめて返す。
func (m *Manager) Overview(ctx context.Context, actor Actor) (Overview, error) {
	accounts, err := m.ListAccounts(ctx, actor)
	if err != nil {
		return Overview{}, err
	}
	now := m.clock.Now()
	return Overview{
		Accounts: accounts,
		Alerts:   ComputeExpiryAlerts(accounts, now),
		Today:    civil.DateOf(now),
	}, nil
}

// Today は期限判定に使う今日の暦日を返す。
func (m *Manager) Today() civil.Date {
	return civil.DateOf(m.clock.Now())
}

// CurrentEdit は操作者の編集状態を返す。
func (m *Manager) CurrentEdit(actor Actor) (EditState, error) {
	if err := m.authorize(actor, "current_edit"); err != nil {
		return nil, err
	}
	return m.edits.get(actor.draftKey()), nil
}

// BeginEdit は指定プロフィールの編集を開始する。
// 既に別のプロフィールを編集中の場合、その下書きは破棄される。
func (m *Manager) BeginEdit(ctx context.Context, actor Actor, id int64) (EditState, error) {
	if err := m.authorize(actor, "begin_edit"); err != nil {
		return nil, err
	}
	account, err := m.accounts.FindByID(ctx, id)
	if err != nil {
		slog.Error("failed to find account", slog.Int64("account_id", id), slog.String("error", err.Error()))
		return nil, model.NewRecordStoreError()
	}
	if account == nil {
		return nil, model.NewAccountNotFoundError(id)
	}

	state := Editing{AccountID: id, Draft: draftFromAccount(account)}
	m.edits.begin(actor.draftKey(), state, m.clock.Now())
	return state, nil
}

// CommitEdit は編集中のプロフィールに表示名、メールアドレス、期限日、凍結フラグを書き込む。
// IdPには触れない。NewPasswordが指定された場合は適用せず、案内をNoticeに設定する。
// ストアの書き込みに失敗した場合は編集状態を維持し、再試行できるようにする。
func (m *Manager) CommitEdit(ctx context.Context, actor Actor, in EditInput) (CommitResult, error) {
	if err := m.authorize(actor, "commit_edit"); err != nil {
		return CommitResult{}, err
	}
	key := actor.draftKey()
	if _, ok := m.edits.editing(key, in.AccountID); !ok {
		return CommitResult{}, model.NewNoEditInProgressError(in.AccountID)
	}

	expiry, err := parseExpiryDate(in.ExpiryDate)
	if err != nil {
		return CommitResult{}, err
	}
	email, err := identity.NormalizeEmail(in.Email)
	if err != nil {
		return CommitResult{}, model.NewValidationError("email")
	}

	changes := model.AccountChanges{
		DisplayName: m.sanitizer.SanitizeText(in.DisplayName),
		Email:       email,
		ExpiryDate:  expiry,
		Frozen:      in.Frozen,
	}
	updated, err := m.accounts.Update(ctx, in.AccountID, changes)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.edits.reset(key)
			return CommitResult{}, model.NewAccountNotFoundError(in.AccountID)
		}
		slog.Error("failed to update account",
			slog.Int64("account_id", in.AccountID),
			slog.String("error", err.Error()),
		)
		return CommitResult{}, model.NewRecordStoreError()
	}

	m.edits.reset(key)
	m.metrics.RecordEditCommit()
	slog.Info("account updated",
		slog.Int64("account_id", updated.ID),
		slog.String("admin", actor.Email),
	)

	result := CommitResult{Account: updated}
	if in.NewPassword != "" {
		result.Notice = CredentialNotice
	}
	return result, nil
}

// CancelEdit は下書きを破棄してViewingに戻る。ストアには書き込まない。
func (m *Manager) CancelEdit(ctx context.Context, actor Actor) error {
	if err := m.authorize(actor, "cancel_edit"); err != nil {
		return err
	}
	m.edits.reset(actor.draftKey())
	return nil
}

// EndSession はセッションの終了時に、そのセッションの下書きを捨てる。
// 認可は確認しない。
func (m *Manager) EndSession(sessionID string) {
	if sessionID == "" {
		return
	}
	m.edits.reset(Actor{SessionID: sessionID}.draftKey())
}

// SetDraftMaxAge は下書きを保持する最長期間を設定する。
// セッションの有効期間と揃えると、期限切れセッションの下書きが残らない。
func (m *Manager) SetDraftMaxAge(d time.Duration) {
	m.edits.setMaxAge(d)
}

// SetFrozen は凍結フラグのみを更新し、更新後のプロフィールを返す。
func (m *Manager) SetFrozen(ctx context.Context, actor Actor, id int64, frozen bool) (*model.Account, error) {
	if err := m.authorize(actor, "set_frozen"); err != nil {
		return nil, err
	}
	updated, err := m.accounts.UpdateFrozen(ctx, id, frozen)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, model.NewAccountNotFoundError(id)
		}
		slog.Error("failed to update frozen flag",
			slog.Int64("account_id", id),
			slog.String("error", err.Error()),
		)
		return nil, model.NewRecordStoreError()
	}

	m.metrics.RecordFrozenChange(frozen)
	slog.Info("account frozen flag changed",
		slog.Int64("account_id", id),
		slog.Bool("frozen", frozen),
		slog.String("admin", actor.Email),
	)
	return updated, nil
}

// DeleteAccount はプロフィールを削除する。confirmed が false の場合は何もせず
// CONFIRMATION_REQUIRED を返す。IdPの認証情報は削除しない。
func (m *Manager) DeleteAccount(ctx context.Context, actor Actor, id int64, confirmed bool) error {
	if err := m.authorize(actor, "delete"); err != nil {
		return err
	}
	if !confirmed {
		return model.NewConfirmationRequiredError()
	}
	if err := m.accounts.DeleteByID(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return model.NewAccountNotFoundError(id)
		}
		slog.Error("failed to delete account",
			slog.Int64("account_id", id),
			slog.String("error", err.Error()),
		)
		return model.NewRecordStoreError()
	}

	m.edits.resetIfEditing(actor.draftKey(), id)
	m.metrics.RecordDeletion()
	slog.Info("account deleted",
		slog.Int64("account_id", id),
		slog.String("admin", actor.Email),
	)
	return nil
}

// parseExpiryDate は "YYYY-MM-DD" を暦日に変換する。空文字列は無期限（nil）。
func parseExpiryDate(value string) (*civil.Date, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	d, err := civil.ParseDate(value)
	if err != nil || !d.IsValid() {
		return nil, model.NewInvalidExpiryDateError(value)
	}
	return &d, nil
}
