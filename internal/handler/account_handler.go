package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"cloud.google.com/go/civil"
	"github.com/go-chi/chi/v5"
	"github.com/locauto/locauto/internal/account"
	"github.com/locauto/locauto/internal/middleware"
	"github.com/locauto/locauto/internal/model"
)

// accessLabelUnlimited は期限日が設定されていないプロフィールの表示ラベル。
const accessLabelUnlimited = "unlimited"

// AccountServiceInterface は管理パネルのハンドラーが必要とするサービスインターフェース。
// account.Manager が実装する。
type AccountServiceInterface interface {
	RegisterAccount(ctx context.Context, actor account.Actor, in account.RegisterInput) (account.RegistrationResult, error)
	Overview(ctx context.Context, actor account.Actor) (account.Overview, error)
	ExpiryAlerts(ctx context.Context, actor account.Actor) ([]model.Account, error)
	CurrentEdit(actor account.Actor) (account.EditState, error)
	BeginEdit(ctx context.Context, actor account.Actor, id int64) (account.EditState, error)
	CommitEdit(ctx context.Context, actor account.Actor, in account.EditInput) (account.CommitResult, error)
	CancelEdit(ctx context.Context, actor account.Actor) error
	SetFrozen(ctx context.Context, actor account.Actor, id int64, frozen bool) (*model.Account, error)
	DeleteAccount(ctx context.Context, actor account.Actor, id int64, confirmed bool) error
}

// AccountHandler は管理パネルのユーザーライフサイクルのHTTPハンドラー。
type AccountHandler struct {
	service AccountServiceInterface
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface) *AccountHandler {
	return &AccountHandler{service: service}
}

// --- リクエスト / レスポンス ---

type registerAccountRequest struct {
	DisplayName          string `json:"display_name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type setFrozenRequest struct {
	Frozen *bool `json:"frozen"`
}

type deleteAccountRequest struct {
	Confirm bool `json:"confirm"`
}

type commitEditRequest struct {
	AccountID   int64  `json:"account_id"`
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	ExpiryDate  string `json:"expiry_date"`
	Frozen      bool   `json:"frozen"`
	NewPassword string `json:"new_password"`
}

// accountResponse はプロフィール1件のAPIレスポンス。
type accountResponse struct {
	ID          int64     `json:"id"`
	DisplayName string    `json:"display_name"`
	Email       string    `json:"email"`
	ExpiryDate  *string   `json:"expiry_date"`
	AccessLabel string    `json:"access_label"`
	Frozen      bool      `json:"frozen"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type accountListResponse struct {
	Accounts []accountResponse `json:"accounts"`
	Alerts   []accountResponse `json:"alerts"`
	Today    string            `json:"today"`
}

type alertsResponse struct {
	Alerts []accountResponse `json:"alerts"`
}

type registerAccountResponse struct {
	Outcome  string            `json:"outcome"`
	Account  accountResponse   `json:"account"`
	Accounts []accountResponse `json:"accounts,omitempty"`
}

// registerErrorResponse は登録失敗時のレスポンス。
// outcome でIdPに認証情報が残ったかどうかを判別できる。
type registerErrorResponse struct {
	middleware.ErrorResponseBody
	Outcome string `json:"outcome"`
}

type draftResponse struct {
	DisplayName string `json:"display_name"`
	Email       string `json:"email"`
	ExpiryDate  string `json:"expiry_date"`
	Frozen      bool   `json:"frozen"`
}

type editStateResponse struct {
	State     string         `json:"state"`
	AccountID *int64         `json:"account_id,omitempty"`
	Draft     *draftResponse `json:"draft,omitempty"`
}

type commitEditResponse struct {
	Account accountResponse `json:"account"`
	Notice  string          `json:"notice,omitempty"`
}

// --- ハンドラー ---

// ListAccounts は全プロフィールと明日期限を迎えるプロフィールを返す。
// GET /api/admin/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	ov, err := h.service.Overview(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountListResponse{
		Accounts: toAccountResponses(ov.Accounts),
		Alerts:   toAccountResponses(ov.Alerts),
		Today:    ov.Today.String(),
	})
}

// RegisterAccount は新しいユーザーを登録する。
// POST /api/admin/accounts
func (h *AccountHandler) RegisterAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req registerAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}

	result, err := h.service.RegisterAccount(r.Context(), actor, account.RegisterInput{
		DisplayName:          req.DisplayName,
		Email:                req.Email,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		var apiErr *model.APIError
		if !errors.As(err, &apiErr) {
			handleServiceError(w, err)
			return
		}
		writeJSON(w, mapAPIErrorToHTTPStatus(apiErr), registerErrorResponse{
			ErrorResponseBody: middleware.NewErrorResponseBody(apiErr),
			Outcome:           result.Outcome.String(),
		})
		return
	}

	resp := registerAccountResponse{
		Outcome: result.Outcome.String(),
		Account: toAccountResponse(*result.Account),
	}
	// 登録後の一覧再読み込み。失敗しても登録自体は成功している。
	if ov, err := h.service.Overview(r.Context(), actor); err == nil {
		resp.Accounts = toAccountResponses(ov.Accounts)
	} else {
		slog.Warn("failed to refresh account list after registration", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusCreated, resp)
}

// ExpiryAlerts は明日アクセス期限を迎えるプロフィールを返す。
// GET /api/admin/accounts/alerts
func (h *AccountHandler) ExpiryAlerts(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	alerts, err := h.service.ExpiryAlerts(r.Context(), actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, alertsResponse{Alerts: toAccountResponses(alerts)})
}

// SetFrozen は凍結フラグを切り替える。
// PUT /api/admin/accounts/{id}/frozen
func (h *AccountHandler) SetFrozen(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	var req setFrozenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}
	if req.Frozen == nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("frozen は必須です"))
		return
	}

	updated, err := h.service.SetFrozen(r.Context(), actor, id, *req.Frozen)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(*updated))
}

// DeleteAccount はプロフィールを削除する。
// 確認には {"confirm": true} または ?confirm=true を指定する。
// DELETE /api/admin/accounts/{id}
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	var req deleteAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}
	confirmed := req.Confirm
	if q := r.URL.Query().Get("confirm"); q != "" {
		if v, err := strconv.ParseBool(q); err == nil && v {
			confirmed = true
		}
	}

	if err := h.service.DeleteAccount(r.Context(), actor, id, confirmed); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// BeginEdit は指定プロフィールの編集を開始する。
// POST /api/admin/accounts/{id}/edit
func (h *AccountHandler) BeginEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}
	id, ok := accountIDParam(w, r)
	if !ok {
		return
	}

	state, err := h.service.BeginEdit(r.Context(), actor, id)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEditStateResponse(state))
}

// CurrentEdit は操作者の編集状態を返す。
// GET /api/admin/edit
func (h *AccountHandler) CurrentEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	state, err := h.service.CurrentEdit(actor)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toEditStateResponse(state))
}

// CommitEdit は編集内容を保存する。
// PUT /api/admin/edit
func (h *AccountHandler) CommitEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	var req commitEditRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("JSONの形式が正しくありません"))
		return
	}

	result, err := h.service.CommitEdit(r.Context(), actor, account.EditInput{
		AccountID:   req.AccountID,
		DisplayName: req.DisplayName,
		Email:       req.Email,
		ExpiryDate:  req.ExpiryDate,
		Frozen:      req.Frozen,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, commitEditResponse{
		Account: toAccountResponse(*result.Account),
		Notice:  result.Notice,
	})
}

// CancelEdit は下書きを破棄する。
// DELETE /api/admin/edit
func (h *AccountHandler) CancelEdit(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromRequest(w, r)
	if !ok {
		return
	}

	if err := h.service.CancelEdit(r.Context(), actor); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// actorFromRequest はセッションから操作者を組み立てる。
// セッションが無い場合は401を書き込みfalseを返す。
func actorFromRequest(w http.ResponseWriter, r *http.Request) (account.Actor, bool) {
	session, err := middleware.SessionFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, http.StatusUnauthorized, model.NewUnauthorizedError())
		return account.Actor{}, false
	}
	return account.Actor{SessionID: session.ID, Email: session.Email}, true
}

// accountIDParam はURLパスの {id} を解析する。
func accountIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("ユーザーIDが正しくありません: "+raw))
		return 0, false
	}
	return id, true
}

// toAccountResponse はmodel.AccountからAPIレスポンスに変換する。
func toAccountResponse(a model.Account) accountResponse {
	resp := accountResponse{
		ID:          a.ID,
		DisplayName: a.DisplayName,
		Email:       a.Email,
		AccessLabel: accessLabel(a.ExpiryDate),
		Frozen:      a.Frozen,
		CreatedAt:   a.CreatedAt,
		UpdatedAt:   a.UpdatedAt,
	}
	if a.ExpiryDate != nil {
		s := a.ExpiryDate.String()
		resp.ExpiryDate = &s
	}
	return resp
}

func toAccountResponses(accounts []model.Account) []accountResponse {
	out := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, toAccountResponse(a))
	}
	return out
}

// accessLabel は一覧に表示するアクセス期限のラベルを返す。
func accessLabel(expiry *civil.Date) string {
	if expiry == nil {
		return accessLabelUnlimited
	}
	return expiry.String()
}

func toEditStateResponse(state account.EditState) editStateResponse {
	editing, ok := state.(account.Editing)
	if !ok {
		return editStateResponse{State: "viewing"}
	}
	id := editing.AccountID
	return editStateResponse{
		State:     "editing",
		AccountID: &id,
		Draft: &draftResponse{
			DisplayName: editing.Draft.DisplayName,
			Email:       editing.Draft.Email,
			ExpiryDate:  editing.Draft.ExpiryDate,
			Frozen:      editing.Draft.Frozen,
		},
	}
}
