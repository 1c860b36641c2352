package account

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/locauto/locauto/internal/identity"
	"github.com/locauto/locauto/internal/model"
	"github.com/locauto/locauto/internal/repository"
)

// memAccountRepo はテスト用のインメモリAccountRepository。
// xxxErr を設定すると該当操作がそのエラーを返す。
type memAccountRepo struct {
	mu     sync.Mutex
	rows   map[int64]model.Account
	nextID int64
	writes int

	listErr   error
	findErr   error
	insertErr error
	updateErr error
	frozenErr error
	deleteErr error
}

func newMemAccountRepo(seed ...model.Account) *memAccountRepo {
	r := &memAccountRepo{rows: make(map[int64]model.Account), nextID: 1}
	for _, a := range seed {
		r.rows[a.ID] = a
		if a.ID >= r.nextID {
			r.nextID = a.ID + 1
		}
	}
	return r
}

// snapshot は全行をid昇順で返す。
func (r *memAccountRepo) snapshot() []model.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.Account, 0, len(r.rows))
	for _, a := range r.rows {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *memAccountRepo) ListAll(ctx context.Context) ([]model.Account, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.snapshot(), nil
}

func (r *memAccountRepo) FindByID(ctx context.Context, id int64) (*model.Account, error) {
	if r.findErr != nil {
		return nil, r.findErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, nil
	}
	return &a, nil
}

// FindByEmail は lower(email) = lower($1) と同じく小文字化した完全一致で探す。
// IDNAの正規化は行わない。
func (r *memAccountRepo) FindByEmail(ctx context.Context, email string) (*model.Account, error) {
	for _, a := range r.snapshot() {
		if strings.ToLower(a.Email) == strings.ToLower(email) {
			return &a, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) Insert(ctx context.Context, account *model.Account) error {
	if r.insertErr != nil {
		return r.insertErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	account.ID = r.nextID
	account.CreatedAt = now
	account.UpdatedAt = now
	r.nextID++
	r.rows[account.ID] = *account
	r.writes++
	return nil
}

func (r *memAccountRepo) Update(ctx context.Context, id int64, changes model.AccountChanges) (*model.Account, error) {
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.DisplayName = changes.DisplayName
	a.Email = changes.Email
	a.ExpiryDate = changes.ExpiryDate
	a.Frozen = changes.Frozen
	r.rows[id] = a
	r.writes++
	return &a, nil
}

func (r *memAccountRepo) UpdateFrozen(ctx context.Context, id int64, frozen bool) (*model.Account, error) {
	if r.frozenErr != nil {
		return nil, r.frozenErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.rows[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	a.Frozen = frozen
	r.rows[id] = a
	r.writes++
	return &a, nil
}

func (r *memAccountRepo) DeleteByID(ctx context.Context, id int64) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.rows[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	r.writes++
	return nil
}

// mockIdentityProvider はテスト用のIdP。
// 登録済みのメールアドレスには "User already registered" を返す。
type mockIdentityProvider struct {
	createFn   func(ctx context.Context, email, password string) (*model.Credential, error)
	registered map[string]bool
	calls      int
}

func newMockIdentityProvider() *mockIdentityProvider {
	return &mockIdentityProvider{registered: make(map[string]bool)}
}

func (m *mockIdentityProvider) CreateCredential(ctx context.Context, email, password string) (*model.Credential, error) {
	m.calls++
	if m.createFn != nil {
		return m.createFn(ctx, email, password)
	}
	normalized, _ := identity.NormalizeEmail(email)
	if m.registered[normalized] {
		return nil, &identity.Error{Message: identity.MsgUserAlreadyRegistered, Err: repository.ErrDuplicateEmail}
	}
	m.registered[normalized] = true
	return &model.Credential{ID: "cred-" + normalized, Email: normalized}, nil
}

var errStoreDown = errors.New("connection refused")

// errorWithMessage はIdPが拒否した場合のエラーを返す。
func errorWithMessage(msg string) error {
	return &identity.Error{Message: msg}
}
