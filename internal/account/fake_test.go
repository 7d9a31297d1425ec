package account

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/starter/internal/model"
	"github.com/hitoshi/starter/internal/repository"
)

// --- インメモリのリポジトリ ---
// PostgreSQLの制約（email一意・空文字禁止・(user, account)一意・外部キー）を再現する。

type memStore struct {
	users       []model.User
	accounts    []model.Account
	memberships []model.Membership
	clock       time.Time

	// 障害注入
	failAccountCreate    bool
	failMembershipCreate bool
	infraErr             error

	// beforeUserCreate は同時サインインの先発トランザクションを再現する
	beforeUserCreate func()

	// inTx はfakeTx.WithinTxの実行中にtrueになる
	inTx                 bool
	ownerChecksOutsideTx int
}

func newMemStore() *memStore {
	return &memStore{clock: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

type snapshot struct {
	users       []model.User
	accounts    []model.Account
	memberships []model.Membership
}

func (s *memStore) snapshot() snapshot {
	return snapshot{
		users:       append([]model.User(nil), s.users...),
		accounts:    append([]model.Account(nil), s.accounts...),
		memberships: append([]model.Membership(nil), s.memberships...),
	}
}

func (s *memStore) restore(snap snapshot) {
	s.users = snap.users
	s.accounts = snap.accounts
	s.memberships = snap.memberships
}

// fakeTx はエラー時にストアをスナップショットへ戻すTxManager。
type fakeTx struct {
	store     *memStore
	commits   int
	rollbacks int
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error {
	snap := f.store.snapshot()
	f.store.inTx = true
	defer func() { f.store.inTx = false }()
	if err := fn(ctx, nil); err != nil {
		f.store.restore(snap)
		f.rollbacks++
		return err
	}
	f.commits++
	return nil
}

type memUserRepo struct{ s *memStore }

func (r *memUserRepo) Create(_ context.Context, email string) (*model.User, error) {
	if r.s.infraErr != nil {
		return nil, r.s.infraErr
	}
	if email == "" {
		return nil, repository.ErrConflict
	}
	if r.s.beforeUserCreate != nil {
		r.s.beforeUserCreate()
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return nil, repository.ErrEmailTaken
		}
	}
	u := model.User{ID: uuid.NewString(), Email: email, CreatedAt: r.s.tick()}
	r.s.users = append(r.s.users, u)
	return &u, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*model.User, error) {
	if r.s.infraErr != nil {
		return nil, r.s.infraErr
	}
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*model.User, error) {
	for _, u := range r.s.users {
		if u.ID == id {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) ListForAccount(_ context.Context, accountID string) ([]model.User, error) {
	users := []model.User{}
	for _, m := range r.s.memberships {
		if m.AccountID != accountID {
			continue
		}
		for _, u := range r.s.users {
			if u.ID == m.UserID {
				users = append(users, u)
			}
		}
	}
	return users, nil
}

func (r *memUserRepo) WithTx(repository.Querier) repository.UserRepository { return r }

type memAccountRepo struct{ s *memStore }

func (r *memAccountRepo) Create(_ context.Context, name string) (*model.Account, error) {
	if r.s.failAccountCreate || name == "" {
		return nil, nil
	}
	a := model.Account{ID: uuid.NewString(), Name: name, CreatedAt: r.s.tick()}
	r.s.accounts = append(r.s.accounts, a)
	return &a, nil
}

func (r *memAccountRepo) find(id string) (model.Account, bool) {
	for _, a := range r.s.accounts {
		if a.ID == id {
			return a, true
		}
	}
	return model.Account{}, false
}

func (r *memAccountRepo) ListForUser(_ context.Context, userID string) ([]model.AccountMembership, error) {
	result := []model.AccountMembership{}
	for _, m := range r.s.memberships {
		if m.UserID != userID {
			continue
		}
		if a, ok := r.find(m.AccountID); ok {
			result = append(result, model.AccountMembership{Account: a, Owner: m.Owner})
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].Owner != result[j].Owner {
			return result[i].Owner
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

func (r *memAccountRepo) FindForUser(_ context.Context, accountID, userID string) (*model.AccountMembership, error) {
	for _, m := range r.s.memberships {
		if m.AccountID == accountID && m.UserID == userID {
			a, _ := r.find(accountID)
			return &model.AccountMembership{Account: a, Owner: m.Owner}, nil
		}
	}
	return nil, nil
}

func (r *memAccountRepo) FindForOwner(ctx context.Context, accountID, userID string) (*model.Account, error) {
	if !r.s.inTx {
		r.s.ownerChecksOutsideTx++
	}
	am, _ := r.FindForUser(ctx, accountID, userID)
	if am == nil || !am.Owner {
		return nil, nil
	}
	return &am.Account, nil
}

func (r *memAccountRepo) WithTx(repository.Querier) repository.AccountRepository { return r }

type memMembershipRepo struct{ s *memStore }

func (r *memMembershipRepo) Create(_ context.Context, accountID, userID string, owner bool) (*model.Membership, error) {
	if r.s.failMembershipCreate {
		return nil, nil
	}
	for _, m := range r.s.memberships {
		if m.AccountID == accountID && m.UserID == userID {
			return nil, nil
		}
	}
	if !r.exists(accountID, userID) {
		return nil, nil
	}
	m := model.Membership{
		ID:        uuid.NewString(),
		AccountID: accountID,
		UserID:    userID,
		Owner:     owner,
		CreatedAt: r.s.tick(),
	}
	r.s.memberships = append(r.s.memberships, m)
	return &m, nil
}

func (r *memMembershipRepo) exists(accountID, userID string) bool {
	accountFound, userFound := false, false
	for _, a := range r.s.accounts {
		accountFound = accountFound || a.ID == accountID
	}
	for _, u := range r.s.users {
		userFound = userFound || u.ID == userID
	}
	return accountFound && userFound
}

func (r *memMembershipRepo) Delete(_ context.Context, accountID, userID string) (bool, error) {
	if r.s.infraErr != nil {
		return false, r.s.infraErr
	}
	kept := make([]model.Membership, 0, len(r.s.memberships))
	removed := false
	for _, m := range r.s.memberships {
		if m.AccountID == accountID && m.UserID == userID {
			removed = true
			continue
		}
		kept = append(kept, m)
	}
	r.s.memberships = kept
	return removed, nil
}

func (r *memMembershipRepo) WithTx(repository.Querier) repository.MembershipRepository { return r }

type fixedNames struct{ name string }

func (f fixedNames) Next() string { return f.name }

type countingRecorder struct {
	users, accounts, added, removed int
	rejected                        []string
}

func (c *countingRecorder) RecordUserCreated()       { c.users++ }
func (c *countingRecorder) RecordAccountCreated()    { c.accounts++ }
func (c *countingRecorder) RecordMembershipAdded()   { c.added++ }
func (c *countingRecorder) RecordMembershipRemoved() { c.removed++ }
func (c *countingRecorder) RecordRejected(op string) { c.rejected = append(c.rejected, op) }

type fixture struct {
	store   *memStore
	tx      *fakeTx
	metrics *countingRecorder
	svc     *Service
}

func newFixture() *fixture {
	store := newMemStore()
	tx := &fakeTx{store: store}
	rec := &countingRecorder{}
	svc := NewService(tx,
		&memUserRepo{s: store},
		&memAccountRepo{s: store},
		&memMembershipRepo{s: store},
		fixedNames{name: "some account name"},
		rec,
	)
	return &fixture{store: store, tx: tx, metrics: rec, svc: svc}
}

// seedAccount はオーナー付きのアカウントを直接ストアに作る。
func (f *fixture) seedAccount(name, ownerEmail string) (model.Account, model.User) {
	owner := f.seedUser(ownerEmail)
	a := model.Account{ID: uuid.NewString(), Name: name, CreatedAt: f.store.tick()}
	f.store.accounts = append(f.store.accounts, a)
	f.seedMembership(a.ID, owner.ID, true)
	return a, owner
}

// seedAccountOwnedBy は既存ユーザーをオーナーとするアカウントを作る。
func (f *fixture) seedAccountOwnedBy(name string, owner model.User) (model.Account, model.User) {
	a := model.Account{ID: uuid.NewString(), Name: name, CreatedAt: f.store.tick()}
	f.store.accounts = append(f.store.accounts, a)
	f.seedMembership(a.ID, owner.ID, true)
	return a, owner
}

func (f *fixture) seedUser(email string) model.User {
	u := model.User{ID: uuid.NewString(), Email: email, CreatedAt: f.store.tick()}
	f.store.users = append(f.store.users, u)
	return u
}

func (f *fixture) seedMembership(accountID, userID string, owner bool) {
	f.store.memberships = append(f.store.memberships, model.Membership{
		ID: uuid.NewString(), AccountID: accountID, UserID: userID, Owner: owner, CreatedAt: f.store.tick(),
	})
}

func (f *fixture) membershipsFor(accountID string) []model.Membership {
	var result []model.Membership
	for _, m := range f.store.memberships {
		if m.AccountID == accountID {
			result = append(result, m)
		}
	}
	return result
}

func (s *memStore) ownerOf(accountID string) (string, error) {
	for _, m := range s.memberships {
		if m.AccountID == accountID && m.Owner {
			return m.UserID, nil
		}
	}
	return "", fmt.Errorf("account %s has no owner", accountID)
}

var errConnection = errors.New("connection refused")

func identityOf(u model.User) model.AuthenticatedIdentity {
	return model.AuthenticatedIdentity{UserID: u.ID}
}

// identityArgs はテーブルテストで招待者とアカウントを受け渡す。
type identityArgs struct {
	owner   string
	account string
}

func (a identityArgs) identity() model.AuthenticatedIdentity {
	return model.AuthenticatedIdentity{UserID: a.owner, AccountID: a.account}
}

func (f *fixture) String() string {
	return fmt.Sprintf("users=%d accounts=%d memberships=%d",
		len(f.store.users), len(f.store.accounts), len(f.store.memberships))
}
