package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hitoshi/starter/internal/model"
	"github.com/hitoshi/starter/internal/repository"
)

// --- モック定義 ---

type mockOAuthProvider struct {
	exchangeCodeFn func(ctx context.Context, code string) (*OAuthUserInfo, error)
}

func (m *mockOAuthProvider) GetLoginURL(state string) string {
	return "https://accounts.google.com/o/oauth2/auth?state=" + state
}

func (m *mockOAuthProvider) ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error) {
	if m.exchangeCodeFn != nil {
		return m.exchangeCodeFn(ctx, code)
	}
	return &OAuthUserInfo{ProviderUserID: "sub-1", Email: "user@example.com", Provider: "google"}, nil
}

type mockResolver struct {
	createOrFindUserFn func(ctx context.Context, email string) (*model.UserAccount, error)
}

func (m *mockResolver) CreateOrFindUser(ctx context.Context, email string) (*model.UserAccount, error) {
	if m.createOrFindUserFn != nil {
		return m.createOrFindUserFn(ctx, email)
	}
	return &model.UserAccount{ID: "user-1", Email: email, AccountID: "account-1", AccountName: "calm otter"}, nil
}

type mockUserRepo struct {
	findByIDFn func(ctx context.Context, id string) (*model.User, error)
}

func (m *mockUserRepo) Create(_ context.Context, _ string) (*model.User, error) { return nil, nil }
func (m *mockUserRepo) FindByEmail(_ context.Context, _ string) (*model.User, error) {
	return nil, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return &model.User{ID: id, Email: "user@example.com"}, nil
}

func (m *mockUserRepo) ListForAccount(_ context.Context, _ string) ([]model.User, error) {
	return nil, nil
}
func (m *mockUserRepo) WithTx(repository.Querier) repository.UserRepository { return m }

type mockAccountRepo struct {
	findForUserFn func(ctx context.Context, accountID, userID string) (*model.AccountMembership, error)
	listForUserFn func(ctx context.Context, userID string) ([]model.AccountMembership, error)
}

func (m *mockAccountRepo) Create(_ context.Context, _ string) (*model.Account, error) {
	return nil, nil
}

func (m *mockAccountRepo) ListForUser(ctx context.Context, userID string) ([]model.AccountMembership, error) {
	if m.listForUserFn != nil {
		return m.listForUserFn(ctx, userID)
	}
	return []model.AccountMembership{}, nil
}

func (m *mockAccountRepo) FindForUser(ctx context.Context, accountID, userID string) (*model.AccountMembership, error) {
	if m.findForUserFn != nil {
		return m.findForUserFn(ctx, accountID, userID)
	}
	return nil, nil
}

func (m *mockAccountRepo) FindForOwner(_ context.Context, _, _ string) (*model.Account, error) {
	return nil, nil
}
func (m *mockAccountRepo) WithTx(repository.Querier) repository.AccountRepository { return m }

type mockSessionRepo struct {
	createFn        func(ctx context.Context, session *model.Session) error
	findByIDFn      func(ctx context.Context, id string) (*model.Session, error)
	updateAccountFn func(ctx context.Context, id, accountID string) error
	deleteByIDFn    func(ctx context.Context, id string) error
}

func (m *mockSessionRepo) Create(ctx context.Context, session *model.Session) error {
	if m.createFn != nil {
		return m.createFn(ctx, session)
	}
	return nil
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockSessionRepo) UpdateAccount(ctx context.Context, id, accountID string) error {
	if m.updateAccountFn != nil {
		return m.updateAccountFn(ctx, id, accountID)
	}
	return nil
}

func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	if m.deleteByIDFn != nil {
		return m.deleteByIDFn(ctx, id)
	}
	return nil
}

func (m *mockSessionRepo) DeleteExpired(_ context.Context) (int64, error) { return 0, nil }

type serviceMocks struct {
	oauth    *mockOAuthProvider
	resolver *mockResolver
	users    *mockUserRepo
	accounts *mockAccountRepo
	sessions *mockSessionRepo
	allowed  *AllowedEmails
}

func newMocks() *serviceMocks {
	return &serviceMocks{
		oauth:    &mockOAuthProvider{},
		resolver: &mockResolver{},
		users:    &mockUserRepo{},
		accounts: &mockAccountRepo{},
		sessions: &mockSessionRepo{},
	}
}

func (m *serviceMocks) service() *Service {
	return NewService(m.oauth, m.resolver, m.users, m.accounts, m.sessions, m.allowed, ServiceConfig{SessionMaxAge: 3600})
}

// --- HandleCallback ---

func TestHandleCallback_CreatesSessionForPrimaryAccount(t *testing.T) {
	m := newMocks()
	var saved *model.Session
	m.sessions.createFn = func(_ context.Context, s *model.Session) error {
		saved = s
		return nil
	}

	before := time.Now()
	session, err := m.service().HandleCallback(context.Background(), "code")
	if err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}

	if session != saved {
		t.Error("returned session should be the persisted one")
	}
	if session.UserID != "user-1" || session.AccountID != "account-1" {
		t.Errorf("session = %+v, want user-1/account-1", session)
	}
	if len(session.ID) != 64 {
		t.Errorf("session ID length = %d, want 64", len(session.ID))
	}
	if session.ExpiresAt.Before(before.Add(59 * time.Minute)) {
		t.Errorf("ExpiresAt = %v, want about 1h later", session.ExpiresAt)
	}
}

func TestHandleCallback_PassesEmailToResolver(t *testing.T) {
	m := newMocks()
	m.oauth.exchangeCodeFn = func(_ context.Context, _ string) (*OAuthUserInfo, error) {
		return &OAuthUserInfo{Email: "new@example.com", Provider: "google"}, nil
	}
	var got string
	m.resolver.createOrFindUserFn = func(_ context.Context, email string) (*model.UserAccount, error) {
		got = email
		return &model.UserAccount{ID: "u", Email: email, AccountID: "a"}, nil
	}

	if _, err := m.service().HandleCallback(context.Background(), "code"); err != nil {
		t.Fatalf("HandleCallback() error = %v", err)
	}
	if got != "new@example.com" {
		t.Errorf("resolver email = %q, want %q", got, "new@example.com")
	}
}

func TestHandleCallback_EmailNotAllowed(t *testing.T) {
	m := newMocks()
	m.allowed = NewAllowedEmails([]string{"corp.example.com"}, nil)
	m.resolver.createOrFindUserFn = func(_ context.Context, _ string) (*model.UserAccount, error) {
		t.Error("resolver must not be called for a rejected email")
		return nil, nil
	}

	_, err := m.service().HandleCallback(context.Background(), "code")
	if !errors.Is(err, ErrEmailNotAllowed) {
		t.Fatalf("error = %v, want ErrEmailNotAllowed", err)
	}
}

func TestHandleCallback_ResolverReturnsNil(t *testing.T) {
	m := newMocks()
	m.resolver.createOrFindUserFn = func(_ context.Context, _ string) (*model.UserAccount, error) {
		return nil, nil
	}
	m.sessions.createFn = func(_ context.Context, _ *model.Session) error {
		t.Error("session must not be created")
		return nil
	}

	_, err := m.service().HandleCallback(context.Background(), "code")
	if !errors.Is(err, ErrSignInRejected) {
		t.Fatalf("error = %v, want ErrSignInRejected", err)
	}
}

func TestHandleCallback_ExchangeError(t *testing.T) {
	m := newMocks()
	m.oauth.exchangeCodeFn = func(_ context.Context, _ string) (*OAuthUserInfo, error) {
		return nil, errors.New("invalid_grant")
	}

	if _, err := m.service().HandleCallback(context.Background(), "code"); err == nil {
		t.Fatal("expected error")
	}
}

func TestHandleCallback_SessionSaveError(t *testing.T) {
	m := newMocks()
	m.sessions.createFn = func(_ context.Context, _ *model.Session) error {
		return errors.New("db down")
	}

	if _, err := m.service().HandleCallback(context.Background(), "code"); err == nil {
		t.Fatal("expected error")
	}
}

// --- Logout ---

func TestLogout_DeletesSession(t *testing.T) {
	m := newMocks()
	var deleted string
	m.sessions.deleteByIDFn = func(_ context.Context, id string) error {
		deleted = id
		return nil
	}

	if err := m.service().Logout(context.Background(), "session-1"); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if deleted != "session-1" {
		t.Errorf("deleted = %q, want session-1", deleted)
	}
}

func TestLogout_EmptySessionID(t *testing.T) {
	m := newMocks()
	if err := m.service().Logout(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty session ID")
	}
}

// --- GetCurrentUser ---

func activeSession(accountID string) func(context.Context, string) (*model.Session, error) {
	return func(_ context.Context, id string) (*model.Session, error) {
		return &model.Session{ID: id, UserID: "user-1", AccountID: accountID, ExpiresAt: time.Now().Add(time.Hour)}, nil
	}
}

func TestGetCurrentUser_ReturnsSelectedAccount(t *testing.T) {
	m := newMocks()
	m.sessions.findByIDFn = activeSession("account-2")
	m.accounts.findForUserFn = func(_ context.Context, accountID, userID string) (*model.AccountMembership, error) {
		return &model.AccountMembership{Account: model.Account{ID: accountID, Name: "Acme"}}, nil
	}

	user, err := m.service().GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.ID != "user-1" || user.AccountID != "account-2" || user.AccountName != "Acme" {
		t.Errorf("user = %+v", user)
	}
}

func TestGetCurrentUser_RemovedFromSelectedAccount_FallsBackToPrimary(t *testing.T) {
	m := newMocks()
	m.sessions.findByIDFn = activeSession("account-2")
	m.accounts.listForUserFn = func(_ context.Context, _ string) ([]model.AccountMembership, error) {
		return []model.AccountMembership{{Account: model.Account{ID: "account-1", Name: "calm otter"}, Owner: true}}, nil
	}
	var updated string
	m.sessions.updateAccountFn = func(_ context.Context, _ string, accountID string) error {
		updated = accountID
		return nil
	}

	user, err := m.service().GetCurrentUser(context.Background(), "session-1")
	if err != nil {
		t.Fatalf("GetCurrentUser() error = %v", err)
	}
	if user.AccountID != "account-1" {
		t.Errorf("AccountID = %q, want account-1", user.AccountID)
	}
	if updated != "account-1" {
		t.Errorf("session should switch to account-1, got %q", updated)
	}
}

func TestGetCurrentUser_NoSession(t *testing.T) {
	m := newMocks()

	_, err := m.service().GetCurrentUser(context.Background(), "missing")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}

	_, err = m.service().GetCurrentUser(context.Background(), "")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want ErrSessionNotFound", err)
	}
}

func TestGetCurrentUser_SessionLookupError(t *testing.T) {
	m := newMocks()
	m.sessions.findByIDFn = func(_ context.Context, _ string) (*model.Session, error) {
		return nil, errors.New("db down")
	}

	_, err := m.service().GetCurrentUser(context.Background(), "session-1")
	if err == nil || errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("error = %v, want infrastructure error", err)
	}
}

// --- SelectAccount ---

func TestSelectAccount_UpdatesSession(t *testing.T) {
	m := newMocks()
	var gotSession, gotAccount string
	m.sessions.updateAccountFn = func(_ context.Context, id, accountID string) error {
		gotSession, gotAccount = id, accountID
		return nil
	}

	if err := m.service().SelectAccount(context.Background(), "session-1", "account-9"); err != nil {
		t.Fatalf("SelectAccount() error = %v", err)
	}
	if gotSession != "session-1" || gotAccount != "account-9" {
		t.Errorf("UpdateAccount(%q, %q)", gotSession, gotAccount)
	}
}
