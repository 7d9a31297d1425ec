package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/hitoshi/starter/internal/model"
)

// --- モック定義 ---

type mockSessionRepository struct {
	findByIDFn func(ctx context.Context, id string) (*model.Session, error)
}

func (m *mockSessionRepository) FindByID(ctx context.Context, id string) (*model.Session, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

// withIdentity はテスト用に認証済みの主体を注入したリクエストを返す。
func withIdentity(r *http.Request, userID, accountID string) *http.Request {
	return r.WithContext(ContextWithIdentity(r.Context(), model.AuthenticatedIdentity{
		UserID:    userID,
		AccountID: accountID,
	}))
}

// --- テスト ---

func TestSessionMiddleware_ValidSession_InjectsIdentity(t *testing.T) {
	repo := &mockSessionRepository{
		findByIDFn: func(ctx context.Context, id string) (*model.Session, error) {
			if id == "valid-session-id" {
				return &model.Session{
					ID:        "valid-session-id",
					UserID:    "user-123",
					AccountID: "account-456",
					ExpiresAt: time.Now().Add(1 * time.Hour),
				}, nil
			}
			return nil, nil
		},
	}

	mw := NewSessionMiddleware(repo)

	var captured model.AuthenticatedIdentity
	var capturedSessionID string
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Error("expected identity in context")
		}
		captured = identity
		capturedSessionID = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: "valid-session-id"})
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", w.Result().StatusCode, http.StatusOK)
	}
	if captured.UserID != "user-123" {
		t.Errorf("UserID = %q, want %q", captured.UserID, "user-123")
	}
	if captured.AccountID != "account-456" {
		t.Errorf("AccountID = %q, want %q", captured.AccountID, "account-456")
	}
	if capturedSessionID != "valid-session-id" {
		t.Errorf("session ID = %q, want %q", capturedSessionID, "valid-session-id")
	}
}

func TestSessionMiddleware_Unauthenticated_Returns401(t *testing.T) {
	tests := []struct {
		name   string
		cookie *http.Cookie
		find   func(ctx context.Context, id string) (*model.Session, error)
	}{
		{name: "no cookie"},
		{name: "empty cookie", cookie: &http.Cookie{Name: SessionCookieName, Value: ""}},
		{
			// 期限切れでnilを返すリポジトリの動作をシミュレート
			name:   "expired session",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "expired-session"},
			find: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, nil
			},
		},
		{
			name:   "repository error",
			cookie: &http.Cookie{Name: SessionCookieName, Value: "some-session"},
			find: func(ctx context.Context, id string) (*model.Session, error) {
				return nil, context.DeadlineExceeded
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mw := NewSessionMiddleware(&mockSessionRepository{findByIDFn: tt.find})
			handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatal("handler should not be called")
			}))

			req := httptest.NewRequest(http.MethodGet, "/api/test", nil)
			if tt.cookie != nil {
				req.AddCookie(tt.cookie)
			}
			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			resp := w.Result()
			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusUnauthorized)
			}

			var body ErrorResponseBody
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if body.Code != model.ErrCodeUnauthorized {
				t.Errorf("code = %q, want %q", body.Code, model.ErrCodeUnauthorized)
			}
		})
	}
}

func TestIdentityFromContext_NoValue(t *testing.T) {
	if _, ok := IdentityFromContext(context.Background()); ok {
		t.Error("expected no identity in empty context")
	}
}

func TestIdentityFromContext_EmptyUserID(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), model.AuthenticatedIdentity{AccountID: "account-1"})
	if _, ok := IdentityFromContext(ctx); ok {
		t.Error("identity without user ID must be rejected")
	}
}

func TestIdentityFromContext_ValidValue(t *testing.T) {
	ctx := ContextWithIdentity(context.Background(), model.AuthenticatedIdentity{UserID: "user-456"})
	identity, ok := IdentityFromContext(ctx)
	if !ok {
		t.Fatal("expected identity")
	}
	if identity.UserID != "user-456" {
		t.Errorf("UserID = %q, want %q", identity.UserID, "user-456")
	}
	if identity.AccountID != "" {
		t.Errorf("AccountID = %q, want empty", identity.AccountID)
	}
}

func TestSessionIDFromContext_NoValue(t *testing.T) {
	if got := SessionIDFromContext(context.Background()); got != "" {
		t.Errorf("session ID = %q, want empty", got)
	}
}
