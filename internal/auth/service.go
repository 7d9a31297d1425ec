// Package auth はOAuth認証フロー、セッション管理を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/starter/internal/model"
	"github.com/hitoshi/starter/internal/repository"
)

var (
	// ErrEmailNotAllowed はメールアドレスが許可リストに含まれないことを表す。
	ErrEmailNotAllowed = errors.New("email is not allowed to sign in")
	// ErrSignInRejected はユーザーまたはアカウントを解決できなかったことを表す。
	ErrSignInRejected = errors.New("sign-in could not be completed")
	// ErrSessionNotFound はセッションが存在しないか期限切れであることを表す。
	ErrSessionNotFound = errors.New("session not found or expired")
)

// OAuthUserInfo はOAuthプロバイダーから取得したユーザー情報を表す。
type OAuthUserInfo struct {
	ProviderUserID string
	Email          string
	Provider       string
}

// OAuthProvider はOAuth認証プロバイダーのインターフェース。
type OAuthProvider interface {
	// GetLoginURL はOAuth認証URLを生成する。
	GetLoginURL(state string) string
	// ExchangeCode は認可コードをトークンに交換し、ユーザー情報を取得する。
	ExchangeCode(ctx context.Context, code string) (*OAuthUserInfo, error)
}

// UserResolver はメールアドレスからユーザーと主アカウントを解決する。
type UserResolver interface {
	CreateOrFindUser(ctx context.Context, email string) (*model.UserAccount, error)
}

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	SessionMaxAge int // セッション有効期間（秒）
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	oauth       OAuthProvider
	resolver    UserResolver
	userRepo    repository.UserRepository
	accountRepo repository.AccountRepository
	sessionRepo repository.SessionRepository
	allowed     *AllowedEmails
	config      ServiceConfig
}

// NewService はServiceを生成する。allowedがnilの場合は全てのメールアドレスを許可する。
func NewService(
	oauth OAuthProvider,
	resolver UserResolver,
	userRepo repository.UserRepository,
	accountRepo repository.AccountRepository,
	sessionRepo repository.SessionRepository,
	allowed *AllowedEmails,
	config ServiceConfig,
) *Service {
	return &Service{
		oauth:       oauth,
		resolver:    resolver,
		userRepo:    userRepo,
		accountRepo: accountRepo,
		sessionRepo: sessionRepo,
		allowed:     allowed,
		config:      config,
	}
}

// GetLoginURL はOAuth認証URLを生成する。
func (s *Service) GetLoginURL(state string) string {
	return s.oauth.GetLoginURL(state)
}

// HandleCallback はOAuthコールバックを処理し、セッションを発行する。
// 初回サインインの場合はユーザーと既定アカウントが作成され、
// セッションはユーザーの主アカウントを選択した状態で作られる。
func (s *Service) HandleCallback(ctx context.Context, code string) (*model.Session, error) {
	userInfo, err := s.oauth.ExchangeCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange oauth code: %w", err)
	}

	if !s.allowed.Allows(userInfo.Email) {
		slog.Warn("sign-in rejected by allowed email list",
			slog.String("email", userInfo.Email),
		)
		return nil, ErrEmailNotAllowed
	}

	user, err := s.resolver.CreateOrFindUser(ctx, userInfo.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve user: %w", err)
	}
	if user == nil {
		return nil, ErrSignInRejected
	}

	session, err := s.createSession(ctx, user.ID, user.AccountID)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	slog.Info("user signed in",
		slog.String("user_id", user.ID),
		slog.String("account_id", user.AccountID),
		slog.String("provider", userInfo.Provider),
	)

	return session, nil
}

// Logout はセッションを破棄する。
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return fmt.Errorf("session ID is required")
	}

	if err := s.sessionRepo.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}

	slog.Info("user logged out", slog.String("session_id", sessionID))
	return nil
}

// GetCurrentUser はセッションから現在のユーザーと選択中のアカウントを取得する。
// 選択中のアカウントから外されていた場合は主アカウントに切り替える。
func (s *Service) GetCurrentUser(ctx context.Context, sessionID string) (*model.UserAccount, error) {
	if sessionID == "" {
		return nil, ErrSessionNotFound
	}

	session, err := s.sessionRepo.FindByID(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	user, err := s.userRepo.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, ErrSessionNotFound
	}

	result := &model.UserAccount{ID: user.ID, Email: user.Email}

	if session.AccountID != "" {
		current, err := s.accountRepo.FindForUser(ctx, session.AccountID, user.ID)
		if err != nil {
			return nil, fmt.Errorf("failed to find current account: %w", err)
		}
		if current != nil {
			result.AccountID = current.ID
			result.AccountName = current.Name
			return result, nil
		}
	}

	accounts, err := s.accountRepo.ListForUser(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	if len(accounts) == 0 {
		return result, nil
	}

	if err := s.sessionRepo.UpdateAccount(ctx, session.ID, accounts[0].ID); err != nil {
		return nil, fmt.Errorf("failed to update session account: %w", err)
	}
	result.AccountID = accounts[0].ID
	result.AccountName = accounts[0].Name
	return result, nil
}

// SelectAccount はセッションで選択中のアカウントを切り替える。
// 所属の確認は呼び出し元が行う。
func (s *Service) SelectAccount(ctx context.Context, sessionID, accountID string) error {
	if err := s.sessionRepo.UpdateAccount(ctx, sessionID, accountID); err != nil {
		return fmt.Errorf("failed to select account: %w", err)
	}
	return nil
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID, accountID string) (*model.Session, error) {
	sessionID, err := generateSessionID()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session ID: %w", err)
	}

	now := time.Now()
	session := &model.Session{
		ID:        sessionID,
		UserID:    userID,
		AccountID: accountID,
		ExpiresAt: now.Add(time.Duration(s.config.SessionMaxAge) * time.Second),
		CreatedAt: now,
	}

	if err := s.sessionRepo.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return session, nil
}

// generateSessionID は暗号的に安全なセッションIDを生成する。
func generateSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
