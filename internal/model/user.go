// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// 初回OAuthサインイン時に作成され、以後は変更・削除されない。
type User struct {
	ID        string
	Email     string
	CreatedAt time.Time
}

// UserAccount はサインイン時に解決されたユーザーと、その主アカウントの組。
type UserAccount struct {
	ID          string
	Email       string
	AccountID   string
	AccountName string
}

// AuthenticatedIdentity は認証済みリクエストの主体を表す。
// セッションから復元され、アカウントサービスの各呼び出しに明示的に渡される。
type AuthenticatedIdentity struct {
	UserID    string
	AccountID string
}

// Session はユーザーのログインセッションを表す。
// AccountIDは現在選択中のアカウント（未選択の場合は空文字）。
type Session struct {
	ID        string
	UserID    string
	AccountID string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Identity はセッションから認証済み主体を取り出す。
func (s *Session) Identity() AuthenticatedIdentity {
	return AuthenticatedIdentity{
		UserID:    s.UserID,
		AccountID: s.AccountID,
	}
}
