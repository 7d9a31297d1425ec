package model

import "time"

// Account はテナント（ユーザーをまとめる組織）を表す。
type Account struct {
	ID        string
	Name      string
	CreatedAt time.Time
}

// AccountMembership はユーザーから見たアカウントと、そのユーザーがオーナーかどうか。
type AccountMembership struct {
	Account
	Owner bool
}

// Membership はユーザーとアカウントの所属関係を表す。
// (UserID, AccountID) の組は一意。
type Membership struct {
	ID        string
	AccountID string
	UserID    string
	Owner     bool
	CreatedAt time.Time
}

// AccountDetail はアカウント詳細画面に必要な情報をまとめたもの。
type AccountDetail struct {
	Account AccountMembership
	Members []User
}
