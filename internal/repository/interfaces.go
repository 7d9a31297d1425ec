// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hitoshi/starter/internal/model"
)

// ErrConflict は一意制約・CHECK制約・外部キー制約に違反した挿入を表す。
var ErrConflict = errors.New("constraint violation")

// Querier は*sql.DBと*sql.Txに共通するクエリ実行インターフェース。
// リポジトリはこれを介して呼び出し元が管理するトランザクションに参加する。
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// Create はユーザーを作成する。
	// メールアドレスが既に存在する場合、または空の場合はErrConflictを返す。
	Create(ctx context.Context, email string) (*model.User, error)

	// FindByEmail はメールアドレスの完全一致でユーザーを検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// ListForAccount は指定アカウントに所属する全ユーザー（オーナーを含む）を返す。
	ListForAccount(ctx context.Context, accountID string) ([]model.User, error)

	// WithTx はqに束縛された同じリポジトリを返す。
	WithTx(q Querier) UserRepository
}

// AccountRepository はアカウントデータの永続化インターフェース。
type AccountRepository interface {
	// Create はアカウントを作成する。制約違反（空の名前など）の場合はnilを返す。
	Create(ctx context.Context, name string) (*model.Account, error)

	// ListForUser はユーザーが所属する全アカウントを返す。
	// オーナーであるアカウントが先頭に並ぶ。呼び出し元は先頭を主アカウントとして扱う。
	ListForUser(ctx context.Context, userID string) ([]model.AccountMembership, error)

	// FindForUser はユーザーが所属するアカウントを取得する。
	// 所属していない場合はnilを返す（閲覧権限の判定に使う）。
	FindForUser(ctx context.Context, accountID, userID string) (*model.AccountMembership, error)

	// FindForOwner はユーザーがオーナーであるアカウントを取得する。
	// 存在しない場合とオーナーでない場合はどちらもnilを返す（メンバー管理権限の判定に使う）。
	FindForOwner(ctx context.Context, accountID, userID string) (*model.Account, error)

	// WithTx はqに束縛された同じリポジトリを返す。
	WithTx(q Querier) AccountRepository
}

// MembershipRepository は所属関係の永続化インターフェース。
type MembershipRepository interface {
	// Create は所属を作成する。
	// 同じ(ユーザー, アカウント)の所属が既に存在する場合、または参照先が存在しない場合はnilを返す。
	Create(ctx context.Context, accountID, userID string, owner bool) (*model.Membership, error)

	// Delete は所属を削除し、行を削除したかどうかを返す。存在しない場合は何もせずfalseを返す。
	Delete(ctx context.Context, accountID, userID string) (bool, error)

	// WithTx はqに束縛された同じリポジトリを返す。
	WithTx(q Querier) MembershipRepository
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// UpdateAccount はセッションで選択中のアカウントを切り替える。
	UpdateAccount(ctx context.Context, id, accountID string) error
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteExpired は期限切れセッションを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context) (int64, error)
}

// TxBeginner はトランザクション開始用のインターフェース。
type TxBeginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (*sql.Tx, error)
}
