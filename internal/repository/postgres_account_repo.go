package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/starter/internal/model"
)

// PostgresAccountRepo はPostgreSQLを使用したアカウントリポジトリ。
type PostgresAccountRepo struct {
	db Querier
}

// NewPostgresAccountRepo はPostgresAccountRepoを生成する。
func NewPostgresAccountRepo(db Querier) *PostgresAccountRepo {
	return &PostgresAccountRepo{db: db}
}

// WithTx はqに束縛されたリポジトリを返す。
func (r *PostgresAccountRepo) WithTx(q Querier) AccountRepository {
	return &PostgresAccountRepo{db: q}
}

// Create はアカウントを作成する。
// name = '' のCHECK制約に違反した場合はエラーではなくnilを返す。
func (r *PostgresAccountRepo) Create(ctx context.Context, name string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO accounts (name) VALUES ($1) RETURNING id, name, created_at`,
		name,
	).Scan(&account.ID, &account.Name, &account.CreatedAt)

	if err != nil {
		if isConstraintViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert account: %w", err)
	}

	return account, nil
}

// ListForUser はユーザーが所属する全アカウントを返す。
// owner = true の行を先に、その後は作成順に並べる。
func (r *PostgresAccountRepo) ListForUser(ctx context.Context, userID string) ([]model.AccountMembership, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT a.id, a.name, a.created_at, m.owner
		 FROM accounts a
		 JOIN memberships m ON a.id = m.account_id
		 WHERE m.user_id = $1
		 ORDER BY m.owner DESC, a.created_at, a.id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts for user: %w", err)
	}
	defer rows.Close()

	accounts := []model.AccountMembership{}
	for rows.Next() {
		var a model.AccountMembership
		if err := rows.Scan(&a.ID, &a.Name, &a.CreatedAt, &a.Owner); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate accounts: %w", err)
	}

	return accounts, nil
}

// FindForUser はユーザーが所属するアカウントを取得する。所属していない場合はnilを返す。
func (r *PostgresAccountRepo) FindForUser(ctx context.Context, accountID, userID string) (*model.AccountMembership, error) {
	account := &model.AccountMembership{}
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.created_at, m.owner
		 FROM accounts a
		 JOIN memberships m ON a.id = m.account_id
		 WHERE m.user_id = $1 AND a.id = $2`,
		userID, accountID,
	).Scan(&account.ID, &account.Name, &account.CreatedAt, &account.Owner)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account for user: %w", err)
	}

	return account, nil
}

// FindForOwner はユーザーがオーナーであるアカウントを取得する。
// アカウントが存在しない場合とオーナーでない場合を区別せずnilを返す。
// トランザクション内ではオーナーの所属行を共有ロックし、コミットまで削除されないようにする。
func (r *PostgresAccountRepo) FindForOwner(ctx context.Context, accountID, userID string) (*model.Account, error) {
	account := &model.Account{}
	err := r.db.QueryRowContext(ctx,
		`SELECT a.id, a.name, a.created_at
		 FROM accounts a
		 JOIN memberships m ON a.id = m.account_id
		 WHERE m.user_id = $1 AND a.id = $2 AND m.owner IS TRUE
		 FOR SHARE OF m`,
		userID, accountID,
	).Scan(&account.ID, &account.Name, &account.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find account for owner: %w", err)
	}

	return account, nil
}

// compile-time interface check
var _ AccountRepository = (*PostgresAccountRepo)(nil)
