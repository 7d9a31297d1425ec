package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/starter/internal/model"
)

// ErrEmailTaken は同じメールアドレスのユーザーが既に存在することを表す。
// 挿入は行われず、トランザクションは引き続き利用できる。
var ErrEmailTaken = fmt.Errorf("email already registered: %w", ErrConflict)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db Querier
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db Querier) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// WithTx はqに束縛されたリポジトリを返す。
func (r *PostgresUserRepo) WithTx(q Querier) UserRepository {
	return &PostgresUserRepo{db: q}
}

// Create はユーザーを作成する。
// 一意制約の衝突はON CONFLICT DO NOTHINGで吸収し、ErrEmailTakenを返す。
// 同時に同じメールアドレスで作成しようとした場合、後発のトランザクションは先発のコミットを待ってから衝突を検知する。
func (r *PostgresUserRepo) Create(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO users (email) VALUES ($1)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, email, created_at`,
		email,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrEmailTaken
	}
	if err != nil {
		if isConstraintViolation(err) {
			return nil, ErrConflict
		}
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}

	return user, nil
}

// FindByEmail はメールアドレスでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE email = $1`,
		email,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}

	return user, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	user := &model.User{}
	err := r.db.QueryRowContext(ctx,
		`SELECT id, email, created_at FROM users WHERE id = $1`,
		id,
	).Scan(&user.ID, &user.Email, &user.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	return user, nil
}

// ListForAccount は指定アカウントに所属する全ユーザーを所属順に返す。
func (r *PostgresUserRepo) ListForAccount(ctx context.Context, accountID string) ([]model.User, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT u.id, u.email, u.created_at
		 FROM users u
		 JOIN memberships m ON u.id = m.user_id
		 WHERE m.account_id = $1
		 ORDER BY m.created_at, m.id`,
		accountID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list users for account: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var u model.User
		if err := rows.Scan(&u.ID, &u.Email, &u.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
