package repository

import (
	"context"
	"fmt"

	"github.com/hitoshi/starter/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用した所属リポジトリ。
type PostgresMembershipRepo struct {
	db Querier
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db Querier) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// WithTx はqに束縛されたリポジトリを返す。
func (r *PostgresMembershipRepo) WithTx(q Querier) MembershipRepository {
	return &PostgresMembershipRepo{db: q}
}

// Create は所属を作成する。
// memberships_unique_user_and_account に違反する重複招待はマージせずnilを返す。
func (r *PostgresMembershipRepo) Create(ctx context.Context, accountID, userID string, owner bool) (*model.Membership, error) {
	membership := &model.Membership{}
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO memberships (account_id, user_id, owner)
		 VALUES ($1, $2, $3)
		 RETURNING id, account_id, user_id, owner, created_at`,
		accountID, userID, owner,
	).Scan(&membership.ID, &membership.AccountID, &membership.UserID, &membership.Owner, &membership.CreatedAt)

	if err != nil {
		if isConstraintViolation(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to insert membership: %w", err)
	}

	return membership, nil
}

// Delete は所属を削除し、行を削除したかどうかを返す。存在しない場合は何もしない。
func (r *PostgresMembershipRepo) Delete(ctx context.Context, accountID, userID string) (bool, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM memberships WHERE account_id = $1 AND user_id = $2`,
		accountID, userID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read deleted membership count: %w", err)
	}
	return n > 0, nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
