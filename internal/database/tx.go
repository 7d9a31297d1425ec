package database

import (
	"context"
	"fmt"

	"github.com/hitoshi/starter/internal/repository"
)

// TxManager はfnを1つのトランザクション内で実行する。
// fnがnilを返した場合はコミットし、エラーを返した場合やpanicした場合はロールバックする。
type TxManager interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) error
}

// SQLTxManager はdatabase/sqlのトランザクションを使うTxManager。
type SQLTxManager struct {
	db repository.TxBeginner
}

// NewTxManager はSQLTxManagerを生成する。
func NewTxManager(db repository.TxBeginner) *SQLTxManager {
	return &SQLTxManager{db: db}
}

// WithinTx はfnをトランザクション内で実行する。
func (m *SQLTxManager) WithinTx(ctx context.Context, fn func(ctx context.Context, q repository.Querier) error) (err error) {
	tx, err := m.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = fn(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	return nil
}

// compile-time interface check
var _ TxManager = (*SQLTxManager)(nil)
