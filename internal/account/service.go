// Package account はアカウント（テナント）と所属関係のドメインロジックを提供する。
//
// 複数テーブルにまたがる書き込みは常に1つのトランザクションで行う。
// 期待される業務上の失敗（未登録・重複・権限なし）はnil/falseで返し、
// インフラ障害のみをerrorとして返す。
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hitoshi/starter/internal/database"
	"github.com/hitoshi/starter/internal/model"
	"github.com/hitoshi/starter/internal/repository"
)

// errRollback はトランザクションをロールバックさせるための内部シグナル。
// 呼び出し元にはnil/falseとして返し、外へは伝播させない。
var errRollback = errors.New("rollback requested")

// MetricsRecorder はアカウント操作の結果を記録するインターフェース。
type MetricsRecorder interface {
	RecordUserCreated()
	RecordAccountCreated()
	RecordMembershipAdded()
	RecordMembershipRemoved()
	RecordRejected(operation string)
}

type nopRecorder struct{}

func (nopRecorder) RecordUserCreated()       {}
func (nopRecorder) RecordAccountCreated()    {}
func (nopRecorder) RecordMembershipAdded()   {}
func (nopRecorder) RecordMembershipRemoved() {}
func (nopRecorder) RecordRejected(string)    {}

// Service はユーザー・アカウント・所属の3リポジトリをまたぐ処理を調停する。
type Service struct {
	tx          database.TxManager
	users       repository.UserRepository
	accounts    repository.AccountRepository
	memberships repository.MembershipRepository
	names       NameGenerator
	metrics     MetricsRecorder
}

// NewService はServiceを生成する。metricsがnilの場合は記録しない。
func NewService(
	tx database.TxManager,
	users repository.UserRepository,
	accounts repository.AccountRepository,
	memberships repository.MembershipRepository,
	names NameGenerator,
	metrics MetricsRecorder,
) *Service {
	if metrics == nil {
		metrics = nopRecorder{}
	}
	return &Service{
		tx:          tx,
		users:       users,
		accounts:    accounts,
		memberships: memberships,
		names:       names,
		metrics:     metrics,
	}
}

// CreateOrFindUser はメールアドレスに対応するユーザーを解決する。
// 未登録の場合はユーザー、既定アカウント、オーナー所属を同一トランザクションで作成する。
// 同じメールアドレスで何度呼んでも同じユーザーとアカウントを返す。
//
// 作成途中で失敗した場合は全体をロールバックしてnilを返す。
// 既存ユーザーが1つもアカウントに所属していない場合もnilを返す。
// 同時サインインで一意制約に衝突した場合は、同じトランザクション内で先発のユーザーを読み直す。
func (s *Service) CreateOrFindUser(ctx context.Context, email string) (*model.UserAccount, error) {
	var result *model.UserAccount
	created := false

	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		users := s.users.WithTx(q)
		accounts := s.accounts.WithTx(q)
		memberships := s.memberships.WithTx(q)

		user, err := users.FindByEmail(ctx, email)
		if err != nil {
			return err
		}

		if user == nil {
			user, err = users.Create(ctx, email)
			switch {
			case errors.Is(err, repository.ErrEmailTaken):
				// 先発のトランザクションがコミット済みのため読み直せる
				slog.Info("concurrent sign-in detected, resolving existing user",
					slog.String("email", email),
				)
				user, err = users.FindByEmail(ctx, email)
				if err != nil {
					return err
				}
				if user == nil {
					return errRollback
				}
			case errors.Is(err, repository.ErrConflict):
				return errRollback
			case err != nil:
				return err
			default:
				account, err := accounts.Create(ctx, s.names.Next())
				if err != nil {
					return err
				}
				if account == nil {
					return errRollback
				}

				membership, err := memberships.Create(ctx, account.ID, user.ID, true)
				if err != nil {
					return err
				}
				if membership == nil {
					return errRollback
				}

				created = true
				result = &model.UserAccount{
					ID:          user.ID,
					Email:       user.Email,
					AccountID:   account.ID,
					AccountName: account.Name,
				}
				return nil
			}
		}

		owned, err := accounts.ListForUser(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(owned) == 0 {
			slog.Warn("user has no account",
				slog.String("user_id", user.ID),
			)
			return nil
		}

		result = &model.UserAccount{
			ID:          user.ID,
			Email:       user.Email,
			AccountID:   owned[0].ID,
			AccountName: owned[0].Name,
		}
		return nil
	})

	if errors.Is(err, errRollback) {
		s.metrics.RecordRejected("create_or_find_user")
		slog.Warn("user bootstrap rolled back",
			slog.String("email", email),
		)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create or find user: %w", err)
	}

	if created {
		s.metrics.RecordUserCreated()
		s.metrics.RecordAccountCreated()
		s.metrics.RecordMembershipAdded()
		slog.Info("new user created",
			slog.String("user_id", result.ID),
			slog.String("account_id", result.AccountID),
		)
	}

	return result, nil
}

// CreateAccount はアカウントを作成し、userIDをオーナーとして所属させる。
// アカウント名が制約に違反する場合などはロールバックしてnilを返す。
// 既に所有するアカウントがあっても作成する。
func (s *Service) CreateAccount(ctx context.Context, userID, name string) (*model.Account, error) {
	var result *model.Account

	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		account, err := s.accounts.WithTx(q).Create(ctx, name)
		if err != nil {
			return err
		}
		if account == nil {
			return errRollback
		}

		membership, err := s.memberships.WithTx(q).Create(ctx, account.ID, userID, true)
		if err != nil {
			return err
		}
		if membership == nil {
			return errRollback
		}

		result = account
		return nil
	})

	if errors.Is(err, errRollback) {
		s.metrics.RecordRejected("create_account")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}

	s.metrics.RecordAccountCreated()
	s.metrics.RecordMembershipAdded()
	slog.Info("account created",
		slog.String("account_id", result.ID),
		slog.String("owner_id", userID),
	)

	return result, nil
}

// AddToAccount はメールアドレスで特定したユーザーを非オーナーとしてアカウントに追加する。
// 未登録のメールアドレスの場合は何も作成せずfalseを返す。
// 既に所属している場合もfalseを返す。
// 呼び出し元がオーナーであることの確認は行わない（InviteMemberを参照）。
func (s *Service) AddToAccount(ctx context.Context, email, accountID string) (bool, error) {
	result, err := s.addMember(ctx, nil, email, accountID)
	return result == InviteAdded, err
}

// RemoveFromAccount はユーザーの所属を削除する。
// 所属していない場合も成功として扱い、削除したかどうかは返さない。
func (s *Service) RemoveFromAccount(ctx context.Context, userID, accountID string) error {
	_, err := s.removeMember(ctx, nil, userID, accountID)
	return err
}

// ownerCheck はトランザクション内で呼び出し元がアカウントのオーナーかどうかを確認する。
type ownerCheck func(ctx context.Context, q repository.Querier) (bool, error)

// requireOwner はidがaccountIDのオーナーであることを確認するownerCheckを返す。
func (s *Service) requireOwner(id model.AuthenticatedIdentity, accountID string) ownerCheck {
	return func(ctx context.Context, q repository.Querier) (bool, error) {
		owned, err := s.accounts.WithTx(q).FindForOwner(ctx, accountID, id.UserID)
		if err != nil {
			return false, fmt.Errorf("failed to check ownership: %w", err)
		}
		return owned != nil, nil
	}
}

// addMember はcheckと所属の作成を同じトランザクションで行う。checkがnilの場合は確認しない。
func (s *Service) addMember(ctx context.Context, check ownerCheck, email, accountID string) (InviteResult, error) {
	result := InviteUserNotFound

	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if check != nil {
			ok, err := check(ctx, q)
			if err != nil {
				return err
			}
			if !ok {
				result = InviteNotOwner
				return nil
			}
		}

		user, err := s.users.WithTx(q).FindByEmail(ctx, email)
		if err != nil {
			return err
		}
		if user == nil {
			return nil
		}

		membership, err := s.memberships.WithTx(q).Create(ctx, accountID, user.ID, false)
		if err != nil {
			return err
		}
		if membership == nil {
			return errRollback
		}

		result = InviteAdded
		return nil
	})

	if errors.Is(err, errRollback) {
		s.metrics.RecordRejected("add_to_account")
		return InviteUserNotFound, nil
	}
	if err != nil {
		return InviteUserNotFound, fmt.Errorf("failed to add user to account: %w", err)
	}

	switch result {
	case InviteAdded:
		s.metrics.RecordMembershipAdded()
	case InviteNotOwner:
		s.metrics.RecordRejected("invite_member")
	}
	return result, nil
}

// removeMember はcheckと所属の削除を同じトランザクションで行い、checkを通過したかどうかを返す。
// 削除メトリクスは実際に行が削除された場合のみ記録する。
func (s *Service) removeMember(ctx context.Context, check ownerCheck, userID, accountID string) (bool, error) {
	allowed, removed := true, false

	err := s.tx.WithinTx(ctx, func(ctx context.Context, q repository.Querier) error {
		if check != nil {
			ok, err := check(ctx, q)
			if err != nil {
				return err
			}
			if !ok {
				allowed = false
				return nil
			}
		}

		var err error
		removed, err = s.memberships.WithTx(q).Delete(ctx, accountID, userID)
		return err
	})
	if err != nil {
		return false, fmt.Errorf("failed to remove user from account: %w", err)
	}

	if !allowed {
		s.metrics.RecordRejected("remove_member")
		return false, nil
	}
	if removed {
		s.metrics.RecordMembershipRemoved()
	}
	return true, nil
}
