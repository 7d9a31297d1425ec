package account

import (
	"context"
	"fmt"

	"github.com/hitoshi/starter/internal/model"
)

// InviteResult はInviteMemberの結果。
type InviteResult int

const (
	// InviteAdded はメンバーを追加したことを示す。
	InviteAdded InviteResult = iota
	// InviteNotOwner は呼び出し元がオーナーでない（またはアカウントが存在しない）ことを示す。
	InviteNotOwner
	// InviteUserNotFound は未登録のメールアドレス、または既存メンバーであることを示す。
	InviteUserNotFound
)

// ListAccounts は認証済みユーザーが所属するアカウントをオーナー優先で返す。
func (s *Service) ListAccounts(ctx context.Context, id model.AuthenticatedIdentity) ([]model.AccountMembership, error) {
	accounts, err := s.accounts.ListForUser(ctx, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	return accounts, nil
}

// ShowAccount はアカウントと所属ユーザーの一覧を返す。
// 認証済みユーザーが所属していない場合はnilを返す。
func (s *Service) ShowAccount(ctx context.Context, id model.AuthenticatedIdentity, accountID string) (*model.AccountDetail, error) {
	account, err := s.accounts.FindForUser(ctx, accountID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	if account == nil {
		return nil, nil
	}

	members, err := s.users.ListForAccount(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return &model.AccountDetail{
		Account: *account,
		Members: members,
	}, nil
}

// InviteMember はオーナー権限を確認したうえでメールアドレスのユーザーを追加する。
// 権限の確認と追加は同じトランザクションで行う。
func (s *Service) InviteMember(ctx context.Context, id model.AuthenticatedIdentity, accountID, email string) (InviteResult, error) {
	return s.addMember(ctx, s.requireOwner(id, accountID), email, accountID)
}

// RemoveMember はオーナー権限を確認したうえでユーザーの所属を削除する。
// 呼び出し元がオーナーでない場合はfalseを返す。権限の確認と削除は同じトランザクションで行う。
func (s *Service) RemoveMember(ctx context.Context, id model.AuthenticatedIdentity, accountID, userID string) (bool, error) {
	return s.removeMember(ctx, s.requireOwner(id, accountID), userID, accountID)
}

// SwitchAccount は切り替え先のアカウントを返す。所属していない場合はnilを返す。
// セッションへの反映は呼び出し元が行う。
func (s *Service) SwitchAccount(ctx context.Context, id model.AuthenticatedIdentity, accountID string) (*model.AccountMembership, error) {
	account, err := s.accounts.FindForUser(ctx, accountID, id.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find account: %w", err)
	}
	return account, nil
}
