package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/starter/internal/account"
	"github.com/hitoshi/starter/internal/middleware"
	"github.com/hitoshi/starter/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	ListAccounts(ctx context.Context, id model.AuthenticatedIdentity) ([]model.AccountMembership, error)
	CreateAccount(ctx context.Context, userID, name string) (*model.Account, error)
	ShowAccount(ctx context.Context, id model.AuthenticatedIdentity, accountID string) (*model.AccountDetail, error)
	InviteMember(ctx context.Context, id model.AuthenticatedIdentity, accountID, email string) (account.InviteResult, error)
	RemoveMember(ctx context.Context, id model.AuthenticatedIdentity, accountID, userID string) (bool, error)
	SwitchAccount(ctx context.Context, id model.AuthenticatedIdentity, accountID string) (*model.AccountMembership, error)
}

// AccountSelector はセッションで選択中のアカウントを更新する。
type AccountSelector interface {
	SelectAccount(ctx context.Context, sessionID, accountID string) error
}

// NameSanitizer はユーザー入力のアカウント名を無害化する。
type NameSanitizer interface {
	Sanitize(raw string) string
}

// AccountHandler はアカウントとメンバー管理のHTTPハンドラー。
type AccountHandler struct {
	service   AccountServiceInterface
	selector  AccountSelector
	sanitizer NameSanitizer
}

// NewAccountHandler はAccountHandlerを生成する。
func NewAccountHandler(service AccountServiceInterface, selector AccountSelector, sanitizer NameSanitizer) *AccountHandler {
	return &AccountHandler{
		service:   service,
		selector:  selector,
		sanitizer: sanitizer,
	}
}

// createAccountRequest はアカウント作成リクエストのボディ。
// 空の名前はDB制約で拒否されるため、ここでは長さのみ検証する。
type createAccountRequest struct {
	Name string `json:"name" validate:"max=100"`
}

// inviteMemberRequest はメンバー招待リクエストのボディ。
type inviteMemberRequest struct {
	Email string `json:"email" validate:"required,email,max=254"`
}

type accountResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Owner     bool      `json:"owner"`
	CreatedAt time.Time `json:"created_at"`
}

type memberResponse struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type accountDetailResponse struct {
	accountResponse
	Members []memberResponse `json:"members"`
}

func toAccountResponse(a model.AccountMembership) accountResponse {
	return accountResponse{
		ID:        a.ID,
		Name:      a.Name,
		Owner:     a.Owner,
		CreatedAt: a.CreatedAt,
	}
}

// ListAccounts は所属アカウントの一覧を返す。
// GET /api/accounts
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	accounts, err := h.service.ListAccounts(r.Context(), identity)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	resp := make([]accountResponse, 0, len(accounts))
	for _, a := range accounts {
		resp = append(resp, toAccountResponse(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateAccount はアカウントを作成し、セッションの選択中アカウントを切り替える。
// POST /api/accounts
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	var req createAccountRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	name := h.sanitizer.Sanitize(req.Name)

	created, err := h.service.CreateAccount(r.Context(), identity.UserID, name)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if created == nil {
		writeAPIErrorResponse(w, http.StatusUnprocessableEntity, model.NewAccountNotCreatedError(name))
		return
	}

	h.selectAccount(r, created.ID)

	writeJSON(w, http.StatusCreated, accountResponse{
		ID:        created.ID,
		Name:      created.Name,
		Owner:     true,
		CreatedAt: created.CreatedAt,
	})
}

// ShowAccount はアカウントとメンバー一覧を返す。
// GET /api/accounts/{id}
func (h *AccountHandler) ShowAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")
	if !isUUID(accountID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	detail, err := h.service.ShowAccount(r.Context(), identity, accountID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if detail == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	members := make([]memberResponse, 0, len(detail.Members))
	for _, u := range detail.Members {
		members = append(members, memberResponse{ID: u.ID, Email: u.Email})
	}
	writeJSON(w, http.StatusOK, accountDetailResponse{
		accountResponse: toAccountResponse(detail.Account),
		Members:         members,
	})
}

// InviteMember は登録済みユーザーをメールアドレスでアカウントに追加する。
// POST /api/accounts/{id}/members
func (h *AccountHandler) InviteMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")
	if !isUUID(accountID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	var req inviteMemberRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}

	result, err := h.service.InviteMember(r.Context(), identity, accountID, req.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	switch result {
	case account.InviteNotOwner:
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewNotAccountOwnerError())
	case account.InviteUserNotFound:
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewMemberNotAddedError(req.Email))
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// RemoveMember はユーザーのアカウント所属を削除する。所属していない場合も204を返す。
// DELETE /api/accounts/{id}/members/{userID}
func (h *AccountHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")
	userID := chi.URLParam(r, "userID")
	if !isUUID(accountID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}
	if !isUUID(userID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewUserNotFoundError())
		return
	}

	removed, err := h.service.RemoveMember(r.Context(), identity, accountID, userID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if !removed {
		writeAPIErrorResponse(w, http.StatusForbidden, model.NewNotAccountOwnerError())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// SwitchAccount はセッションで選択中のアカウントを切り替える。
// POST /api/accounts/{id}/switch
func (h *AccountHandler) SwitchAccount(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityOrUnauthorized(w, r)
	if !ok {
		return
	}

	accountID := chi.URLParam(r, "id")
	if !isUUID(accountID) {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	target, err := h.service.SwitchAccount(r.Context(), identity, accountID)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	if target == nil {
		writeAPIErrorResponse(w, http.StatusNotFound, model.NewAccountNotFoundError(accountID))
		return
	}

	sessionID := middleware.SessionIDFromContext(r.Context())
	if err := h.selector.SelectAccount(r.Context(), sessionID, target.ID); err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toAccountResponse(*target))
}

// selectAccount は作成直後のアカウントをセッションに反映する。
// 失敗してもアカウント作成自体は成立しているため、ログのみ記録する。
func (h *AccountHandler) selectAccount(r *http.Request, accountID string) {
	sessionID := middleware.SessionIDFromContext(r.Context())
	if sessionID == "" {
		return
	}
	if err := h.selector.SelectAccount(r.Context(), sessionID, accountID); err != nil {
		slog.Error("failed to select created account",
			slog.String("account_id", accountID),
			slog.String("error", err.Error()),
		)
	}
}
