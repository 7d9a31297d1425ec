// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, account, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUnauthorized      = "UNAUTHORIZED"
	ErrCodeInvalidRequest    = "INVALID_REQUEST"
	ErrCodeAccountNotFound   = "ACCOUNT_NOT_FOUND"
	ErrCodeAccountNotCreated = "ACCOUNT_NOT_CREATED"
	ErrCodeNotAccountOwner   = "NOT_ACCOUNT_OWNER"
	ErrCodeMemberNotAdded    = "MEMBER_NOT_ADDED"
	ErrCodeUserNotFound      = "USER_NOT_FOUND"
	ErrCodeEmailNotAllowed   = "EMAIL_NOT_ALLOWED"
	ErrCodeSignInRejected    = "SIGN_IN_REJECTED"
	ErrCodeCSRFInvalid       = "CSRF_TOKEN_INVALID"
	ErrCodeRateLimited       = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternal          = "INTERNAL_ERROR"
)

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInvalidRequestError はリクエスト形式が不正な場合のエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewAccountNotFoundError はアカウントが見つからない場合のエラーを生成する。
// 存在しない場合と閲覧権限がない場合を区別しない。
func NewAccountNotFoundError(accountID string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotFound,
		Message:  fmt.Sprintf("アカウントが見つかりません: %s", accountID),
		Category: "account",
		Action:   "アカウント一覧から選択し直してください。",
	}
}

// NewAccountNotCreatedError はアカウントを作成できなかった場合のエラーを生成する。
func NewAccountNotCreatedError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeAccountNotCreated,
		Message:  fmt.Sprintf("アカウント %q を作成できませんでした。", name),
		Category: "account",
		Action:   "空でないアカウント名を指定してください。",
	}
}

// NewNotAccountOwnerError はオーナー以外がメンバー操作を行った場合のエラーを生成する。
func NewNotAccountOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotAccountOwner,
		Message:  "メンバーの追加・削除はアカウントのオーナーのみ実行できます。",
		Category: "account",
		Action:   "アカウントのオーナーに依頼してください。",
	}
}

// NewMemberNotAddedError はメンバー追加が成立しなかった場合のエラーを生成する。
// 未登録のメールアドレスと既存メンバーを区別しない。
func NewMemberNotAddedError(email string) *APIError {
	return &APIError{
		Code:     ErrCodeMemberNotAdded,
		Message:  fmt.Sprintf("ユーザーが見つかりません: %s", email),
		Category: "account",
		Action:   "招待する相手に一度サインインしてもらってから再度お試しください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewEmailNotAllowedError は許可されていないメールアドレスでサインインした場合のエラーを生成する。
func NewEmailNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeEmailNotAllowed,
		Message:  "このメールアドレスではサインインできません。",
		Category: "auth",
		Action:   "許可されたメールアドレスのGoogleアカウントでサインインしてください。",
	}
}

// NewSignInRejectedError はユーザーまたは所属アカウントを解決できずサインインできなかった場合のエラーを生成する。
func NewSignInRejectedError() *APIError {
	return &APIError{
		Code:     ErrCodeSignInRejected,
		Message:  "サインインを完了できませんでした。",
		Category: "auth",
		Action:   "アカウントのオーナーに招待を依頼するか、しばらく待ってから再度お試しください。",
	}
}

// NewCSRFInvalidError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFInvalidError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFInvalid,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRateLimitedError はレート制限を超えた場合のエラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "リクエストが多すぎます。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
