// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NameSanitizer は利用者が入力したアカウント名からHTMLを取り除き、
// 画面に表示しても安全なプレーンテキストにする。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// NameSanitizer はアカウント名のサニタイズ機能のインターフェースを定義する。
type NameSanitizer interface {
	// Sanitize は全てのタグを除去し、前後の空白を取り除いた名前を返す。
	// 連続する空白は1つにまとめる。タグしか含まない入力には空文字列を返す。
	Sanitize(raw string) string
}

// nameSanitizer はNameSanitizerの実装。
type nameSanitizer struct {
	policy *bluemonday.Policy
}

// NewNameSanitizer はNameSanitizerの新しいインスタンスを生成する。
func NewNameSanitizer() *nameSanitizer {
	return &nameSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はアカウント名をプレーンテキストにする。
func (s *nameSanitizer) Sanitize(raw string) string {
	// StrictPolicyは&や<をエスケープするため、保存前に元の文字へ戻す
	text := html.UnescapeString(s.policy.Sanitize(raw))
	return strings.Join(strings.Fields(text), " ")
}

// compile-time interface check
var _ NameSanitizer = (*nameSanitizer)(nil)
