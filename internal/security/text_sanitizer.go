// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した自由記述フィールド（書名、著者名、出版社、氏名）から
// HTMLを除去し、プレーンテキストとして保存できる形に整える。
// bluemondayのStrictPolicyで全タグを除去する。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizer はプレーンテキスト化のインターフェース。
type TextSanitizer interface {
	// Sanitize はHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerの実装。bluemondayのポリシーはスレッドセーフ。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はHTMLタグを除去したプレーンテキストを返す。
// StrictPolicyはエスケープ済みの文字列を返すため、保存用に実体参照を戻す。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := s.policy.Sanitize(raw)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}
