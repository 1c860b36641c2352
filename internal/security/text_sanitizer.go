// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は利用者が入力した表示名などのプレーンテキストから
// HTMLマークアップを取り除く。管理パネルのクライアントはこの値を
// そのまま描画するため、保存前にタグを除去しておく。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// SanitizeText は全てのHTMLタグを除去し、前後の空白を取り除いたテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	SanitizeText(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicyはスレッドセーフに利用できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// 許可タグを持たないStrictPolicyを使うため、script等は中身ごと除去される。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// maxSanitizeRounds は実体参照の多重エンコードを剥がす回数の上限。
const maxSanitizeRounds = 8

// SanitizeText はタグを除去したプレーンテキストを返す。
// 実体参照を戻した結果が再びタグになり得るため、出力が変化しなくなるまで
// 除去と復元を繰り返す。上限に達した場合はエスケープしたままの値を返す。
func (s *textSanitizer) SanitizeText(raw string) string {
	if raw == "" {
		return ""
	}
	text := raw
	for i := 0; i < maxSanitizeRounds; i++ {
		next := s.round(text)
		if next == text {
			return text
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// round はタグを1回除去し、bluemondayがエスケープした実体参照（&amp; 等）を元の文字に戻す。
func (s *textSanitizer) round(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}
