package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/text/unicode/norm"

	"github.com/hitoshi/pressroom/internal/model"
)

// DefaultFieldMaxLength は見出しフィールドの最大保持長。
const DefaultFieldMaxLength = 500

// HeadlineSanitizer は外部ニュースソース由来の見出しテキストをサニタイズする
// インターフェース。プロンプトへの埋め込みおよびJSONB保存の前に適用される。
type HeadlineSanitizer interface {
	// SanitizeField は単一のテキストフィールドをサニタイズする。
	// HTMLタグの除去、制御文字・ゼロ幅文字の除去、改行のスペース化、
	// 連続スペースの圧縮を行い、maxLengthを超える場合は単語境界で切り詰めて
	// 「...」を付加する。空文字列の入力には空文字列を返す。
	SanitizeField(text string, maxLength int) string

	// SanitizeHeadline は見出しのテキストフィールド全体をサニタイズした
	// コピーを返す。URLは変更しない。
	SanitizeHeadline(h model.Headline) model.Headline
}

// headlineSanitizer はHeadlineSanitizerの実装。
// bluemondayのStrictPolicyで全HTMLタグを除去する。スレッドセーフ。
type headlineSanitizer struct {
	policy *bluemonday.Policy
}

// NewHeadlineSanitizer はHeadlineSanitizerの新しいインスタンスを生成する。
func NewHeadlineSanitizer() *headlineSanitizer {
	return &headlineSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// SanitizeField は単一のテキストフィールドをサニタイズする。
func (s *headlineSanitizer) SanitizeField(text string, maxLength int) string {
	if text == "" {
		return ""
	}
	if maxLength <= 0 {
		maxLength = DefaultFieldMaxLength
	}

	text = norm.NFC.String(text)

	// StrictPolicyは全タグを除去し、テキストをエンティティエンコードするため、
	// 除去後にデコードして元のプレーンテキストへ戻す。
	text = html.UnescapeString(s.policy.Sanitize(text))

	text = controlCharPattern.ReplaceAllString(text, "")
	text = zeroWidthPattern.ReplaceAllString(text, "")

	// 見出しは1行のテキストとして扱う
	text = strings.ReplaceAll(text, "\r\n", " ")
	text = strings.ReplaceAll(text, "\r", " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = multipleSpacesPattern.ReplaceAllString(text, " ")
	text = strings.TrimSpace(text)

	if runes := []rune(text); len(runes) > maxLength {
		cut := string(runes[:maxLength])
		if idx := strings.LastIndex(cut, " "); idx > 0 {
			cut = cut[:idx]
		}
		text = cut + "..."
	}

	return text
}

// SanitizeHeadline は見出しのテキストフィールド全体をサニタイズしたコピーを返す。
func (s *headlineSanitizer) SanitizeHeadline(h model.Headline) model.Headline {
	h.Title = s.SanitizeField(h.Title, DefaultFieldMaxLength)
	h.Description = s.SanitizeField(h.Description, DefaultFieldMaxLength)
	h.Source = s.SanitizeField(h.Source, DefaultFieldMaxLength)
	return h
}
