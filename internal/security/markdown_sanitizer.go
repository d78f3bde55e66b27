// Package security はアプリケーションのセキュリティ・衛生機能を提供する。
//
// MarkdownSanitizer はLLMが生成したMarkdownコンテンツを保存直前に正規化し、
// 制御文字・ゼロ幅文字・不正なマーカーを除去する。
// HeadlineSanitizer は外部ニュースソース由来のテキストからHTMLを除去する。
package security

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// 制御文字（タブと改行を除く）。CRは改行正規化で別途処理する。
	controlCharPattern = regexp.MustCompile("[\x00-\x08\x0b\x0c\x0e-\x1f\x7f]")

	// ゼロ幅・不可視文字。
	zeroWidthPattern = regexp.MustCompile(`[\x{200B}-\x{200F}\x{2028}-\x{202F}\x{2060}-\x{206F}\x{FEFF}\x{FFF9}-\x{FFFC}]`)

	// 3個以上連続するアスタリスク（壊れた太字マーカー）。
	malformedBoldPattern = regexp.MustCompile(`\*{3,}`)

	// 3個以上連続する改行。
	excessiveNewlinesPattern = regexp.MustCompile(`\n{3,}`)

	// 2個以上連続するスペース。
	multipleSpacesPattern = regexp.MustCompile(` {2,}`)

	// 各行末の空白。
	trailingWhitespacePattern = regexp.MustCompile(`(?m)[ \t]+$`)

	// リストマーカーのプレフィックス（- か * か番号付き）。
	listPrefixPattern = regexp.MustCompile(`^(\s*[-*]|\s*\d+\.)\s*`)

	// 見出し行。直後に空行がない場合の検出に使用する。
	headingLinePattern = regexp.MustCompile(`^#{1,6}\s+\S`)

	// 行頭の*箇条書きマーカー。
	asteriskBulletPattern = regexp.MustCompile(`^(\s*)\* `)

	// 太字マーカー。
	doubleAsteriskPattern = regexp.MustCompile(`\*\*`)
)

// MarkdownSanitizer はダイジェスト本文の保存前正規化を行うインターフェース。
type MarkdownSanitizer interface {
	// Sanitize はMarkdownコンテンツを正規化して返す。
	// 制御文字・ゼロ幅文字の除去、改行コードのLF統一、壊れた太字マーカーの修復、
	// 連続空行の圧縮（最大1空行）、箇条書きマーカーの-への統一を行う。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返し、二重適用しても結果は変わらない（冪等）。
	Sanitize(content string) string
}

// markdownSanitizer はMarkdownSanitizerの実装。状態を持たずスレッドセーフ。
type markdownSanitizer struct{}

// NewMarkdownSanitizer はMarkdownSanitizerの新しいインスタンスを生成する。
func NewMarkdownSanitizer() *markdownSanitizer {
	return &markdownSanitizer{}
}

// Sanitize はMarkdownコンテンツを正規化して返す。
// 各パスは前段の出力を前提に順序付けられており、この順序が冪等性を保証する。
func (s *markdownSanitizer) Sanitize(content string) string {
	if content == "" {
		return ""
	}

	// Unicode NFC正規化
	content = norm.NFC.String(content)

	// ゼロ幅・不可視文字の除去
	content = zeroWidthPattern.ReplaceAllString(content, "")

	// 改行コードの統一（CRLF→LF、CR→LF）
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	// 制御文字の除去（バックスペース0x08を含む）
	content = controlCharPattern.ReplaceAllString(content, "")

	// 壊れた太字マーカーの修復（*** → **）
	content = malformedBoldPattern.ReplaceAllString(content, "**")

	// 行内で対にならない太字マーカーの修復
	content = fixUnbalancedMarkers(content)

	// 連続改行の圧縮（最大2連続 = 空行1つ）
	content = excessiveNewlinesPattern.ReplaceAllString(content, "\n\n")

	// 各行末の空白除去
	content = trailingWhitespacePattern.ReplaceAllString(content, "")

	// 連続スペースの圧縮（リストマーカーのインデントは保持）
	content = normalizeSpaces(content)

	// 見出し直後の空行確保
	content = ensureBlankLineAfterHeadings(content)

	// 箇条書きマーカーの統一（* → -）
	content = normalizeBullets(content)

	return strings.TrimSpace(content)
}

// fixUnbalancedMarkers は行ごとに**の出現数を数え、奇数の場合は
// 行末の孤立した**を取り除いて対称性を回復する。
func fixUnbalancedMarkers(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		count := len(doubleAsteriskPattern.FindAllString(line, -1))
		if count%2 == 0 {
			continue
		}
		trimmed := strings.TrimRight(line, " \t")
		if strings.HasSuffix(trimmed, "**") && !strings.HasSuffix(trimmed, "***") {
			lines[i] = strings.TrimRight(trimmed[:len(trimmed)-2], " \t")
		}
	}
	return strings.Join(lines, "\n")
}

// normalizeSpaces は連続スペースを1つに圧縮する。
// リスト行ではマーカーとインデントを保持し、本文部分のみ圧縮する。
func normalizeSpaces(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		if loc := listPrefixPattern.FindStringIndex(line); loc != nil {
			prefix := line[:loc[1]]
			rest := line[loc[1]:]
			lines[i] = prefix + multipleSpacesPattern.ReplaceAllString(rest, " ")
			continue
		}
		lines[i] = multipleSpacesPattern.ReplaceAllString(line, " ")
	}
	return strings.Join(lines, "\n")
}

// ensureBlankLineAfterHeadings は見出し行の直後が本文行の場合に空行を挿入する。
func ensureBlankLineAfterHeadings(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	for i, line := range lines {
		out = append(out, line)
		if headingLinePattern.MatchString(line) && i+1 < len(lines) && lines[i+1] != "" {
			out = append(out, "")
		}
	}
	return strings.Join(out, "\n")
}

// normalizeBullets は行頭の「* 」を「- 」に置き換える。インデントは保持する。
func normalizeBullets(content string) string {
	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = asteriskBulletPattern.ReplaceAllString(line, "${1}- ")
	}
	return strings.Join(lines, "\n")
}
