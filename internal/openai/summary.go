package openai

import (
	"regexp"
	"strings"
)

// defaultSummaryLength は要約の最大文字数。
const defaultSummaryLength = 200

var (
	// Executive Summaryのラベル部分（太字マーカー込み）。
	executivePrefixPattern = regexp.MustCompile(`(?i)^\*{0,2}Executive\s+Summary:?\s*\*{0,2}\s*`)

	// 太字マーカー除去用。
	boldMarkerPattern = regexp.MustCompile(`\*{2}([^*]+)\*{2}`)
)

// extractSummary はダイジェスト本文から短い要約を抽出する。
// Executive Summary行を優先し、見つからない場合は最初のまとまった段落を使用する。
func extractSummary(content string, maxLength int) string {
	lines := strings.Split(content, "\n")

	for i, line := range lines {
		if !strings.Contains(strings.ToLower(line), "executive summary") {
			continue
		}
		// ラベル行とその直後2行から本文を探す
		for j := i; j < len(lines) && j < i+3; j++ {
			clean := strings.TrimSpace(lines[j])
			clean = executivePrefixPattern.ReplaceAllString(clean, "")
			clean = strings.TrimSpace(strings.Trim(clean, "*"))
			if clean != "" && !strings.HasPrefix(clean, "#") {
				return truncateSummary(clean, maxLength)
			}
		}
		break
	}

	// フォールバック: 見出しでも箇条書きでもない最初のまとまった行
	for _, line := range lines {
		clean := strings.TrimSpace(line)
		clean = boldMarkerPattern.ReplaceAllString(clean, "$1")
		if clean == "" || strings.HasPrefix(clean, "#") || strings.HasPrefix(clean, "-") {
			continue
		}
		if len(clean) > 50 {
			return truncateSummary(clean, maxLength)
		}
	}

	return "Daily news digest generated"
}

// truncateSummary は要約を単語境界で切り詰めて「...」を付加する。
func truncateSummary(text string, maxLength int) string {
	runes := []rune(text)
	if len(runes) <= maxLength {
		return text
	}
	cut := string(runes[:maxLength])
	if idx := strings.LastIndex(cut, " "); idx > 0 {
		cut = cut[:idx]
	}
	return cut + "..."
}
