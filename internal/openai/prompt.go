package openai

import (
	"fmt"
	"strings"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/security"
)

// maxArticlesPerCategory はプロンプトに含めるカテゴリあたりの記事数上限。
const maxArticlesPerCategory = 5

// digestSystemPrompt はダイジェスト生成用のシステムプロンプト。
// 出力を後段のMarkdownサニタイザが受理できる形式に固定する。
const digestSystemPrompt = `You are an expert news analyst and writer. Your task is to create a cohesive, well-written daily news digest based on the headlines and articles provided.

CRITICAL OUTPUT REQUIREMENTS:
- Output ONLY valid, clean Markdown text
- Use ONLY printable ASCII characters (codes 32-126) plus standard newlines
- NEVER output control characters, backspaces, or invisible formatting bytes
- NEVER output zero-width spaces or other Unicode control characters
- Use exactly two asterisks for bold (**text**) - never three or more
- Use exactly one asterisk for italic (*text*)
- Use a single hyphen followed by a space for bullet points (- item)
- Use standard newlines (LF) for line breaks - never carriage returns
- Ensure all bold/italic markers are properly balanced (opened and closed)

STRUCTURE REQUIREMENTS:
1. Start with the exact header format shown below
2. Follow with Executive Summary (2-3 sentences)
3. Organize by topic/category using ## headers
4. End with Key Takeaways section (3-5 bullet points)
5. Keep total length between 600-1000 words

FORMATTING:
- Use ## for section headers (not ### or #)
- Use - for all bullet points (not * or numbers for bullet lists)
- Use **text** for bold emphasis
- Leave one blank line between sections
- No trailing spaces on any line

EXACT OUTPUT FORMAT:

# Daily News Digest - [EXACT DATE FROM USER PROMPT]

**Executive Summary:** [2-3 sentence overview of the day's key news]

## [Topic Category 1]

[Paragraph summarizing related stories. Use **bold** for key terms.]

- [Key point 1]
- [Key point 2]

## [Topic Category 2]

[Content following same pattern]

## Key Takeaways

- [Takeaway 1]
- [Takeaway 2]
- [Takeaway 3]

CONTENT GUIDELINES:
1. Write in a professional, objective journalistic style
2. Summarize key developments clearly and concisely
3. Highlight connections between related stories when relevant
4. Focus on facts, not speculation
5. Use the EXACT date provided in the user prompt for the header

Remember: Clean, parseable Markdown only. No hidden characters. No formatting artifacts.`

// buildUserPrompt はユーザープロンプトを組み立てる。
// 見出しフィールドは外部入力としてサニタイズ済みの前提だが、
// プロンプト埋め込み前にも再度サニタイズする。
func buildUserPrompt(sanitizer security.HeadlineSanitizer, headlines []model.Headline, digestDate string, interests []string) string {
	cleanInterests := make([]string, 0, len(interests))
	for _, i := range interests {
		if clean := sanitizer.SanitizeField(i, 30); clean != "" {
			cleanInterests = append(cleanInterests, clean)
		}
	}

	return fmt.Sprintf(`Create a news digest for %s based on the following headlines and summaries.

The user is interested in: %s

Headlines:

%s

Create a cohesive, well-written digest following the guidelines provided. Use the exact date "%s" in the header.`,
		digestDate,
		strings.Join(cleanInterests, ", "),
		formatHeadlines(sanitizer, headlines),
		digestDate,
	)
}

// formatHeadlines は見出しをカテゴリ別のセクションに整形する。
// 見出しのInterestSlug（なければCategory）でグループ化し、
// カテゴリあたりの記事数を制限する。
func formatHeadlines(sanitizer security.HeadlineSanitizer, headlines []model.Headline) string {
	var order []string
	byCategory := make(map[string][]model.Headline)
	for _, h := range headlines {
		category := h.InterestSlug
		if category == "" {
			category = h.Category
		}
		if category == "" {
			category = "general"
		}
		if _, ok := byCategory[category]; !ok {
			order = append(order, category)
		}
		byCategory[category] = append(byCategory[category], h)
	}

	var sections []string
	for _, category := range order {
		title := sanitizer.SanitizeField(categoryTitle(category), 50)
		lines := []string{"### " + title}

		articles := byCategory[category]
		if len(articles) > maxArticlesPerCategory {
			articles = articles[:maxArticlesPerCategory]
		}
		for _, a := range articles {
			title := sanitizer.SanitizeField(a.Title, 200)
			if title == "" {
				continue
			}
			source := sanitizer.SanitizeField(a.Source, 50)
			lines = append(lines, fmt.Sprintf("- **%s** (%s)", title, source))
			if description := sanitizer.SanitizeField(a.Description, 300); description != "" {
				lines = append(lines, "  "+description)
			}
		}

		sections = append(sections, strings.Join(lines, "\n"))
	}

	return strings.Join(sections, "\n\n")
}

// categoryTitle はスラッグを表示用タイトルに変換する（machine-learning → Machine Learning）。
func categoryTitle(slug string) string {
	words := strings.Split(strings.ReplaceAll(slug, "-", " "), " ")
	for i, w := range words {
		if w == "" {
			continue
		}
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}
