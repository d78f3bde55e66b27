package security

import (
	"strings"
	"testing"

	"github.com/hitoshi/pressroom/internal/model"
)

// TestSanitizeField_HTMLRemoval はHTMLタグが除去されることを検証する。
func TestSanitizeField_HTMLRemoval(t *testing.T) {
	sanitizer := NewHeadlineSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "タグが除去されテキストのみ残る",
			input: "<b>速報</b>: 新製品発表",
			want:  "速報: 新製品発表",
		},
		{
			name:  "scriptタグと中身が除去される",
			input: "見出し<script>alert('xss')</script>テキスト",
			want:  "見出しテキスト",
		},
		{
			name:  "HTMLエンティティがデコードされる",
			input: "A &amp; B",
			want:  "A & B",
		},
		{
			name:  "タグなしのテキストはそのまま",
			input: "通常の見出しテキスト",
			want:  "通常の見出しテキスト",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeField(tt.input, 0)
			if got != tt.want {
				t.Errorf("SanitizeField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeField_Whitespace は空白と改行の正規化を検証する。
func TestSanitizeField_Whitespace(t *testing.T) {
	sanitizer := NewHeadlineSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "改行がスペースに変換される",
			input: "1行目\n2行目",
			want:  "1行目 2行目",
		},
		{
			name:  "CRLFがスペースに変換される",
			input: "1行目\r\n2行目",
			want:  "1行目 2行目",
		},
		{
			name:  "連続スペースが圧縮される",
			input: "単語1    単語2",
			want:  "単語1 単語2",
		},
		{
			name:  "制御文字とゼロ幅文字が除去される",
			input: "見出し\x08テキスト​です",
			want:  "見出しテキストです",
		},
		{
			name:  "前後の空白が除去される",
			input: "  見出し  ",
			want:  "見出し",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.SanitizeField(tt.input, 0)
			if got != tt.want {
				t.Errorf("SanitizeField(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestSanitizeField_Truncation は最大長での切り詰めを検証する。
func TestSanitizeField_Truncation(t *testing.T) {
	sanitizer := NewHeadlineSanitizer()

	t.Run("最大長以下はそのまま", func(t *testing.T) {
		input := "short headline"
		if got := sanitizer.SanitizeField(input, 100); got != input {
			t.Errorf("SanitizeField(%q, 100) = %q, expected unchanged", input, got)
		}
	})

	t.Run("超過分は単語境界で切り詰められる", func(t *testing.T) {
		input := strings.Repeat("word ", 30) // 150文字
		got := sanitizer.SanitizeField(input, 50)

		if !strings.HasSuffix(got, "...") {
			t.Errorf("切り詰め後の末尾が...でない: %q", got)
		}
		if len([]rune(got)) > 53 {
			t.Errorf("切り詰め後の長さが上限を超えている: %d文字", len([]rune(got)))
		}
		if strings.Contains(got, "wor...") {
			t.Errorf("単語の途中で切れている: %q", got)
		}
	})

	t.Run("空文字列は空文字列を返す", func(t *testing.T) {
		if got := sanitizer.SanitizeField("", 100); got != "" {
			t.Errorf("SanitizeField(\"\") = %q, expected empty string", got)
		}
	})
}

// TestSanitizeHeadline はテキストフィールド全体のサニタイズを検証する。
func TestSanitizeHeadline(t *testing.T) {
	sanitizer := NewHeadlineSanitizer()

	input := model.Headline{
		Title:        "<b>速報</b>: 新製品\n発表",
		Description:  "詳細は<a href='https://example.com'>こちら</a>",
		Source:       "Tech\x08News",
		URL:          "https://example.com/article?a=1&b=2",
		PublishedAt:  "2025-01-15T08:00:00Z",
		Category:     "technology",
		InterestSlug: "technology",
	}

	got := sanitizer.SanitizeHeadline(input)

	if got.Title != "速報: 新製品 発表" {
		t.Errorf("Title = %q, want %q", got.Title, "速報: 新製品 発表")
	}
	if got.Description != "詳細はこちら" {
		t.Errorf("Description = %q, want %q", got.Description, "詳細はこちら")
	}
	if got.Source != "TechNews" {
		t.Errorf("Source = %q, want %q", got.Source, "TechNews")
	}

	// URLとメタデータは変更されない
	if got.URL != input.URL {
		t.Errorf("URL = %q, expected unchanged", got.URL)
	}
	if got.PublishedAt != input.PublishedAt || got.Category != input.Category || got.InterestSlug != input.InterestSlug {
		t.Errorf("メタデータフィールドが変更された: %+v", got)
	}
}

// TestHeadlineSanitizerInterface はHeadlineSanitizerインターフェースの適合を検証する。
func TestHeadlineSanitizerInterface(t *testing.T) {
	var _ HeadlineSanitizer = NewHeadlineSanitizer()
}
