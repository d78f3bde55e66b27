package model

// Headline はニュース見出し1件を表す。
// NewsAPIまたはRSSフィードから取得され、ダイジェスト生成の入力となる。
// PublishedAtは取得元の文字列表現をそのまま保持する。
type Headline struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt string `json:"published_at"`
	// Category は取得元のNewsAPIカテゴリ（RSS取得の場合はトピックのスラッグ）。
	Category string `json:"category"`
	// InterestSlug はこの見出しをもたらしたトピックのスラッグ。
	// 複数トピックで同一URLが取得された場合、最初のトピックが勝つ。
	InterestSlug string `json:"interest_slug,omitempty"`
}
