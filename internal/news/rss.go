package news

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/security"
)

// RSSSource はRSS/Atomフィードから見出しを取得する。
// FeedURLが設定されたトピック用の取得元で、SSRF防止付きクライアントを使用する。
type RSSSource struct {
	httpClient *http.Client
	guard      security.FeedGuard
	logger     *slog.Logger
	maxItems   int
	maxSize    int64
}

// NewRSSSource はRSSSourceの新しいインスタンスを生成する。
// HTTPクライアントはguard.SafeClientで生成されたものを渡す。
func NewRSSSource(httpClient *http.Client, guard security.FeedGuard, logger *slog.Logger, maxItems int, maxSize int64) *RSSSource {
	return &RSSSource{
		httpClient: httpClient,
		guard:      guard,
		logger:     logger,
		maxItems:   maxItems,
		maxSize:    maxSize,
	}
}

// Fetch はフィードURLから見出しを取得する。
// URL検証 → HTTP GET → gofeedパース → Headline変換の順に処理する。
// 記事数はmaxItemsで打ち切られる。
func (s *RSSSource) Fetch(ctx context.Context, feedURL, slug string) ([]model.Headline, error) {
	if err := s.guard.ValidateFeedURL(feedURL); err != nil {
		return nil, fmt.Errorf("フィードURLの検証に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Pressroom/1.0 News Digest")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Error("フィードの取得に失敗しました",
			slog.String("error", err.Error()),
			slog.String("feed_url", feedURL),
		)
		return nil, fmt.Errorf("フィードの取得に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("フィードがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxSize))
	if err != nil {
		return nil, fmt.Errorf("フィードボディの読み取りに失敗しました: %w", err)
	}

	parser := gofeed.NewParser()
	parsedFeed, err := parser.ParseString(string(body))
	if err != nil {
		s.logger.Error("フィードのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.String("feed_url", feedURL),
		)
		return nil, fmt.Errorf("フィードのパースに失敗しました: %w", err)
	}

	source := parsedFeed.Title
	if source == "" {
		source = feedURL
	}

	var headlines []model.Headline
	for _, item := range parsedFeed.Items {
		if item == nil || item.Title == "" {
			continue
		}
		if len(headlines) >= s.maxItems {
			break
		}
		headlines = append(headlines, model.Headline{
			Title:       item.Title,
			Description: item.Description,
			Source:      source,
			URL:         item.Link,
			PublishedAt: formatItemPublished(item),
			Category:    slug,
		})
	}

	s.logger.Debug("RSSフィードから見出しを取得しました",
		slog.String("feed_url", feedURL),
		slog.Int("headline_count", len(headlines)),
	)

	return headlines, nil
}

// formatItemPublished は記事の公開日時をRFC3339文字列に整形する。
// パース済み日時がない場合は取得元の文字列表現をそのまま返す。
func formatItemPublished(item *gofeed.Item) string {
	if item.PublishedParsed != nil {
		return item.PublishedParsed.UTC().Format(time.RFC3339)
	}
	if item.UpdatedParsed != nil {
		return item.UpdatedParsed.UTC().Format(time.RFC3339)
	}
	return item.Published
}
