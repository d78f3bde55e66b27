package news

import (
	"context"
	"log/slog"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/security"
)

// HeadlineProvider は見出し取得サービスのインターフェース。
// ダイジェスト生成のオーケストレータから使用される。
type HeadlineProvider interface {
	// HeadlinesForInterests はトピック一覧の見出しを集約して返す。
	// 同一URLの見出しは最初に取得したトピックのものが採用される（先勝ち）。
	// 一部のトピックで取得に失敗しても残りの処理を継続し、
	// 全トピックで失敗して見出しが1件もない場合のみエラーを返す。
	HeadlinesForInterests(ctx context.Context, interests []*model.Interest) ([]model.Headline, error)
}

// categoryFetcher はNewsAPIからのカテゴリ別取得の抽象。テスト用。
type categoryFetcher interface {
	TopHeadlines(ctx context.Context, category string) ([]model.Headline, error)
}

// feedFetcher はRSSフィードからの取得の抽象。テスト用。
type feedFetcher interface {
	Fetch(ctx context.Context, feedURL, slug string) ([]model.Headline, error)
}

// Service は見出し取得の集約サービス。
// トピックごとにNewsAPIまたはRSSフィードから見出しを取得し、
// キャッシュ・重複排除・サニタイズを適用する。
type Service struct {
	client    categoryFetcher
	rss       feedFetcher
	cache     *HeadlineCache
	sanitizer security.HeadlineSanitizer
	logger    *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(client categoryFetcher, rss feedFetcher, cache *HeadlineCache, sanitizer security.HeadlineSanitizer, logger *slog.Logger) *Service {
	return &Service{
		client:    client,
		rss:       rss,
		cache:     cache,
		sanitizer: sanitizer,
		logger:    logger,
	}
}

// HeadlinesForInterests はトピック一覧の見出しを集約して返す。
func (s *Service) HeadlinesForInterests(ctx context.Context, interests []*model.Interest) ([]model.Headline, error) {
	var all []model.Headline
	seen := make(map[string]struct{})
	failures := 0

	for _, interest := range interests {
		headlines, err := s.headlinesForInterest(ctx, interest)
		if err != nil {
			s.logger.Warn("トピックの見出し取得に失敗しました",
				slog.String("slug", interest.Slug),
				slog.String("error", err.Error()),
			)
			failures++
			continue
		}
		if headlines == nil {
			// 取得元が設定されていないトピック
			continue
		}

		for _, h := range headlines {
			if _, ok := seen[h.URL]; ok {
				continue
			}
			seen[h.URL] = struct{}{}
			h.InterestSlug = interest.Slug
			all = append(all, s.sanitizer.SanitizeHeadline(h))
		}
	}

	if len(all) == 0 && failures > 0 {
		return nil, model.NewHeadlineFetchError("全てのトピックで取得に失敗しました")
	}

	s.logger.Info("見出しの集約が完了しました",
		slog.Int("interest_count", len(interests)),
		slog.Int("headline_count", len(all)),
		slog.Int("failure_count", failures),
	)

	return all, nil
}

// headlinesForInterest は単一トピックの見出しをキャッシュ経由で取得する。
// FeedURLが設定されたトピックはRSS、NewsAPICategoryが設定されたトピックは
// NewsAPIから取得する。どちらも未設定の場合はnilを返す。
func (s *Service) headlinesForInterest(ctx context.Context, interest *model.Interest) ([]model.Headline, error) {
	var cacheKey string
	switch {
	case interest.FeedURL != "":
		cacheKey = "feed:" + interest.Slug
	case interest.NewsAPICategory != "":
		cacheKey = "category:" + interest.NewsAPICategory
	default:
		s.logger.Debug("取得元が設定されていないトピックをスキップします",
			slog.String("slug", interest.Slug),
		)
		return nil, nil
	}

	if headlines, ok := s.cache.Get(cacheKey); ok {
		s.logger.Debug("キャッシュされた見出しを使用します",
			slog.String("cache_key", cacheKey),
		)
		return headlines, nil
	}

	var headlines []model.Headline
	var err error
	if interest.FeedURL != "" {
		headlines, err = s.rss.Fetch(ctx, interest.FeedURL, interest.Slug)
	} else {
		headlines, err = s.client.TopHeadlines(ctx, interest.NewsAPICategory)
	}
	if err != nil {
		return nil, err
	}

	s.cache.Set(cacheKey, headlines)
	return headlines, nil
}
