// Package news はニュース見出しの取得機能を提供する。
// NewsAPIのtop-headlinesエンドポイントとRSSフィードの2系統の取得元を持ち、
// カテゴリ単位のキャッシュとトピック横断の集約を行う。
package news

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hitoshi/pressroom/internal/model"
)

// defaultBaseURL はNewsAPIのベースURL。
const defaultBaseURL = "https://newsapi.org/v2"

// Client はNewsAPIのクライアント。
// top-headlinesエンドポイントからカテゴリ別の見出しを取得する。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	country    string
	pageSize   int
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey, country string, pageSize int) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		country:    country,
		pageSize:   pageSize,
		baseURL:    defaultBaseURL,
	}
}

// topHeadlinesResponse はNewsAPIのtop-headlinesレスポンス。
type topHeadlinesResponse struct {
	Status   string           `json:"status"`
	Message  string           `json:"message"`
	Articles []newsAPIArticle `json:"articles"`
}

// newsAPIArticle はNewsAPIの記事1件。
type newsAPIArticle struct {
	Source struct {
		Name string `json:"name"`
	} `json:"source"`
	Title       string `json:"title"`
	Description string `json:"description"`
	URL         string `json:"url"`
	PublishedAt string `json:"publishedAt"`
}

// TopHeadlines は指定カテゴリのトップ見出しを取得する。
// タイトルが空の記事は除外される。取得失敗時はエラーを返す。
func (c *Client) TopHeadlines(ctx context.Context, category string) ([]model.Headline, error) {
	reqURL, err := url.Parse(c.baseURL + "/top-headlines")
	if err != nil {
		return nil, fmt.Errorf("エンドポイントURLのパースに失敗しました: %w", err)
	}

	q := reqURL.Query()
	q.Set("country", c.country)
	q.Set("pageSize", strconv.Itoa(c.pageSize))
	if category != "" {
		q.Set("category", category)
	}
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("X-Api-Key", c.apiKey)
	req.Header.Set("User-Agent", "Pressroom/1.0 News Digest")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("NewsAPIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
			slog.String("category", category),
		)
		return nil, fmt.Errorf("NewsAPIへの接続に失敗しました: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	var result topHeadlinesResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("NewsAPIレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("レスポンスJSONのパースに失敗しました: %w", err)
	}

	// NewsAPIはエラー詳細をボディのstatus/messageで返すため、
	// HTTPステータスよりもボディの判定を優先する。
	if result.Status != "ok" {
		c.logger.Error("NewsAPIがエラーを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("api_message", result.Message),
			slog.String("category", category),
		)
		if result.Message != "" {
			return nil, fmt.Errorf("NewsAPIがエラーを返しました: %s", result.Message)
		}
		return nil, fmt.Errorf("NewsAPIがステータス %d を返しました", resp.StatusCode)
	}

	headlines := make([]model.Headline, 0, len(result.Articles))
	for _, a := range result.Articles {
		if a.Title == "" {
			continue
		}
		source := a.Source.Name
		if source == "" {
			source = "Unknown"
		}
		headlines = append(headlines, model.Headline{
			Title:       a.Title,
			Description: a.Description,
			Source:      source,
			URL:         a.URL,
			PublishedAt: a.PublishedAt,
			Category:    category,
		})
	}

	c.logger.Debug("NewsAPIから見出しを取得しました",
		slog.String("category", category),
		slog.Int("headline_count", len(headlines)),
	)

	return headlines, nil
}
