// Package openai はOpenAI Chat Completions APIによるダイジェスト本文の生成を提供する。
package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/security"
)

// defaultEndpoint はOpenAI Chat Completions APIのエンドポイント。
const defaultEndpoint = "https://api.openai.com/v1/chat/completions"

// temperature はダイジェスト生成時のサンプリング温度。
const temperature = 0.7

// Result はダイジェスト生成の結果。
type Result struct {
	// Content はサニタイズ済みのMarkdown本文。
	Content string
	// Summary はExecutive Summaryから抽出した短い要約。
	Summary string
	// WordCount は本文の語数。
	WordCount int
}

// Generator はダイジェスト本文生成のインターフェース。
// ダイジェスト生成のオーケストレータから使用される。
type Generator interface {
	// GenerateDigest は見出し一覧からMarkdownダイジェストを生成する。
	// 見出しが空の場合はAPIを呼び出さずプレースホルダ本文を返す。
	// 生成失敗時はGENERATION_FAILEDエラーを返す。
	GenerateDigest(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*Result, error)
}

// Client はOpenAI APIのクライアント。
type Client struct {
	httpClient        *http.Client
	logger            *slog.Logger
	markdownSanitizer security.MarkdownSanitizer
	headlineSanitizer security.HeadlineSanitizer
	apiKey            string
	model             string
	maxTokens         int
	endpoint          string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(
	httpClient *http.Client,
	logger *slog.Logger,
	markdownSanitizer security.MarkdownSanitizer,
	headlineSanitizer security.HeadlineSanitizer,
	apiKey, model string,
	maxTokens int,
) *Client {
	return &Client{
		httpClient:        httpClient,
		logger:            logger,
		markdownSanitizer: markdownSanitizer,
		headlineSanitizer: headlineSanitizer,
		apiKey:            apiKey,
		model:             model,
		maxTokens:         maxTokens,
		endpoint:          defaultEndpoint,
	}
}

// chatRequest はChat Completions APIのリクエストボディ。
type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatResponse はChat Completions APIのレスポンスボディ。
type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// GenerateDigest は見出し一覧からMarkdownダイジェストを生成する。
func (c *Client) GenerateDigest(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*Result, error) {
	if len(headlines) == 0 {
		c.logger.Warn("見出しがないためプレースホルダダイジェストを生成します",
			slog.String("digest_date", digestDate),
		)
		return c.placeholderResult(digestDate), nil
	}

	reqBody, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: digestSystemPrompt},
			{Role: "user", Content: buildUserPrompt(c.headlineSanitizer, headlines, digestDate, interests)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("リクエストボディのJSON変換に失敗しました: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("OpenAI APIの呼び出しに失敗しました",
			slog.String("error", err.Error()),
		)
		return nil, model.NewGenerationFailedError("OpenAI APIへの接続に失敗しました")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, model.NewGenerationFailedError("レスポンスボディの読み取りに失敗しました")
	}

	var result chatResponse
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Error("OpenAIレスポンスのパースに失敗しました",
			slog.String("error", err.Error()),
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, model.NewGenerationFailedError("OpenAI APIのレスポンスが不正です")
	}

	if resp.StatusCode != http.StatusOK {
		message := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != nil && result.Error.Message != "" {
			message = result.Error.Message
		}
		c.logger.Error("OpenAI APIがエラーを返しました",
			slog.Int("http_status", resp.StatusCode),
			slog.String("api_message", message),
		)
		return nil, model.NewGenerationFailedError(message)
	}

	if len(result.Choices) == 0 {
		return nil, model.NewGenerationFailedError("OpenAI APIのレスポンスに候補が含まれていません")
	}

	content := c.markdownSanitizer.Sanitize(result.Choices[0].Message.Content)
	wordCount := len(strings.Fields(content))

	c.logger.Info("ダイジェストを生成しました",
		slog.String("digest_date", digestDate),
		slog.Int("word_count", wordCount),
		slog.Int("headline_count", len(headlines)),
	)

	return &Result{
		Content:   content,
		Summary:   extractSummary(content, defaultSummaryLength),
		WordCount: wordCount,
	}, nil
}

// placeholderResult は見出しがない場合のプレースホルダダイジェストを生成する。
func (c *Client) placeholderResult(digestDate string) *Result {
	content := fmt.Sprintf(`# Daily News Digest - %s

**Executive Summary:** No news articles available for today's digest.

## Key Takeaways

- No news articles were available for the selected interests.`, digestDate)

	content = c.markdownSanitizer.Sanitize(content)
	return &Result{
		Content:   content,
		Summary:   "No news available",
		WordCount: len(strings.Fields(content)),
	}
}
