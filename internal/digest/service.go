// Package digest はダイジェスト生成のオーケストレーションを提供する。
//
// 生成フロー: べき等チェック → PENDING行の作成 → 見出し取得 → 本文生成 →
// COMPLETED/FAILEDへの更新。スケジュール実行と手動実行の両方が同じ経路を通る。
package digest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/hitoshi/pressroom/internal/metrics"
	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/news"
	"github.com/hitoshi/pressroom/internal/openai"
	"github.com/hitoshi/pressroom/internal/repository"
)

// noInterestsMessage はトピック未選択ユーザー向けのプレースホルダ文言。
const noInterestsMessage = "No interests selected. Please add interests to receive personalized digests."

// Service はダイジェストの生成と参照を統括するサービス層。
type Service struct {
	userRepo     repository.UserRepository
	interestRepo repository.InterestRepository
	digestRepo   repository.DigestRepository
	headlines    news.HeadlineProvider
	generator    openai.Generator
	collector    metrics.MetricsCollector
	logger       *slog.Logger
	now          func() time.Time // テスト用に時計を差し替え可能
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	interestRepo repository.InterestRepository,
	digestRepo repository.DigestRepository,
	headlines news.HeadlineProvider,
	generator openai.Generator,
	collector metrics.MetricsCollector,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:     userRepo,
		interestRepo: interestRepo,
		digestRepo:   digestRepo,
		headlines:    headlines,
		generator:    generator,
		collector:    collector,
		logger:       logger,
		now:          time.Now,
	}
}

// Generate はユーザーのダイジェストを生成する。
// スケジュール実行と手動実行（POST /api/digests/generate）の共通エントリポイント。
//
// digestDateがゼロ値の場合はUTCの前日が使用される。
// force=falseの場合、同一(ユーザー, 日付)の完了済みダイジェストが存在すれば
// それをそのまま返す（べき等）。古いPENDING/FAILED行は削除して作り直す。
// force=trueの場合は既存ダイジェストを削除して再生成する。
//
// 並行する生成同士の競合はストアの一意制約が裁定し、
// 後着はDIGEST_IN_PROGRESSエラーを受け取る。
func (s *Service) Generate(ctx context.Context, userID string, digestDate time.Time, force bool) (*model.Digest, error) {
	if digestDate.IsZero() {
		digestDate = model.ContentDate(s.now())
	}

	s.logger.Debug("ダイジェスト生成を開始します",
		slog.String("user_id", userID),
		slog.String("digest_date", digestDate.Format("2006-01-02")),
		slog.Bool("force", force),
	)

	// べき等チェック
	existing, err := s.digestRepo.FindByUserAndDate(ctx, userID, digestDate)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if !force && existing.Status == model.DigestStatusCompleted {
			s.logger.Debug("既存の完了済みダイジェストを返します",
				slog.String("user_id", userID),
				slog.String("digest_id", existing.ID),
			)
			s.collector.RecordDigestSkipped()
			return existing, nil
		}
		// force=true、または前回の実行が残したPENDING/FAILED行は削除して作り直す
		if force {
			s.logger.Info("ダイジェストを強制再生成します",
				slog.String("user_id", userID),
				slog.String("digest_date", digestDate.Format("2006-01-02")),
			)
		}
		if _, err := s.digestRepo.DeleteByID(ctx, existing.ID, userID); err != nil {
			return nil, err
		}
	}

	// ユーザー存在チェック
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, model.NewUserNotFoundError(userID)
	}

	// 購読トピックの取得
	interests, err := s.interestRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, err
	}

	// トピック未選択のユーザーにはプレースホルダの完了済みダイジェストを作成する
	if len(interests) == 0 {
		s.logger.Warn("トピックが選択されていません",
			slog.String("user_id", userID),
		)
		return s.createPlaceholderDigest(ctx, userID, digestDate)
	}

	slugs := make([]string, len(interests))
	for i, interest := range interests {
		slugs[i] = interest.Slug
	}

	// PENDING行を先に作成する。一意制約違反はここで検出され、
	// 並行生成の後着にはDIGEST_IN_PROGRESSが返る。
	pending := &model.Digest{
		ID:                uuid.New().String(),
		UserID:            userID,
		DigestDate:        digestDate,
		Status:            model.DigestStatusPending,
		InterestsIncluded: slugs,
	}
	if err := s.digestRepo.Create(ctx, pending); err != nil {
		return nil, err
	}

	digest, err := s.runGeneration(ctx, pending, interests)
	if err != nil {
		return nil, err
	}
	return digest, nil
}

// runGeneration はPENDING行の作成後の生成本体。
// 失敗時はダイジェストをFAILEDに更新してからエラーを返す。
func (s *Service) runGeneration(ctx context.Context, digest *model.Digest, interests []*model.Interest) (*model.Digest, error) {
	startedAt := s.now()

	headlines, err := s.headlines.HeadlinesForInterests(ctx, interests)
	if err != nil {
		s.markFailed(ctx, digest, err)
		return nil, err
	}
	s.collector.RecordHeadlinesFetched(len(headlines))

	result, err := s.generator.GenerateDigest(ctx, headlines, model.FormatDigestDate(digest.DigestDate), digest.InterestsIncluded)
	if err != nil {
		s.markFailed(ctx, digest, err)
		return nil, err
	}

	elapsed := s.now().Sub(startedAt)

	digest.Content = result.Content
	digest.Summary = result.Summary
	digest.WordCount = result.WordCount
	digest.HeadlinesUsed = headlines
	digest.Status = model.DigestStatusCompleted
	digest.GenerationTimeMs = int(elapsed.Milliseconds())
	digest.ErrorMessage = ""

	if err := s.digestRepo.Update(ctx, digest); err != nil {
		return nil, err
	}

	s.collector.RecordDigestGenerated()
	s.collector.RecordGenerationLatency(elapsed)

	s.logger.Info("ダイジェストを生成しました",
		slog.String("user_id", digest.UserID),
		slog.String("digest_id", digest.ID),
		slog.Int("word_count", result.WordCount),
		slog.Int("headline_count", len(headlines)),
		slog.Int64("generation_time_ms", elapsed.Milliseconds()),
	)

	return digest, nil
}

// markFailed はダイジェストをFAILEDに更新する。
// 更新自体の失敗はログ出力のみで、元のエラーを優先する。
func (s *Service) markFailed(ctx context.Context, digest *model.Digest, cause error) {
	s.logger.Error("ダイジェスト生成に失敗しました",
		slog.String("user_id", digest.UserID),
		slog.String("digest_id", digest.ID),
		slog.String("error", cause.Error()),
	)

	digest.Status = model.DigestStatusFailed
	digest.ErrorMessage = cause.Error()
	digest.Content = "Digest generation failed. Please try again later."

	if err := s.digestRepo.Update(ctx, digest); err != nil {
		s.logger.Error("FAILED状態への更新に失敗しました",
			slog.String("digest_id", digest.ID),
			slog.String("error", err.Error()),
		)
	}

	s.collector.RecordDigestFailed(failureReason(cause))
}

// failureReason はメトリクスのラベル用にエラーコードを取り出す。
func failureReason(err error) string {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return "INTERNAL"
}

// createPlaceholderDigest はトピック未選択ユーザー向けの完了済みダイジェストを作成する。
func (s *Service) createPlaceholderDigest(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
	content := fmt.Sprintf("# Daily News Digest - %s\n\n**Executive Summary:** %s\n\n## Key Takeaways\n\n- %s",
		model.FormatDigestDate(digestDate), noInterestsMessage, noInterestsMessage)

	digest := &model.Digest{
		ID:                uuid.New().String(),
		UserID:            userID,
		DigestDate:        digestDate,
		Content:           content,
		Summary:           noInterestsMessage,
		WordCount:         len(strings.Fields(content)),
		Status:            model.DigestStatusCompleted,
		InterestsIncluded: []string{},
		HeadlinesUsed:     []model.Headline{},
	}

	if err := s.digestRepo.Create(ctx, digest); err != nil {
		return nil, err
	}

	return digest, nil
}
