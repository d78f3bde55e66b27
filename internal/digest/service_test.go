package digest

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/openai"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

var (
	testUserID     = "11111111-1111-1111-1111-111111111111"
	testDigestDate = time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
)

// testFixture はGenerate系テストの共通セットアップ。
type testFixture struct {
	users     *mockUserRepo
	interests *mockInterestRepo
	digests   *mockDigestRepo
	provider  *mockHeadlineProvider
	generator *mockGenerator
	collector *nopCollector
	svc       *Service
}

// newFixture は正常系のデフォルト動作を持つフィクスチャを生成する。
func newFixture() *testFixture {
	f := &testFixture{
		users: &mockUserRepo{
			findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
				return &model.User{ID: id, Email: "user@example.com", IsActive: true}, nil
			},
		},
		interests: &mockInterestRepo{
			listByUserIDFunc: func(ctx context.Context, userID string) ([]*model.Interest, error) {
				return []*model.Interest{
					{Slug: "technology", NewsAPICategory: "technology"},
					{Slug: "business", NewsAPICategory: "business"},
				}, nil
			},
		},
		digests: &mockDigestRepo{
			findByUserAndDateFunc: func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
				return nil, nil
			},
			createFunc: func(ctx context.Context, digest *model.Digest) error { return nil },
			updateFunc: func(ctx context.Context, digest *model.Digest) error { return nil },
			deleteByIDFunc: func(ctx context.Context, id, userID string) (bool, error) {
				return true, nil
			},
		},
		provider: &mockHeadlineProvider{
			headlinesFunc: func(ctx context.Context, interests []*model.Interest) ([]model.Headline, error) {
				return []model.Headline{
					{Title: "記事1", URL: "https://example.com/1", InterestSlug: "technology"},
					{Title: "記事2", URL: "https://example.com/2", InterestSlug: "business"},
				}, nil
			},
		},
		generator: &mockGenerator{
			generateFunc: func(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*openai.Result, error) {
				return &openai.Result{
					Content:   "# Daily News Digest - " + digestDate + "\n\nContent body here.",
					Summary:   "Summary text",
					WordCount: 10,
				}, nil
			},
		},
		collector: &nopCollector{},
	}
	f.svc = NewService(f.users, f.interests, f.digests, f.provider, f.generator, f.collector, testLogger())
	return f
}

// TestGenerate_Success は正常な生成フローを検証する。
func TestGenerate_Success(t *testing.T) {
	f := newFixture()

	var created, updated *model.Digest
	f.digests.createFunc = func(ctx context.Context, digest *model.Digest) error {
		copied := *digest
		created = &copied
		return nil
	}
	f.digests.updateFunc = func(ctx context.Context, digest *model.Digest) error {
		copied := *digest
		updated = &copied
		return nil
	}

	// 生成時間の計測を決定的にする
	clock := time.Date(2025, 1, 15, 8, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		clock = clock.Add(500 * time.Millisecond)
		return clock
	}

	digest, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	// PENDING行が先に作成される
	if created == nil {
		t.Fatal("Create was not called")
	}
	if created.Status != model.DigestStatusPending {
		t.Errorf("created.Status = %q, want pending", created.Status)
	}
	if len(created.InterestsIncluded) != 2 || created.InterestsIncluded[0] != "technology" {
		t.Errorf("created.InterestsIncluded = %v", created.InterestsIncluded)
	}
	if created.ID == "" {
		t.Error("created.ID is empty")
	}

	// COMPLETEDに更新される
	if updated == nil {
		t.Fatal("Update was not called")
	}
	if updated.Status != model.DigestStatusCompleted {
		t.Errorf("updated.Status = %q, want completed", updated.Status)
	}
	if updated.WordCount != 10 || updated.Summary != "Summary text" {
		t.Errorf("updated = %+v", updated)
	}
	if len(updated.HeadlinesUsed) != 2 {
		t.Errorf("len(HeadlinesUsed) = %d, want 2", len(updated.HeadlinesUsed))
	}
	if updated.GenerationTimeMs <= 0 {
		t.Errorf("GenerationTimeMs = %d, want > 0", updated.GenerationTimeMs)
	}

	if digest.Status != model.DigestStatusCompleted {
		t.Errorf("digest.Status = %q", digest.Status)
	}

	// メトリクス記録
	if f.collector.generated != 1 {
		t.Errorf("generated = %d, want 1", f.collector.generated)
	}
	if f.collector.headlines != 2 {
		t.Errorf("headlines = %d, want 2", f.collector.headlines)
	}
	if len(f.collector.latencies) != 1 {
		t.Errorf("latencies = %v", f.collector.latencies)
	}
}

// TestGenerate_Idempotent は完了済みダイジェストがそのまま返ることを検証する。
func TestGenerate_Idempotent(t *testing.T) {
	f := newFixture()

	existing := &model.Digest{
		ID:         "existing-id",
		UserID:     testUserID,
		DigestDate: testDigestDate,
		Status:     model.DigestStatusCompleted,
		Content:    "既存の本文",
	}
	f.digests.findByUserAndDateFunc = func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
		return existing, nil
	}
	f.digests.createFunc = func(ctx context.Context, digest *model.Digest) error {
		t.Error("べき等チェック後にCreateが呼ばれた")
		return nil
	}

	digest, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if digest.ID != "existing-id" {
		t.Errorf("digest.ID = %q, want existing-id", digest.ID)
	}
	if f.collector.skipped != 1 {
		t.Errorf("skipped = %d, want 1", f.collector.skipped)
	}
}

// TestGenerate_ForceRegenerates はforce=trueで既存が削除され再生成されることを検証する。
func TestGenerate_ForceRegenerates(t *testing.T) {
	f := newFixture()

	existing := &model.Digest{
		ID:         "existing-id",
		UserID:     testUserID,
		DigestDate: testDigestDate,
		Status:     model.DigestStatusCompleted,
	}
	f.digests.findByUserAndDateFunc = func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
		return existing, nil
	}

	deletedID := ""
	f.digests.deleteByIDFunc = func(ctx context.Context, id, userID string) (bool, error) {
		deletedID = id
		return true, nil
	}

	digest, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, true)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if deletedID != "existing-id" {
		t.Errorf("deleted ID = %q, want existing-id", deletedID)
	}
	if digest.ID == "existing-id" {
		t.Error("再生成されたダイジェストのIDが既存と同じ")
	}
	if digest.Status != model.DigestStatusCompleted {
		t.Errorf("digest.Status = %q", digest.Status)
	}
}

// TestGenerate_StaleRowReplaced は残留したFAILED行が削除されて作り直されることを検証する。
func TestGenerate_StaleRowReplaced(t *testing.T) {
	f := newFixture()

	f.digests.findByUserAndDateFunc = func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
		return &model.Digest{
			ID:         "stale-id",
			UserID:     testUserID,
			DigestDate: testDigestDate,
			Status:     model.DigestStatusFailed,
		}, nil
	}

	deleted := false
	f.digests.deleteByIDFunc = func(ctx context.Context, id, userID string) (bool, error) {
		deleted = id == "stale-id"
		return true, nil
	}

	digest, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}
	if !deleted {
		t.Error("残留行が削除されていない")
	}
	if digest.Status != model.DigestStatusCompleted {
		t.Errorf("digest.Status = %q", digest.Status)
	}
}

// TestGenerate_NoInterests はトピック未選択時のプレースホルダ作成を検証する。
func TestGenerate_NoInterests(t *testing.T) {
	f := newFixture()

	f.interests.listByUserIDFunc = func(ctx context.Context, userID string) ([]*model.Interest, error) {
		return nil, nil
	}

	var created *model.Digest
	f.digests.createFunc = func(ctx context.Context, digest *model.Digest) error {
		created = digest
		return nil
	}

	digest, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	if created == nil {
		t.Fatal("Create was not called")
	}
	if digest.Status != model.DigestStatusCompleted {
		t.Errorf("digest.Status = %q, want completed", digest.Status)
	}
	if !strings.Contains(digest.Content, "No interests selected") {
		t.Errorf("Content = %q", digest.Content)
	}
	if len(digest.InterestsIncluded) != 0 || len(digest.HeadlinesUsed) != 0 {
		t.Errorf("placeholder digest = %+v", digest)
	}
	if digest.WordCount == 0 {
		t.Error("WordCount = 0")
	}
}

// TestGenerate_UserNotFound はユーザー未検出エラーを検証する。
func TestGenerate_UserNotFound(t *testing.T) {
	f := newFixture()
	f.users.findByIDFunc = func(ctx context.Context, id string) (*model.User, error) {
		return nil, nil
	}

	_, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Errorf("err = %v, want USER_NOT_FOUND", err)
	}
}

// TestGenerate_HeadlineFetchFailure は見出し取得失敗時のFAILED遷移を検証する。
func TestGenerate_HeadlineFetchFailure(t *testing.T) {
	f := newFixture()

	fetchErr := model.NewHeadlineFetchError("NewsAPI down")
	f.provider.headlinesFunc = func(ctx context.Context, interests []*model.Interest) ([]model.Headline, error) {
		return nil, fetchErr
	}

	var updated *model.Digest
	f.digests.updateFunc = func(ctx context.Context, digest *model.Digest) error {
		updated = digest
		return nil
	}

	_, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("err = %v, want fetch error", err)
	}

	if updated == nil {
		t.Fatal("FAILED更新が行われていない")
	}
	if updated.Status != model.DigestStatusFailed {
		t.Errorf("updated.Status = %q, want failed", updated.Status)
	}
	if updated.ErrorMessage == "" {
		t.Error("ErrorMessage is empty")
	}
	if len(f.collector.failed) != 1 || f.collector.failed[0] != model.ErrCodeHeadlineFetchFailed {
		t.Errorf("failed = %v", f.collector.failed)
	}
}

// TestGenerate_GeneratorFailure は本文生成失敗時のFAILED遷移を検証する。
func TestGenerate_GeneratorFailure(t *testing.T) {
	f := newFixture()

	f.generator.generateFunc = func(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*openai.Result, error) {
		return nil, model.NewGenerationFailedError("timeout")
	}

	var updated *model.Digest
	f.digests.updateFunc = func(ctx context.Context, digest *model.Digest) error {
		updated = digest
		return nil
	}

	_, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if err == nil {
		t.Fatal("expected error")
	}

	if updated == nil || updated.Status != model.DigestStatusFailed {
		t.Fatalf("updated = %+v", updated)
	}
	if len(f.collector.failed) != 1 || f.collector.failed[0] != model.ErrCodeGenerationFailed {
		t.Errorf("failed = %v", f.collector.failed)
	}
}

// TestGenerate_ConcurrentConflict は一意制約競合がそのまま伝播することを検証する。
func TestGenerate_ConcurrentConflict(t *testing.T) {
	f := newFixture()

	f.digests.createFunc = func(ctx context.Context, digest *model.Digest) error {
		return model.NewDigestInProgressError("2025-01-14")
	}

	_, err := f.svc.Generate(context.Background(), testUserID, testDigestDate, false)
	if !model.IsDigestInProgress(err) {
		t.Errorf("err = %v, want DIGEST_IN_PROGRESS", err)
	}
}

// TestGenerate_DefaultDate は日付省略時にUTC前日が使われることを検証する。
func TestGenerate_DefaultDate(t *testing.T) {
	f := newFixture()

	now := time.Date(2025, 1, 15, 8, 30, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return now }

	var lookupDate time.Time
	f.digests.findByUserAndDateFunc = func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
		lookupDate = digestDate
		return nil, nil
	}

	if _, err := f.svc.Generate(context.Background(), testUserID, time.Time{}, false); err != nil {
		t.Fatalf("Generate returned error: %v", err)
	}

	want := time.Date(2025, 1, 14, 0, 0, 0, 0, time.UTC)
	if !lookupDate.Equal(want) {
		t.Errorf("digest date = %v, want %v", lookupDate, want)
	}
}
