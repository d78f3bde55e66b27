package digest

import (
	"context"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/openai"
	"github.com/hitoshi/pressroom/internal/schedule"
)

// mockUserRepo はUserRepositoryのモック。
type mockUserRepo struct {
	findByIDFunc        func(ctx context.Context, id string) (*model.User, error)
	listDueInWindowFunc func(ctx context.Context, w schedule.Window) ([]*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return m.findByIDFunc(ctx, id)
}

func (m *mockUserRepo) ListDueInWindow(ctx context.Context, w schedule.Window) ([]*model.User, error) {
	return m.listDueInWindowFunc(ctx, w)
}

// mockInterestRepo はInterestRepositoryのモック。
type mockInterestRepo struct {
	listActiveFunc    func(ctx context.Context) ([]*model.Interest, error)
	listByUserIDFunc  func(ctx context.Context, userID string) ([]*model.Interest, error)
	countByUserIDFunc func(ctx context.Context, userID string) (int, error)
	seedFunc          func(ctx context.Context) (int, error)
}

func (m *mockInterestRepo) ListActive(ctx context.Context) ([]*model.Interest, error) {
	return m.listActiveFunc(ctx)
}

func (m *mockInterestRepo) ListByUserID(ctx context.Context, userID string) ([]*model.Interest, error) {
	return m.listByUserIDFunc(ctx, userID)
}

func (m *mockInterestRepo) CountByUserID(ctx context.Context, userID string) (int, error) {
	return m.countByUserIDFunc(ctx, userID)
}

func (m *mockInterestRepo) Seed(ctx context.Context) (int, error) {
	return m.seedFunc(ctx)
}

// mockDigestRepo はDigestRepositoryのモック。
type mockDigestRepo struct {
	createFunc            func(ctx context.Context, digest *model.Digest) error
	updateFunc            func(ctx context.Context, digest *model.Digest) error
	findByIDFunc          func(ctx context.Context, id, userID string) (*model.Digest, error)
	findByUserAndDateFunc func(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error)
	completedExistsFunc   func(ctx context.Context, userID string, digestDate time.Time) (bool, error)
	listByUserFunc        func(ctx context.Context, userID string, page, perPage int) ([]*model.Digest, int, error)
	latestFunc            func(ctx context.Context, userID string) (*model.Digest, error)
	deleteByIDFunc        func(ctx context.Context, id, userID string) (bool, error)
}

func (m *mockDigestRepo) Create(ctx context.Context, digest *model.Digest) error {
	return m.createFunc(ctx, digest)
}

func (m *mockDigestRepo) Update(ctx context.Context, digest *model.Digest) error {
	return m.updateFunc(ctx, digest)
}

func (m *mockDigestRepo) FindByID(ctx context.Context, id, userID string) (*model.Digest, error) {
	return m.findByIDFunc(ctx, id, userID)
}

func (m *mockDigestRepo) FindByUserAndDate(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
	return m.findByUserAndDateFunc(ctx, userID, digestDate)
}

func (m *mockDigestRepo) CompletedExists(ctx context.Context, userID string, digestDate time.Time) (bool, error) {
	return m.completedExistsFunc(ctx, userID, digestDate)
}

func (m *mockDigestRepo) ListByUser(ctx context.Context, userID string, page, perPage int) ([]*model.Digest, int, error) {
	return m.listByUserFunc(ctx, userID, page, perPage)
}

func (m *mockDigestRepo) Latest(ctx context.Context, userID string) (*model.Digest, error) {
	return m.latestFunc(ctx, userID)
}

func (m *mockDigestRepo) DeleteByID(ctx context.Context, id, userID string) (bool, error) {
	return m.deleteByIDFunc(ctx, id, userID)
}

// mockHeadlineProvider はnews.HeadlineProviderのモック。
type mockHeadlineProvider struct {
	headlinesFunc func(ctx context.Context, interests []*model.Interest) ([]model.Headline, error)
}

func (m *mockHeadlineProvider) HeadlinesForInterests(ctx context.Context, interests []*model.Interest) ([]model.Headline, error) {
	return m.headlinesFunc(ctx, interests)
}

// mockGenerator はopenai.Generatorのモック。
type mockGenerator struct {
	generateFunc func(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*openai.Result, error)
}

func (m *mockGenerator) GenerateDigest(ctx context.Context, headlines []model.Headline, digestDate string, interests []string) (*openai.Result, error) {
	return m.generateFunc(ctx, headlines, digestDate, interests)
}

// nopCollector はメトリクス呼び出しを記録するテスト用コレクタ。
type nopCollector struct {
	generated int
	failed    []string
	skipped   int
	latencies []time.Duration
	headlines int
	rejected  []string
}

func (c *nopCollector) RecordDigestGenerated()              { c.generated++ }
func (c *nopCollector) RecordDigestFailed(reason string)    { c.failed = append(c.failed, reason) }
func (c *nopCollector) RecordDigestSkipped()                { c.skipped++ }
func (c *nopCollector) RecordGenerationLatency(d time.Duration) {
	c.latencies = append(c.latencies, d)
}
func (c *nopCollector) RecordHeadlinesFetched(count int)     { c.headlines += count }
func (c *nopCollector) RecordRateLimitRejection(scope string) { c.rejected = append(c.rejected, scope) }
