// Package digestrun はダイジェスト生成のスケジューリングドライバを提供する。
// 固定間隔のティッカーで配信時刻ウィンドウに入ったユーザーを拾い、
// ユーザーごとにオーケストレータを呼び出す。
package digestrun

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
	"github.com/hitoshi/pressroom/internal/repository"
	"github.com/hitoshi/pressroom/internal/schedule"
)

// DigestGeneratorService はダイジェスト生成の実行インターフェース。
// digest.Serviceの部分集合として定義する。
type DigestGeneratorService interface {
	// Generate はユーザーのダイジェストを生成する。手動実行と同じ経路。
	Generate(ctx context.Context, userID string, digestDate time.Time, force bool) (*model.Digest, error)
}

// Scheduler はダイジェスト生成バッチのスケジューリングを行う。
//
// バッチは自分自身と重ならない。前回のバッチが実行中に次のティックが来た場合、
// そのティックは1回分としてスキップされる（溜まったティックをまとめて消化しない）。
type Scheduler struct {
	userRepo     repository.UserRepository
	interestRepo repository.InterestRepository
	digestRepo   repository.DigestRepository
	generator    DigestGeneratorService
	logger       *slog.Logger
	windowLength time.Duration
	now          func() time.Time // テスト用に時計を差し替え可能

	mu sync.Mutex // バッチの単独実行を保証する
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// windowLengthが0以下の場合はデフォルトのウィンドウ長を使用する。
func NewScheduler(
	userRepo repository.UserRepository,
	interestRepo repository.InterestRepository,
	digestRepo repository.DigestRepository,
	generator DigestGeneratorService,
	logger *slog.Logger,
	windowLength time.Duration,
) *Scheduler {
	if windowLength <= 0 {
		windowLength = schedule.DefaultWindowLength
	}
	return &Scheduler{
		userRepo:     userRepo,
		interestRepo: interestRepo,
		digestRepo:   digestRepo,
		generator:    generator,
		logger:       logger,
		windowLength: windowLength,
		now:          time.Now,
	}
}

// Start は固定間隔のティッカーでスケジューラを起動する。
// 起動直後に1回実行し、以降はコンテキストがキャンセルされるまで継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("ダイジェストスケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Duration("window_length", s.windowLength),
	)

	// 起動直後に1回実行
	if err := s.RunOnce(ctx); err != nil {
		s.logger.Error("ダイジェストバッチの実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("ダイジェストスケジューラを停止しました")
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.Error("ダイジェストバッチの実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

// RunOnce はウィンドウ内のユーザーを1回分処理する。
// 前回のバッチが実行中の場合は何もせずに戻る。
func (s *Scheduler) RunOnce(ctx context.Context) error {
	if !s.mu.TryLock() {
		s.logger.Warn("前回のダイジェストバッチが実行中のためスキップします")
		return nil
	}
	defer s.mu.Unlock()

	start := s.now()

	// ウィンドウと対象日付はバッチごとに1回だけ計算する。
	// バッチ実行中に日付が変わっても同一バッチ内では一貫した値を使う。
	window := schedule.Compute(start, s.windowLength)
	digestDate := model.ContentDate(start)

	users, err := s.userRepo.ListDueInWindow(ctx, window)
	if err != nil {
		return err
	}

	if len(users) == 0 {
		s.logger.Debug("ウィンドウ内の配信対象ユーザーはいません",
			slog.String("window_start", window.Start.String()),
			slog.String("window_end", window.End.String()),
		)
		return nil
	}

	s.logger.Info("ダイジェストバッチを開始します",
		slog.Int("user_count", len(users)),
		slog.String("digest_date", digestDate.Format("2006-01-02")),
		slog.String("window_start", window.Start.String()),
		slog.String("window_end", window.End.String()),
	)

	var generated, skipped, failed int

	for _, user := range users {
		select {
		case <-ctx.Done():
			s.logger.Warn("キャンセルによりダイジェストバッチを中断します",
				slog.Int("remaining", len(users)-generated-skipped-failed),
			)
			return ctx.Err()
		default:
		}

		switch s.processUser(ctx, user, digestDate) {
		case outcomeGenerated:
			generated++
		case outcomeSkipped:
			skipped++
		case outcomeFailed:
			failed++
		}
	}

	duration := s.now().Sub(start)
	s.logger.Info("ダイジェストバッチが完了しました",
		slog.Int("user_count", len(users)),
		slog.Int("generated", generated),
		slog.Int("skipped", skipped),
		slog.Int("failed", failed),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// batchOutcome は1ユーザー分の処理結果。
type batchOutcome int

const (
	outcomeGenerated batchOutcome = iota
	outcomeSkipped
	outcomeFailed
)

// processUser は1ユーザー分のダイジェスト生成を行う。
// エラーはログに記録するだけで他のユーザーの処理には影響させない。
func (s *Scheduler) processUser(ctx context.Context, user *model.User, digestDate time.Time) batchOutcome {
	// オーケストレータを呼ぶ前の軽量チェック。
	// 外部API呼び出しの前に明らかなスキップ対象を落とす。
	count, err := s.interestRepo.CountByUserID(ctx, user.ID)
	if err != nil {
		s.logger.Error("購読トピック数の取得に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return outcomeFailed
	}
	if count == 0 {
		s.logger.Debug("トピック未選択のためスキップします",
			slog.String("user_id", user.ID),
		)
		return outcomeSkipped
	}

	exists, err := s.digestRepo.CompletedExists(ctx, user.ID, digestDate)
	if err != nil {
		s.logger.Error("ダイジェスト存在チェックに失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return outcomeFailed
	}
	if exists {
		return outcomeSkipped
	}

	if _, err := s.generator.Generate(ctx, user.ID, digestDate, false); err != nil {
		// 手動実行との競合は失敗ではなく生成中として扱う
		if model.IsDigestInProgress(err) {
			s.logger.Debug("ダイジェストは別の実行経路で生成中です",
				slog.String("user_id", user.ID),
			)
			return outcomeSkipped
		}
		s.logger.Error("ユーザーのダイジェスト生成に失敗しました",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return outcomeFailed
	}

	return outcomeGenerated
}
