package digest

import (
	"context"
	"log/slog"
	"time"

	"github.com/hitoshi/pressroom/internal/model"
)

// DigestPage はページネーションされたダイジェスト一覧。
type DigestPage struct {
	Digests []*model.Digest
	Total   int
	Page    int
	PerPage int
	HasNext bool
}

// GetByID は指定IDのダイジェストを所有者チェック付きで取得する。
// 見つからない場合はDIGEST_NOT_FOUNDエラーを返す。
func (s *Service) GetByID(ctx context.Context, digestID, userID string) (*model.Digest, error) {
	digest, err := s.digestRepo.FindByID(ctx, digestID, userID)
	if err != nil {
		return nil, err
	}
	if digest == nil {
		return nil, model.NewDigestNotFoundError(digestID)
	}
	return digest, nil
}

// GetByDate は指定日付のダイジェストを取得する。
// 見つからない場合はDIGEST_NOT_FOUNDエラーを返す。
func (s *Service) GetByDate(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error) {
	digest, err := s.digestRepo.FindByUserAndDate(ctx, userID, digestDate)
	if err != nil {
		return nil, err
	}
	if digest == nil {
		return nil, model.NewDigestNotFoundError(digestDate.Format("2006-01-02"))
	}
	return digest, nil
}

// List はユーザーのダイジェストをdigest_date降順でページネーションして返す。
func (s *Service) List(ctx context.Context, userID string, page, perPage int) (*DigestPage, error) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 10
	}

	digests, total, err := s.digestRepo.ListByUser(ctx, userID, page, perPage)
	if err != nil {
		return nil, err
	}

	return &DigestPage{
		Digests: digests,
		Total:   total,
		Page:    page,
		PerPage: perPage,
		HasNext: page*perPage < total,
	}, nil
}

// Latest はユーザーの最新のダイジェストを返す。
// 1件も存在しない場合はDIGEST_NOT_FOUNDエラーを返す。
func (s *Service) Latest(ctx context.Context, userID string) (*model.Digest, error) {
	digest, err := s.digestRepo.Latest(ctx, userID)
	if err != nil {
		return nil, err
	}
	if digest == nil {
		return nil, model.NewDigestNotFoundError("latest")
	}
	return digest, nil
}

// Delete は指定IDのダイジェストを所有者チェック付きで削除する。
// 見つからない場合はDIGEST_NOT_FOUNDエラーを返す。
func (s *Service) Delete(ctx context.Context, digestID, userID string) error {
	deleted, err := s.digestRepo.DeleteByID(ctx, digestID, userID)
	if err != nil {
		return err
	}
	if !deleted {
		return model.NewDigestNotFoundError(digestID)
	}

	s.logger.Info("ダイジェストを削除しました",
		slog.String("digest_id", digestID),
		slog.String("user_id", userID),
	)
	return nil
}
