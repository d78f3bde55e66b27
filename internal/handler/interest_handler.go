package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/hitoshi/pressroom/internal/middleware"
	"github.com/hitoshi/pressroom/internal/model"
)

// InterestListerInterface はトピックカタログの参照に必要なインターフェース。
// repository.InterestRepositoryの部分集合として定義する。
type InterestListerInterface interface {
	// ListActive は有効なトピックを表示順で返す。
	ListActive(ctx context.Context) ([]*model.Interest, error)
	// ListByUserID はユーザーが購読しているトピックを返す。
	ListByUserID(ctx context.Context, userID string) ([]*model.Interest, error)
}

// InterestHandler はトピックカタログのHTTPハンドラー。
type InterestHandler struct {
	lister InterestListerInterface
}

// NewInterestHandler はInterestHandlerを生成する。
func NewInterestHandler(lister InterestListerInterface) *InterestHandler {
	return &InterestHandler{lister: lister}
}

// interestResponse はトピックのAPIレスポンス。
type interestResponse struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	Slug            string `json:"slug"`
	Description     string `json:"description"`
	NewsAPICategory string `json:"newsapi_category,omitempty"`
	FeedURL         string `json:"feed_url,omitempty"`
	DisplayOrder    int    `json:"display_order"`
}

// ListInterests は選択可能なトピック一覧を取得する。
// GET /api/interests
func (h *InterestHandler) ListInterests(w http.ResponseWriter, r *http.Request) {
	interests, err := h.lister.ListActive(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toInterestResponses(interests))
}

// ListMyInterests は認証ユーザーが購読しているトピック一覧を取得する。
// GET /api/interests/me
func (h *InterestHandler) ListMyInterests(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	interests, err := h.lister.ListByUserID(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toInterestResponses(interests))
}

// toInterestResponses はmodel.InterestのスライスをAPIレスポンスに変換する。
func toInterestResponses(interests []*model.Interest) []interestResponse {
	resp := make([]interestResponse, 0, len(interests))
	for _, interest := range interests {
		resp = append(resp, interestResponse{
			ID:              interest.ID,
			Name:            interest.Name,
			Slug:            interest.Slug,
			Description:     interest.Description,
			NewsAPICategory: interest.NewsAPICategory,
			FeedURL:         interest.FeedURL,
			DisplayOrder:    interest.DisplayOrder,
		})
	}
	return resp
}
