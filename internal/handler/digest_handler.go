// Package handler はHTTP APIハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/pressroom/internal/digest"
	"github.com/hitoshi/pressroom/internal/middleware"
	"github.com/hitoshi/pressroom/internal/model"
)

// DigestServiceInterface はダイジェストハンドラーが必要とするサービスインターフェース。
type DigestServiceInterface interface {
	// Generate はダイジェストを生成する。スケジューラと同一の経路。
	Generate(ctx context.Context, userID string, digestDate time.Time, force bool) (*model.Digest, error)
	// GetByID はダイジェストを所有者チェック付きで取得する。
	GetByID(ctx context.Context, digestID, userID string) (*model.Digest, error)
	// GetByDate は指定日付のダイジェストを取得する。
	GetByDate(ctx context.Context, userID string, digestDate time.Time) (*model.Digest, error)
	// List はダイジェスト一覧をページネーションして返す。
	List(ctx context.Context, userID string, page, perPage int) (*digest.DigestPage, error)
	// Latest は最新のダイジェストを返す。
	Latest(ctx context.Context, userID string) (*model.Digest, error)
	// Delete はダイジェストを削除する。
	Delete(ctx context.Context, digestID, userID string) error
}

// DigestHandler はダイジェスト管理のHTTPハンドラー。
type DigestHandler struct {
	service DigestServiceInterface
}

// NewDigestHandler はDigestHandlerを生成する。
func NewDigestHandler(service DigestServiceInterface) *DigestHandler {
	return &DigestHandler{service: service}
}

// generateDigestRequest はダイジェスト生成リクエストのボディ。
// digest_dateを省略するとUTCの前日が対象になる。
type generateDigestRequest struct {
	DigestDate string `json:"digest_date,omitempty"`
	Force      bool   `json:"force,omitempty"`
}

// digestResponse はダイジェストのAPIレスポンス。
type digestResponse struct {
	ID                string           `json:"id"`
	UserID            string           `json:"user_id"`
	DigestDate        string           `json:"digest_date"`
	Content           string           `json:"content"`
	Summary           string           `json:"summary"`
	HeadlinesUsed     []model.Headline `json:"headlines_used"`
	InterestsIncluded []string         `json:"interests_included"`
	WordCount         int              `json:"word_count"`
	GenerationTimeMs  int              `json:"generation_time_ms"`
	Status            string           `json:"status"`
	ErrorMessage      string           `json:"error_message,omitempty"`
	CreatedAt         time.Time        `json:"created_at"`
	UpdatedAt         time.Time        `json:"updated_at"`
}

// digestListResponse はページネーション付きのダイジェスト一覧レスポンス。
type digestListResponse struct {
	Digests []digestResponse `json:"digests"`
	Total   int              `json:"total"`
	Page    int              `json:"page"`
	PerPage int              `json:"per_page"`
	HasNext bool             `json:"has_next"`
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Category string `json:"category"`
	Action   string `json:"action"`
}

// GenerateDigest はオンデマンドのダイジェスト生成を処理する。
// POST /api/digests/generate
func (h *DigestHandler) GenerateDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	// ボディは任意。空ボディはデフォルト値として扱う
	var req generateDigestRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "INVALID_REQUEST",
				Message:  "リクエストボディの解析に失敗しました。",
				Category: "validation",
				Action:   "正しいJSON形式でリクエストしてください。",
			})
			return
		}
	}

	var digestDate time.Time
	if req.DigestDate != "" {
		digestDate, err = time.ParseInLocation("2006-01-02", req.DigestDate, time.UTC)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(req.DigestDate))
			return
		}
	}

	result, err := h.service.Generate(r.Context(), userID, digestDate, req.Force)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(toDigestResponse(result))
}

// ListDigests はダイジェスト一覧を取得する。
// GET /api/digests?page=1&per_page=10
func (h *DigestHandler) ListDigests(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	perPage, _ := strconv.Atoi(r.URL.Query().Get("per_page"))

	result, err := h.service.List(r.Context(), userID, page, perPage)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	resp := digestListResponse{
		Digests: make([]digestResponse, 0, len(result.Digests)),
		Total:   result.Total,
		Page:    result.Page,
		PerPage: result.PerPage,
		HasNext: result.HasNext,
	}
	for _, d := range result.Digests {
		resp.Digests = append(resp.Digests, toDigestResponse(d))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// LatestDigest は最新のダイジェストを取得する。
// GET /api/digests/latest
func (h *DigestHandler) LatestDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	result, err := h.service.Latest(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDigestResponse(result))
}

// GetDigestByDate は指定日付のダイジェストを取得する。
// GET /api/digests/date/{date}
func (h *DigestHandler) GetDigestByDate(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	raw := chi.URLParam(r, "date")
	digestDate, err := time.ParseInLocation("2006-01-02", raw, time.UTC)
	if err != nil {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidDateError(raw))
		return
	}

	result, err := h.service.GetByDate(r.Context(), userID, digestDate)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDigestResponse(result))
}

// GetDigest はダイジェスト詳細を取得する。
// GET /api/digests/{id}
func (h *DigestHandler) GetDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	digestID := chi.URLParam(r, "id")

	result, err := h.service.GetByID(r.Context(), digestID, userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(toDigestResponse(result))
}

// DeleteDigest はダイジェストを削除する。
// DELETE /api/digests/{id}
func (h *DigestHandler) DeleteDigest(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeUnauthorized(w)
		return
	}

	digestID := chi.URLParam(r, "id")

	if err := h.service.Delete(r.Context(), digestID, userID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// --- ヘルパー関数 ---

// toDigestResponse はmodel.DigestからAPIレスポンスに変換する。
func toDigestResponse(d *model.Digest) digestResponse {
	headlines := d.HeadlinesUsed
	if headlines == nil {
		headlines = []model.Headline{}
	}
	interests := d.InterestsIncluded
	if interests == nil {
		interests = []string{}
	}
	return digestResponse{
		ID:                d.ID,
		UserID:            d.UserID,
		DigestDate:        d.DigestDate.UTC().Format("2006-01-02"),
		Content:           d.Content,
		Summary:           d.Summary,
		HeadlinesUsed:     headlines,
		InterestsIncluded: interests,
		WordCount:         d.WordCount,
		GenerationTimeMs:  d.GenerationTimeMs,
		Status:            string(d.Status),
		ErrorMessage:      d.ErrorMessage,
		CreatedAt:         d.CreatedAt,
		UpdatedAt:         d.UpdatedAt,
	}
}

// writeUnauthorized は認証切れの統一レスポンスを書き込む。
func writeUnauthorized(w http.ResponseWriter) {
	writeAPIErrorResponse(w, http.StatusUnauthorized, &model.APIError{
		Code:     "UNAUTHORIZED",
		Message:  "認証が必要です。",
		Category: "auth",
		Action:   "ログインしてください。",
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, statusCode int, apiErr *model.APIError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(apiErrorResponse{
		Code:     apiErr.Code,
		Message:  apiErr.Message,
		Category: apiErr.Category,
		Action:   apiErr.Action,
	})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, mapAPIErrorToHTTPStatus(apiErr), apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeAPIErrorResponse(w, http.StatusInternalServerError, &model.APIError{
		Code:     "INTERNAL_ERROR",
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	})
}

// mapAPIErrorToHTTPStatus はAPIErrorコードからHTTPステータスコードにマッピングする。
func mapAPIErrorToHTTPStatus(apiErr *model.APIError) int {
	switch apiErr.Code {
	case model.ErrCodeDigestNotFound, model.ErrCodeUserNotFound:
		return http.StatusNotFound
	case model.ErrCodeDigestInProgress:
		return http.StatusConflict
	case model.ErrCodeInvalidDate:
		return http.StatusBadRequest
	case model.ErrCodeHeadlineFetchFailed, model.ErrCodeGenerationFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
