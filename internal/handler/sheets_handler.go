package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/hitoshi/sheetdash/internal/middleware"
	"github.com/hitoshi/sheetdash/internal/model"
	"github.com/hitoshi/sheetdash/internal/sheets"
)

// SheetServiceInterface はシートハンドラーが必要とするサービスインターフェース。
type SheetServiceInterface interface {
	GetData(ctx context.Context, accessToken string, forceRefresh bool) (*model.SheetPayload, error)
	Refresh(ctx context.Context, accessToken string) (*model.SheetPayload, error)
	GetInfo(ctx context.Context, accessToken string) (*model.SheetInfo, error)
	ClearCache()
	CacheStats() sheets.CacheStats
}

// SheetHandler はスプレッドシートデータのHTTPハンドラー。
type SheetHandler struct {
	service SheetServiceInterface
}

// NewSheetHandler はSheetHandlerを生成する。
func NewSheetHandler(service SheetServiceInterface) *SheetHandler {
	return &SheetHandler{service: service}
}

// GetData はシートデータを返す。
// GET /api/sheets?forceRefresh=true
func (h *SheetHandler) GetData(w http.ResponseWriter, r *http.Request) {
	token, ok := googleAccessToken(w, r)
	if !ok {
		return
	}

	force := false
	if raw := r.URL.Query().Get("forceRefresh"); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			writeAPIErrorResponse(w, http.StatusBadRequest,
				model.NewInvalidRequestError("forceRefreshはtrueまたはfalseで指定してください"))
			return
		}
		force = v
	}

	payload, err := h.service.GetData(r.Context(), token, force)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// Info はスプレッドシートのメタデータを返す。
// GET /api/sheets/info
func (h *SheetHandler) Info(w http.ResponseWriter, r *http.Request) {
	token, ok := googleAccessToken(w, r)
	if !ok {
		return
	}

	info, err := h.service.GetInfo(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, info)
}

// Refresh はキャッシュを無視してシートデータを再取得する。
// POST /api/sheets/refresh
func (h *SheetHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	token, ok := googleAccessToken(w, r)
	if !ok {
		return
	}

	payload, err := h.service.Refresh(r.Context(), token)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, payload)
}

// ClearCache はシートデータのキャッシュを削除する。
// POST /api/sheets/cache/clear
func (h *SheetHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	h.service.ClearCache()
	writeJSON(w, http.StatusOK, messageResponse{Message: "キャッシュをクリアしました"})
}

// CacheStats はキャッシュの統計情報を返す。
// GET /api/sheets/cache/stats
func (h *SheetHandler) CacheStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.CacheStats())
}

// googleAccessToken はリクエストヘッダーからGoogleアクセストークンを取り出す。
// 無い場合は400を書き込みfalseを返す。
func googleAccessToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	token := strings.TrimSpace(r.Header.Get(middleware.GoogleAccessTokenHeader))
	if token == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewMissingGoogleTokenError())
		return "", false
	}
	return token, true
}
