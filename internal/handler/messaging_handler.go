package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/sheetdash/internal/messaging"
	"github.com/hitoshi/sheetdash/internal/model"
)

// MessagingServiceInterface はメッセージングハンドラーが必要とするサービスインターフェース。
type MessagingServiceInterface interface {
	Status(ctx context.Context) messaging.Status
	ListSessions(ctx context.Context) messaging.SessionList
	SendMessage(ctx context.Context, sessionID, text string) messaging.SendResult
}

// MessagingHandler はメッセージング連携のHTTPハンドラー。
type MessagingHandler struct {
	service MessagingServiceInterface
}

// NewMessagingHandler はMessagingHandlerを生成する。
func NewMessagingHandler(service MessagingServiceInterface) *MessagingHandler {
	return &MessagingHandler{service: service}
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

// Status はGET /api/waha/status を処理する。
func (h *MessagingHandler) Status(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.Status(r.Context()))
}

// Sessions はGET /api/waha/sessions を処理する。
func (h *MessagingHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.service.ListSessions(r.Context()))
}

// Send はPOST /api/waha/sessions/{sessionID}/send を処理する。
func (h *MessagingHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		handleServiceError(w, err)
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeAPIErrorResponse(w, http.StatusBadRequest, model.NewInvalidRequestError("messageは必須です"))
		return
	}

	writeJSON(w, http.StatusOK, h.service.SendMessage(r.Context(), chi.URLParam(r, "sessionID"), req.Message))
}
