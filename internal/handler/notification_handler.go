package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/cookfeed/internal/model"
)

// NotificationServiceInterface は通知ハンドラーが必要とするサービスインターフェース。
type NotificationServiceInterface interface {
	ListNotifications(ctx context.Context, viewer *model.User) ([]*model.Notification, error)
	MarkRead(ctx context.Context, viewer *model.User, notificationID string) error
	MarkAllRead(ctx context.Context, viewer *model.User) error
}

// NotificationHandler は通知関連のHTTPハンドラー。
type NotificationHandler struct {
	service NotificationServiceInterface
	users   ViewerResolver
}

// NewNotificationHandler はNotificationHandlerを生成する。
func NewNotificationHandler(service NotificationServiceInterface, users ViewerResolver) *NotificationHandler {
	return &NotificationHandler{
		service: service,
		users:   users,
	}
}

// notificationListResponse は通知一覧のレスポンス。
type notificationListResponse struct {
	Notifications []*notificationResponse `json:"notifications"`
}

// List は自分宛の通知一覧をアクター情報付き・新着順で返す。
// GET /api/notifications
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	notifications, err := h.service.ListNotifications(r.Context(), viewer)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	responses := make([]*notificationResponse, 0, len(notifications))
	for _, n := range notifications {
		responses = append(responses, newNotificationResponse(n))
	}

	writeJSONResponse(w, http.StatusOK, notificationListResponse{Notifications: responses})
}

// MarkRead は通知を既読にする。自分宛の通知のみが対象になる。
// POST /api/notifications/{notificationID}/read
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	notificationID := chi.URLParam(r, "notificationID")
	if err := h.service.MarkRead(r.Context(), viewer, notificationID); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// MarkAllRead は自分宛の通知をすべて既読にする。
// POST /api/notifications/read-all
func (h *NotificationHandler) MarkAllRead(w http.ResponseWriter, r *http.Request) {
	viewer, ok := requireViewer(w, r, h.users)
	if !ok {
		return
	}

	if err := h.service.MarkAllRead(r.Context(), viewer); err != nil {
		handleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
