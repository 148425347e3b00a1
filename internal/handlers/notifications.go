package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/foodbuddy/api/internal/platform/auth"
	"github.com/foodbuddy/api/internal/platform/httpx"
	"github.com/foodbuddy/api/internal/services"
)

// NotificationHandlers exposes the per-user notification feed.
type NotificationHandlers struct {
	authn         *auth.Authenticator
	notifications services.NotificationService
}

func NewNotificationHandlers(authn *auth.Authenticator, notifications services.NotificationService) *NotificationHandlers {
	return &NotificationHandlers{authn: authn, notifications: notifications}
}

// Routes wires the /notifications endpoints onto the provided router.
func (h *NotificationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	r.Get("/", h.listNotifications)
	r.Post("/{notificationID}/read", h.markRead)
}

func (h *NotificationHandlers) listNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	pager, err := pagerFromRequest(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
		return
	}
	page, err := h.notifications.List(ctx, identity.UID, pager)
	if err != nil {
		h.writeNotificationError(ctx, w, err)
		return
	}

	payload := make([]notificationPayload, 0, len(page.Items))
	for _, entry := range page.Items {
		payload = append(payload, buildNotificationPayload(entry))
	}
	writeJSONResponse(w, http.StatusOK, notificationListResponse{
		Notifications: payload,
		NextPageToken: page.NextPageToken,
	})
}

func (h *NotificationHandlers) markRead(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.notifications == nil {
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service is unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	entry, err := h.notifications.MarkRead(ctx, identity.UID, chi.URLParam(r, "notificationID"))
	if err != nil {
		h.writeNotificationError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, notificationResponse{Notification: buildNotificationPayload(entry)})
}

func (h *NotificationHandlers) writeNotificationError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, services.ErrNotificationInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrNotificationNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("notification_not_found", "notification not found", http.StatusNotFound))
	case errors.Is(err, services.ErrNotificationUnavailable):
		httpx.WriteError(ctx, w, httpx.NewError("notification_service_unavailable", "notification service is unavailable", http.StatusServiceUnavailable))
	default:
		httpx.WriteError(ctx, w, httpx.NewError("notification_error", "notification operation failed", http.StatusInternalServerError))
	}
}

type notificationResponse struct {
	Notification notificationPayload `json:"notification"`
}

type notificationListResponse struct {
	Notifications []notificationPayload `json:"notifications"`
	NextPageToken string                `json:"next_page_token,omitempty"`
}

type notificationPayload struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	Title          string `json:"title"`
	Message        string `json:"message"`
	RelatedOrderID string `json:"related_order_id,omitempty"`
	Read           bool   `json:"read"`
	CreatedAt      string `json:"created_at,omitempty"`
}

func buildNotificationPayload(entry services.Notification) notificationPayload {
	payload := notificationPayload{
		ID:        entry.ID,
		Type:      string(entry.Type),
		Title:     entry.Title,
		Message:   entry.Message,
		Read:      entry.IsRead,
		CreatedAt: formatTime(entry.CreatedAt),
	}
	if entry.RelatedOrderID != nil {
		payload.RelatedOrderID = *entry.RelatedOrderID
	}
	return payload
}
