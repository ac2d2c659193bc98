// Package handlers contains the thin HTTP adapters over the notification
// core. The portal's session layer fronts these routes and forwards the
// authenticated user's id in the X-User-ID header.
package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"

	"helpdesk-portal-go/internal/models"
	"helpdesk-portal-go/internal/notify"
	"helpdesk-portal-go/internal/push"
	"helpdesk-portal-go/internal/store"
)

// Presence is the slice of the presence store the ping route needs.
type Presence interface {
	MarkActive(ctx context.Context, userID int64) error
}

type Handler struct {
	Service  *notify.Service
	Subs     store.SubscriptionStore
	Engine   *push.Engine
	Presence Presence
}

func NewHandler(service *notify.Service, subs store.SubscriptionStore, engine *push.Engine, presence Presence) *Handler {
	return &Handler{
		Service:  service,
		Subs:     subs,
		Engine:   engine,
		Presence: presence,
	}
}

// currentUserID extracts the authenticated user's id placed on the request
// by the portal's session middleware.
func currentUserID(r *http.Request) (int64, bool) {
	raw := r.Header.Get("X-User-ID")
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeResult is the {success, error} shape every mutation route returns.
func writeResult(w http.ResponseWriter, err error) {
	if err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

// emptyFeed is what read endpoints degrade to instead of a 500, so a store
// hiccup never breaks the page around the widget.
func emptyFeed() models.Feed {
	return models.Feed{
		StatusNotifications:  []models.StatusChangeNotification{},
		CommentNotifications: []models.CommentNotification{},
		TrackerNotifications: []models.TrackerNativeNotification{},
	}
}

// PingHandler refreshes the caller's presence window.
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.Presence.MarkActive(r.Context(), userID); err != nil {
		log.Printf("Failed to mark user %d active: %v", userID, err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HealthHandler is the liveness probe.
func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
