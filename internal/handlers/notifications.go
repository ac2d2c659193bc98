package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"helpdesk-portal-go/internal/models"
)

// PollNotificationsHandler serves the widget's live badge: unread rows only,
// with the native-tracker mirror refreshed first.
func (h *Handler) PollNotificationsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	feed, err := h.Service.GetUserNotifications(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to load widget notifications for user %d: %v", userID, err)
		writeJSON(w, http.StatusOK, emptyFeed())
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// NotificationsPageHandler serves the full notifications page, read and
// unread alike.
func (h *Handler) NotificationsPageHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	feed, err := h.Service.GetNotificationsForPage(r.Context(), userID)
	if err != nil {
		log.Printf("Failed to load notifications page for user %d: %v", userID, err)
		writeJSON(w, http.StatusOK, emptyFeed())
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

// MarkReadHandler flips one notification to read.
func (h *Handler) MarkReadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ID   int64       `json:"id"`
		Kind models.Kind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	writeResult(w, h.Service.MarkNotificationRead(r.Context(), req.ID, req.Kind, userID))
}

// MarkAllReadHandler flips every notification of the caller to read.
func (h *Handler) MarkAllReadHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	writeResult(w, h.Service.MarkAllNotificationsRead(r.Context(), userID))
}

// ClearHandler empties the caller's notifications. scope=widget keeps the
// page history and only marks everything read; the default removes local
// rows entirely.
func (h *Handler) ClearHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if r.URL.Query().Get("scope") == "widget" {
		writeResult(w, h.Service.ClearNotificationsForWidget(r.Context(), userID))
		return
	}
	writeResult(w, h.Service.ClearUserNotifications(r.Context(), userID))
}

// DeleteNotificationHandler removes a single notification owned by the
// caller.
func (h *Handler) DeleteNotificationHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	userID, ok := currentUserID(r)
	if !ok {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req struct {
		ID   int64       `json:"id"`
		Kind models.Kind `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return
	}

	writeResult(w, h.Service.DeleteNotification(r.Context(), req.ID, req.Kind, userID))
}
