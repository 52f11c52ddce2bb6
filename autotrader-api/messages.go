package main

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SendMessageHandler appends an immutable message from the caller. The
// recipient must exist and differ from the sender.
func (api *API) SendMessageHandler(w http.ResponseWriter, r *http.Request, username string) {
	var req sendMessageRequest
	if err := decodeJSON(r, &req); err != nil {
		api.writeError(w, r, err)
		return
	}

	if req.To == "" || req.Text == "" {
		api.writeError(w, r, errValidation("to and text are required"))
		return
	}
	if req.To == username {
		api.writeError(w, r, errValidation("You cannot send messages to yourself"))
		return
	}

	if err := api.requireUser(req.To); err != nil {
		api.writeError(w, r, err)
		return
	}

	msg := Message{
		FromUsername: username,
		ToUsername:   req.To,
		Text:         req.Text,
		CreatedAt:    time.Now(),
	}
	if err := api.db.Create(&msg).Error; err != nil {
		api.writeError(w, r, errInternal("Failed to send message", err))
		return
	}

	logger.WithFields(logrus.Fields{
		"from": username,
		"to":   req.To,
	}).Info("Message sent")
	api.metrics.MessagesSent.WithLabelValues(r.URL.Path).Inc()
	api.writeSuccess(w, r, map[string]any{"message": "Message sent"})
}

// ThreadHandler returns every message between the caller and the other
// party, in chronological reading order (oldest first — the opposite of the
// feed ordering).
func (api *API) ThreadHandler(w http.ResponseWriter, r *http.Request, username string) {
	other := r.URL.Query().Get("with")
	if other == "" {
		api.writeError(w, r, errValidation("Query parameter 'with' is required"))
		return
	}

	var msgs []Message
	err := api.db.
		Where("(from_username = ? AND to_username = ?) OR (from_username = ? AND to_username = ?)",
			username, other, other, username).
		Order("created_at ASC, id ASC").
		Find(&msgs).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch messages", err))
		return
	}

	api.writeSuccess(w, r, map[string]any{"results": msgs})
}

// ConversationsHandler reduces the caller's messages to one entry per
// counterparty, keeping the most recent message for each. The rows arrive
// newest-first with id as the tie-break, so the first row seen for a
// counterparty is its latest message and the output is already sorted by
// that message's timestamp descending.
func (api *API) ConversationsHandler(w http.ResponseWriter, r *http.Request, username string) {
	var msgs []Message
	err := api.db.
		Where("from_username = ? OR to_username = ?", username, username).
		Order("created_at DESC, id DESC").
		Find(&msgs).Error
	if err != nil {
		api.writeError(w, r, errInternal("Failed to fetch conversations", err))
		return
	}

	seen := make(map[string]bool)
	results := make([]conversationJSON, 0)
	for _, m := range msgs {
		other := m.FromUsername
		if other == username {
			other = m.ToUsername
		}
		if seen[other] {
			continue
		}
		seen[other] = true
		results = append(results, conversationJSON{
			With:        other,
			LastMessage: m.Text,
			UpdatedAt:   m.CreatedAt,
		})
	}

	api.writeSuccess(w, r, map[string]any{"results": results})
}
