package http

import (
	"net/http"
	"time"

	"splitledger/internal/core"
)

const defaultFeedLimit = 50

type chatMessageJSON struct {
	ID         string    `json:"id"`
	GroupID    string    `json:"groupId"`
	SenderID   string    `json:"senderId"`
	SenderName string    `json:"senderName"`
	Content    string    `json:"content"`
	SentAt     time.Time `json:"sentAt"`
}

type activityJSON struct {
	GroupID    string    `json:"groupId"`
	ChangeKind string    `json:"changeKind"`
	OccurredAt time.Time `json:"occurredAt"`
}

func toChatMessageJSON(m core.ChatMessage) chatMessageJSON {
	return chatMessageJSON{
		ID:         m.ID,
		GroupID:    m.GroupID,
		SenderID:   m.SenderID,
		SenderName: m.SenderName,
		Content:    m.Content,
		SentAt:     m.SentAt,
	}
}

func (s *Server) handlePostChat(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	caller, err := s.requireMember(r, groupID)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	msg, err := s.chat.Post(r.Context(), groupID, caller.ID, sanitizeInput(req.Content))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toChatMessageJSON(msg))
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	msgs, err := s.chat.History(r.Context(), r.PathValue("groupID"), parseLimit(r, 0))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]chatMessageJSON, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, toChatMessageJSON(m))
	}
	writeJSON(w, http.StatusOK, struct {
		Messages []chatMessageJSON `json:"messages"`
	}{out})
}

// handleActivity serves the materialized activity feed, newest first.
func (s *Server) handleActivity(w http.ResponseWriter, r *http.Request) {
	groupID := r.PathValue("groupID")
	if _, err := s.groups.Group(r.Context(), groupID); err != nil {
		writeError(w, r, err)
		return
	}

	events, err := s.store.ListActivity(r.Context(), groupID, parseLimit(r, defaultFeedLimit))
	if err != nil {
		writeError(w, r, err)
		return
	}

	out := make([]activityJSON, 0, len(events))
	for _, ev := range events {
		out = append(out, activityJSON{
			GroupID:    ev.GroupID,
			ChangeKind: string(ev.Kind),
			OccurredAt: ev.OccurredAt,
		})
	}
	writeJSON(w, http.StatusOK, struct {
		Activity []activityJSON `json:"activity"`
	}{out})
}
