package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/jackwhot/jackwhot-service/internal/database"
)

// ChatHistoryHandler serves GET /api/chat?room_id=X&before=RFC3339&limit=N,
// paging backwards through a room's persisted chat.
func ChatHistoryHandler(w http.ResponseWriter, r *http.Request) {
	roomID := r.URL.Query().Get("room_id")
	if roomID == "" {
		http.Error(w, "missing room_id", http.StatusBadRequest)
		return
	}

	var before time.Time
	if s := r.URL.Query().Get("before"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			http.Error(w, "invalid before timestamp, want RFC3339", http.StatusBadRequest)
			return
		}
		before = t
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil {
			limit = v
		}
	}

	msgs, err := database.GetChatHistory(r.Context(), roomID, before, limit)
	if err != nil {
		log.Printf("chat history query failed: %v", err)
		http.Error(w, "failed to fetch chat history", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(msgs)
}
