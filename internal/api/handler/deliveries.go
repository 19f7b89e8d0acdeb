package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tikrelay/tikrelay/internal/history"
)

// HistoryReader is the read side of the delivery log.
type HistoryReader interface {
	Recent(ctx context.Context, limit int) ([]history.Event, error)
}

// DeliveryHandler serves the delivery log.
type DeliveryHandler struct {
	reader HistoryReader
	logger *slog.Logger
}

// NewDeliveryHandler creates a new delivery log handler.
func NewDeliveryHandler(reader HistoryReader, logger *slog.Logger) *DeliveryHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeliveryHandler{
		reader: reader,
		logger: logger,
	}
}

// DeliveryResponse represents one delivery log entry.
type DeliveryResponse struct {
	Timestamp time.Time `json:"timestamp"`
	ChatID    int64     `json:"chat_id"`
	UserID    int64     `json:"user_id"`
	Username  string    `json:"username,omitempty"`
	Link      string    `json:"link"`
	Platform  string    `json:"platform"`
	MediaType string    `json:"media_type"`
	Status    string    `json:"status"`
}

// ListResponse contains the delivery list.
type ListResponse struct {
	Deliveries []DeliveryResponse `json:"deliveries"`
	Limit      int                `json:"limit"`
}

// List handles GET /api/v1/deliveries
func (h *DeliveryHandler) List(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if parsed, err := strconv.Atoi(l); err == nil && parsed > 0 && parsed <= 500 {
			limit = parsed
		}
	}

	events, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		h.logger.Error("list deliveries failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "failed to list deliveries")
		return
	}

	response := ListResponse{
		Deliveries: make([]DeliveryResponse, 0, len(events)),
		Limit:      limit,
	}
	for _, e := range events {
		response.Deliveries = append(response.Deliveries, DeliveryResponse{
			Timestamp: e.Timestamp,
			ChatID:    e.ChatID,
			UserID:    e.UserID,
			Username:  e.Username,
			Link:      e.Link,
			Platform:  e.Platform,
			MediaType: e.MediaType,
			Status:    e.Status,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}

func (h *DeliveryHandler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
