package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/circuitbreaker"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/metrics"
	"github.com/heraldhq/herald/internal/store"
)

// Enqueuer hands validated events to the dispatch queue.
type Enqueuer interface {
	Enqueue(ctx context.Context, env *event.Envelope) (string, error)
}

// NotificationReader serves the feed and referential cleanup endpoints.
type NotificationReader interface {
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*store.Notification, error)
	DeleteByNotifiable(ctx context.Context, ref event.Ref) (int64, error)
}

// BreakerOps is the operator surface of the push delivery breaker.
type BreakerOps interface {
	Stats() circuitbreaker.Stats
	Reset()
	String() string
}

// EventResponse is returned after accepting an event.
type EventResponse struct {
	Fingerprint string `json:"fingerprint"`
	MessageID   string `json:"message_id,omitempty"`
}

// ErrorResponse represents an error in problem+json format
type ErrorResponse struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// Handler holds dependencies for API handlers
type Handler struct {
	logger        *zap.Logger
	notifications NotificationReader
	producer      Enqueuer
	breaker       BreakerOps
}

// NewHandler creates a new API handler
func NewHandler(logger *zap.Logger, notifications NotificationReader, producer Enqueuer, breaker BreakerOps) *Handler {
	return &Handler{
		logger:        logger,
		notifications: notifications,
		producer:      producer,
		breaker:       breaker,
	}
}

// notifiableKinds are the entity types accepted in notifiable routes.
var notifiableKinds = map[string]event.NotifiableKind{
	"Comment":       event.NotifiableComment,
	"Mention":       event.NotifiableMention,
	"Article":       event.NotifiableArticle,
	"TagAdjustment": event.NotifiableTagAdjustment,
}

// IngestEvent handles POST /v1/events. The event is validated and enqueued;
// dispatch happens asynchronously in the worker.
func (h *Handler) IngestEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var env event.Envelope
	if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Malformed JSON body", err.Error())
		return
	}

	if err := env.Validate(); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_event", "Event failed validation", err.Error())
		return
	}

	if env.OccurredAt.IsZero() {
		env.OccurredAt = time.Now().UTC()
	}

	msgID, err := h.producer.Enqueue(ctx, &env)
	if err != nil {
		h.logger.Error("failed to enqueue event",
			zap.Error(err),
			zap.String("kind", string(env.Kind)),
		)
		h.writeError(w, http.StatusInternalServerError, "enqueue_error", "Failed to enqueue event", "")
		return
	}

	metrics.RecordEventEnqueued(string(env.Kind))
	h.logger.Info("event accepted",
		zap.String("kind", string(env.Kind)),
		zap.String("fingerprint", env.Fingerprint()),
		zap.String("sqs_message_id", msgID),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	_ = json.NewEncoder(w).Encode(EventResponse{
		Fingerprint: env.Fingerprint(),
		MessageID:   msgID,
	})
}

// ListNotifications handles GET /v1/notifications?user_id=7&limit=20&offset=0
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	userIDStr := r.URL.Query().Get("user_id")
	if userIDStr == "" {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Missing user_id", "user_id query parameter is required")
		return
	}

	userID, err := strconv.ParseInt(userIDStr, 10, 64)
	if err != nil || userID <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid user_id", "user_id must be a positive integer")
		return
	}

	// Parse pagination parameters with defaults
	limit := 20
	offset := 0

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 100 {
			limit = l
		}
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			offset = o
		}
	}

	notifications, err := h.notifications.ListByUser(ctx, userID, limit, offset)
	if err != nil {
		h.logger.Error("failed to list notifications",
			zap.Error(err),
			zap.Int64("user_id", userID),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to list notifications", "")
		return
	}

	if notifications == nil {
		notifications = []*store.Notification{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"data":   notifications,
		"limit":  limit,
		"offset": offset,
		"count":  len(notifications),
	})
}

// PurgeNotifiable handles DELETE /v1/notifiables/{kind}/{id}. Called when the
// underlying entity is deleted or moderated away; every notification pointing
// at it goes with it.
func (h *Handler) PurgeNotifiable(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	kind, ok := notifiableKinds[chi.URLParam(r, "kind")]
	if !ok {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notifiable kind",
			"kind must be one of: Comment, Mention, Article, TagAdjustment")
		return
	}

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Invalid notifiable id", "id must be a positive integer")
		return
	}

	ref := event.Ref{Kind: kind, ID: id}
	removed, err := h.notifications.DeleteByNotifiable(ctx, ref)
	if err != nil {
		h.logger.Error("failed to purge notifiable",
			zap.Error(err),
			zap.String("notifiable", ref.String()),
		)
		h.writeError(w, http.StatusInternalServerError, "database_error", "Failed to purge notifications", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"notifiable": ref.String(),
		"removed":    removed,
	})
}

// GetBreakerStats handles GET /v1/ops/breaker. Exposes the push delivery
// breaker counters for dashboards and incident triage.
func (h *Handler) GetBreakerStats(w http.ResponseWriter, r *http.Request) {
	if h.breaker == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "No breaker configured", "")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.breaker.Stats())
}

// ResetBreaker handles POST /v1/ops/breaker/reset. Operator override for a
// breaker stuck open after a push outage is resolved.
func (h *Handler) ResetBreaker(w http.ResponseWriter, r *http.Request) {
	if h.breaker == nil {
		h.writeError(w, http.StatusNotFound, "not_found", "No breaker configured", "")
		return
	}

	h.breaker.Reset()
	h.logger.Info("push breaker reset by operator",
		zap.Stringer("breaker", h.breaker),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(h.breaker.Stats())
}

func (h *Handler) writeError(w http.ResponseWriter, status int, errType, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Type:   errType,
		Title:  title,
		Status: status,
		Detail: detail,
	})
}
