package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/heraldhq/herald/internal/circuitbreaker"
	"github.com/heraldhq/herald/internal/event"
	"github.com/heraldhq/herald/internal/store"
)

var ErrDatabaseError = errors.New("database error")

// MockReader is a fake notification store for testing
type MockReader struct {
	notifications []*store.Notification
	purged        []event.Ref

	shouldFail bool
}

func (m *MockReader) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]*store.Notification, error) {
	if m.shouldFail {
		return nil, ErrDatabaseError
	}

	var result []*store.Notification
	for _, notif := range m.notifications {
		if notif.UserID != nil && *notif.UserID == userID {
			result = append(result, notif)
		}
	}
	return result, nil
}

func (m *MockReader) DeleteByNotifiable(ctx context.Context, ref event.Ref) (int64, error) {
	if m.shouldFail {
		return 0, ErrDatabaseError
	}
	m.purged = append(m.purged, ref)
	return 3, nil
}

// MockEnqueuer is a fake queue producer
type MockEnqueuer struct {
	enqueued []*event.Envelope
	err      error
}

func (m *MockEnqueuer) Enqueue(ctx context.Context, env *event.Envelope) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.enqueued = append(m.enqueued, env)
	return "sqs-msg-1", nil
}

func newRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()
	r.Post("/v1/events", h.IngestEvent)
	r.Get("/v1/notifications", h.ListNotifications)
	r.Delete("/v1/notifiables/{kind}/{id}", h.PurgeNotifiable)
	r.Get("/v1/ops/breaker", h.GetBreakerStats)
	r.Post("/v1/ops/breaker/reset", h.ResetBreaker)
	return r
}

func validEventBody(t *testing.T) []byte {
	t.Helper()
	env := event.Envelope{
		Kind: event.KindNewComment,
		Comment: &event.Comment{
			ID:     42,
			Author: event.User{ID: 5, Name: "Alice"},
			Article: &event.Article{
				ID:     7,
				Title:  "Go Concurrency",
				Author: event.User{ID: 7, ReceiveNotifications: true},
			},
		},
	}
	body, err := json.Marshal(env)
	if err != nil {
		t.Fatalf("failed to marshal envelope: %v", err)
	}
	return body
}

func TestIngestEvent_Accepted(t *testing.T) {
	producer := &MockEnqueuer{}
	h := NewHandler(zap.NewNop(), &MockReader{}, producer, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(validEventBody(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp EventResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Fingerprint != "new_comment:42" {
		t.Errorf("wrong fingerprint: %s", resp.Fingerprint)
	}

	if len(producer.enqueued) != 1 {
		t.Fatalf("expected 1 enqueued event, got %d", len(producer.enqueued))
	}
	if producer.enqueued[0].OccurredAt.IsZero() {
		t.Error("occurred_at should be stamped when the client omits it")
	}
}

func TestIngestEvent_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{not json`},
		{"unknown kind", `{"kind":"article_liked"}`},
		{"kind without payload", `{"kind":"new_comment"}`},
		{"bad adjustment type", `{"kind":"tag_adjustment","tag_adjustment":{"id":1,"tag_name":"go","adjustment_type":"ban","article":{"id":7,"author":{"id":7}}}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			producer := &MockEnqueuer{}
			h := NewHandler(zap.NewNop(), &MockReader{}, producer, nil)
			router := newRouter(h)

			req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader([]byte(tt.body)))
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if len(producer.enqueued) != 0 {
				t.Errorf("invalid event must not be enqueued")
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected problem+json, got %s", ct)
			}
		})
	}
}

func TestIngestEvent_EnqueueFailure(t *testing.T) {
	producer := &MockEnqueuer{err: errors.New("sqs unavailable")}
	h := NewHandler(zap.NewNop(), &MockReader{}, producer, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/events", bytes.NewReader(validEventBody(t)))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestListNotifications(t *testing.T) {
	userID := int64(7)
	reader := &MockReader{notifications: []*store.Notification{
		{ID: uuid.New(), UserID: &userID, NotifiableType: event.NotifiableComment, NotifiableID: 42},
	}}
	h := NewHandler(zap.NewNop(), reader, &MockEnqueuer{}, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications?user_id=7", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Data  []json.RawMessage `json:"data"`
		Count int               `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Count != 1 || len(resp.Data) != 1 {
		t.Errorf("expected 1 notification, got count=%d", resp.Count)
	}
}

func TestListNotifications_EmptyIsArray(t *testing.T) {
	h := NewHandler(zap.NewNop(), &MockReader{}, &MockEnqueuer{}, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/notifications?user_id=99", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Contains(rec.Body.Bytes(), []byte(`"data":[]`)) {
		t.Errorf("empty feed must serialize as [], got %s", rec.Body.String())
	}
}

func TestListNotifications_BadInput(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"missing user_id", "/v1/notifications"},
		{"non-numeric user_id", "/v1/notifications?user_id=abc"},
		{"negative user_id", "/v1/notifications?user_id=-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(zap.NewNop(), &MockReader{}, &MockEnqueuer{}, nil)
			router := newRouter(h)

			req := httptest.NewRequest(http.MethodGet, tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
		})
	}
}

func TestPurgeNotifiable(t *testing.T) {
	reader := &MockReader{}
	h := NewHandler(zap.NewNop(), reader, &MockEnqueuer{}, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/v1/notifiables/Comment/42", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if len(reader.purged) != 1 {
		t.Fatalf("expected 1 purge, got %d", len(reader.purged))
	}
	want := event.Ref{Kind: event.NotifiableComment, ID: 42}
	if reader.purged[0] != want {
		t.Errorf("purged %s, want %s", reader.purged[0], want)
	}
}

func TestPurgeNotifiable_BadInput(t *testing.T) {
	tests := []struct {
		name string
		url  string
	}{
		{"unknown kind", "/v1/notifiables/Podcast/42"},
		{"non-numeric id", "/v1/notifiables/Comment/abc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reader := &MockReader{}
			h := NewHandler(zap.NewNop(), reader, &MockEnqueuer{}, nil)
			router := newRouter(h)

			req := httptest.NewRequest(http.MethodDelete, tt.url, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != http.StatusBadRequest {
				t.Errorf("expected 400, got %d", rec.Code)
			}
			if len(reader.purged) != 0 {
				t.Errorf("bad input must not purge")
			}
		})
	}
}

func TestPurgeNotifiable_DatabaseError(t *testing.T) {
	reader := &MockReader{shouldFail: true}
	h := NewHandler(zap.NewNop(), reader, &MockEnqueuer{}, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodDelete, "/v1/notifiables/Mention/3", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("expected 500, got %d", rec.Code)
	}
}

func TestGetBreakerStats(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.DefaultConfig("push"), zap.NewNop())
	h := NewHandler(zap.NewNop(), &MockReader{}, &MockEnqueuer{}, breaker)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/breaker", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var stats circuitbreaker.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.Name != "push" || stats.State != "closed" {
		t.Errorf("unexpected stats: %+v", stats)
	}
}

func TestGetBreakerStats_NoBreaker(t *testing.T) {
	h := NewHandler(zap.NewNop(), &MockReader{}, &MockEnqueuer{}, nil)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodGet, "/v1/ops/breaker", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rec.Code)
	}
}

func TestResetBreaker(t *testing.T) {
	breaker := circuitbreaker.New(circuitbreaker.Config{
		Name:            "push",
		MaxFailures:     2,
		RecoveryTimeout: time.Minute,
	}, zap.NewNop())
	breaker.RecordFailure()
	breaker.RecordFailure()
	if breaker.GetState() != circuitbreaker.StateOpen {
		t.Fatal("breaker should be open before reset")
	}

	h := NewHandler(zap.NewNop(), &MockReader{}, &MockEnqueuer{}, breaker)
	router := newRouter(h)

	req := httptest.NewRequest(http.MethodPost, "/v1/ops/breaker/reset", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if breaker.GetState() != circuitbreaker.StateClosed {
		t.Error("breaker should be closed after reset")
	}

	var stats circuitbreaker.Stats
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if stats.State != "closed" {
		t.Errorf("stats should report closed, got %q", stats.State)
	}
}
