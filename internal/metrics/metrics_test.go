package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestMiddlewareCapturesStatus(t *testing.T) {
	handler := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))

	req := httptest.NewRequest(http.MethodPost, "/v1/events", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rec.Code)
	}
}

func TestMetricsHandlerExposesCounters(t *testing.T) {
	RecordEventEnqueued("new_comment")
	RecordEventProcessed("new_comment", "ok")
	RecordNotificationCreated("Comment")
	RecordNotificationDuplicate("Comment")
	RecordDelivery("mobile_push", OutcomeDelivered)
	RecordDispatchLatency("new_comment", 250*time.Millisecond)
	RecordRateLimitRejection("client-1")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	body := rec.Body.String()
	for _, metric := range []string{
		"herald_events_enqueued_total",
		"herald_events_processed_total",
		"herald_notifications_created_total",
		"herald_notifications_duplicate_total",
		"herald_deliveries_total",
		"herald_dispatch_latency_seconds",
		"herald_rate_limit_rejections_total",
	} {
		if !strings.Contains(body, metric) {
			t.Errorf("metrics output missing %s", metric)
		}
	}
}
