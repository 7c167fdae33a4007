package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/leadflow/internal/automation"
	"github.com/ignite/leadflow/internal/dispatch"
	"github.com/ignite/leadflow/internal/ratelimit"
	"github.com/ignite/leadflow/internal/render"
	"github.com/ignite/leadflow/internal/sequence"
	"github.com/ignite/leadflow/internal/transport"
)

func newTestRouter(t *testing.T, limiter *ratelimit.Limiter) (http.Handler, *automation.Engine) {
	t.Helper()

	store := automation.NewMemoryStore()
	disp := dispatch.New(render.NewRenderer(), transport.NewLogTransport(), "hello@mail.leadflow.dev", "LeadFlow")
	engine := automation.NewEngine(store, sequence.Default(), disp, automation.Options{
		TickInterval: time.Hour,
	})

	return NewRouter(NewHandlers(engine, limiter, "test")), engine
}

func postJSON(t *testing.T, router http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	buf, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(buf))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestSubscribeEndpoint(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := postJSON(t, router, "/subscribe", map[string]string{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Success      bool   `json:"success"`
		Message      string `json:"message"`
		SubscriberID string `json:"subscriberId"`
		NextStep     string `json:"nextStep"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.SubscriberID)
	assert.NotEmpty(t, resp.Message)
	assert.NotEmpty(t, resp.NextStep)
}

func TestSubscribeValidationErrors(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	tests := []struct {
		name      string
		body      map[string]string
		wantField string
	}{
		{"missing name", map[string]string{"email": "ada@example.com"}, "name"},
		{"missing email", map[string]string{"name": "Ada"}, "email"},
		{"malformed email", map[string]string{"name": "Ada", "email": "not-an-email"}, "email"},
		{"email without dot", map[string]string{"name": "Ada", "email": "ada@example"}, "email"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, router, "/subscribe", tt.body)
			require.Equal(t, http.StatusBadRequest, rec.Code)

			var resp struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantField, resp.Field)
			assert.NotEmpty(t, resp.Error)
		})
	}
}

func TestSubscribeMalformedJSON(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/subscribe", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubscribeRateLimited(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := ratelimit.New(client, "test:subscribe", 2, time.Hour)
	router, _ := newTestRouter(t, limiter)

	for i := 0; i < 2; i++ {
		rec := postJSON(t, router, "/subscribe", map[string]string{
			"name":  "Ada",
			"email": "ada@example.com",
		})
		require.Equal(t, http.StatusOK, rec.Code)
	}

	rec := postJSON(t, router, "/subscribe", map[string]string{
		"name":  "Ada",
		"email": "ada@example.com",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestUnsubscribeEndpoint(t *testing.T) {
	router, engine := newTestRouter(t, nil)

	sub, err := engine.Subscribe(t.Context(), "ada@example.com", "Ada")
	require.NoError(t, err)

	rec := postJSON(t, router, "/unsubscribe/"+sub.ID, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got, err := engine.GetSubscriber(t.Context(), sub.ID)
	require.NoError(t, err)
	assert.Equal(t, automation.StatusUnsubscribed, got.Status)
}

func TestUnsubscribeUnknownSubscriber(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	rec := postJSON(t, router, "/unsubscribe/sub_missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealthEndpoint(t *testing.T) {
	router, engine := newTestRouter(t, nil)

	_, err := engine.Subscribe(t.Context(), "ada@example.com", "Ada")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Status    string          `json:"status"`
		Stats     json.RawMessage `json:"stats"`
		Timestamp string          `json:"timestamp"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "healthy", resp.Status)
	assert.NotEmpty(t, resp.Stats)
	assert.NotEmpty(t, resp.Timestamp)
}

func TestStatsEndpoint(t *testing.T) {
	router, engine := newTestRouter(t, nil)

	_, err := engine.Subscribe(t.Context(), "ada@example.com", "Ada")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Automation struct {
			TotalSubscribers     int     `json:"totalSubscribers"`
			ActiveSubscribers    int     `json:"activeSubscribers"`
			TotalEmailsScheduled int     `json:"totalEmailsScheduled"`
			EmailsSent           int     `json:"emailsSent"`
			EstimatedOpenRate    float64 `json:"estimatedOpenRate"`
		} `json:"automation"`
		Server struct {
			Version     string `json:"version"`
			Environment string `json:"environment"`
			Uptime      string `json:"uptime"`
		} `json:"server"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Automation.TotalSubscribers)
	assert.Equal(t, 1, resp.Automation.ActiveSubscribers)
	assert.Equal(t, 4, resp.Automation.TotalEmailsScheduled)
	assert.Equal(t, 1, resp.Automation.EmailsSent) // welcome goes out at signup
	assert.InDelta(t, 0.42, resp.Automation.EstimatedOpenRate, 0.001)
	assert.Equal(t, "test", resp.Server.Environment)
	assert.NotEmpty(t, resp.Server.Version)
}

func TestMethodNotAllowed(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/subscribe", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	router, _ := newTestRouter(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/subscribe", nil)
	req.Header.Set("Origin", "https://landing.example.com")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
