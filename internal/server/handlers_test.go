package server

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand/v2"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fitgent/internal/config"
	"fitgent/internal/database"
	"fitgent/internal/googlefit"
	"fitgent/internal/rewards"
	"fitgent/internal/wellness"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

// memStore is an in-memory database.Store.
type memStore struct {
	mu      sync.Mutex
	records []database.HealthRecord
	err     error
}

func (m *memStore) InsertHealthRecord(_ context.Context, arg database.InsertHealthRecordParams) (database.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return database.HealthRecord{}, m.err
	}
	r := database.HealthRecord{
		ID:             int64(len(m.records) + 1),
		UserID:         arg.UserID,
		Date:           arg.Date,
		Steps:          arg.Steps,
		SleepHours:     arg.SleepHours,
		HeartRateAvg:   arg.HeartRateAvg,
		StressScore:    arg.StressScore,
		CaloriesBurned: arg.CaloriesBurned,
	}
	m.records = append(m.records, r)
	return r, nil
}

func (m *memStore) LatestHealthRecord(_ context.Context, userID int64) (*database.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var latest *database.HealthRecord
	for i := range m.records {
		r := m.records[i]
		if r.UserID != userID {
			continue
		}
		if latest == nil || !r.Date.Time.Before(latest.Date.Time) {
			latest = &r
		}
	}
	return latest, nil
}

func (m *memStore) ListHealthRecords(_ context.Context, arg database.ListHealthRecordsParams) ([]database.HealthRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	out := []database.HealthRecord{}
	for i := len(m.records) - 1; i >= 0 && len(out) < int(arg.Limit); i-- {
		if m.records[i].UserID == arg.UserID {
			out = append(out, m.records[i])
		}
	}
	return out, nil
}

func setUpTestServer(t *testing.T) (*Server, *memStore) {
	t.Helper()
	store := &memStore{}
	s := newApp(config.Config{Port: 8080, RateLimitRPS: 1000}, Dependencies{
		Store:   store,
		Rewards: rewards.NewMemory(),
		Food:    wellness.NewFoodRecommender(rand.New(rand.NewPCG(1, 2))),
	})
	return s, store
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

/* ---------------- POST /health-data ---------------- */

func TestIngestHealthData(t *testing.T) {
	s, store := setUpTestServer(t)
	h := s.RegisterRoutes()

	t.Run("ValidRequest", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/health-data",
			`{"user_id":1,"date":"2024-07-31","steps":12000,"sleep_hours":5.5,"stress_score":40}`)

		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		resp := decode[HealthDataResponse](t, rec)
		assert.Equal(t, int64(1), resp.Record.UserID)
		assert.Equal(t, int32(12000), resp.Record.Steps.Int32)
		assert.False(t, resp.Record.HeartRateAvg.Valid)
		assert.Equal(t, int64(rewards.PointsPerRecord), resp.Points)
		assert.Equal(t, []string{wellness.SuggestionHighActivity, wellness.SuggestionLowSleep}, resp.Suggestions)
	})

	t.Run("PointsAccumulate", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/health-data", `{"user_id":1,"date":"2024-08-01","steps":3000}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		assert.Equal(t, int64(20), decode[HealthDataResponse](t, rec).Points)
	})

	t.Run("DateDefaultsToToday", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/health-data", `{"user_id":2,"steps":10}`)

		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decode[HealthDataResponse](t, rec)
		assert.Equal(t, time.Now().Format(time.DateOnly), resp.Record.Date.Time.Format(time.DateOnly))
	})

	invalid := map[string]string{
		"InvalidJSON":       `{bad-json`,
		"MissingUser":       `{"steps":10}`,
		"NegativeSteps":     `{"user_id":1,"steps":-1}`,
		"StressOutOfRange":  `{"user_id":1,"stress_score":101}`,
		"NegativeStress":    `{"user_id":1,"stress_score":-5}`,
		"BadDate":           `{"user_id":1,"date":"31/07/2024"}`,
		"NegativeCalories":  `{"user_id":1,"calories_burned":-10}`,
		"NegativeHeartRate": `{"user_id":1,"heart_rate_avg":-1}`,
		"TooMuchSleep":      `{"user_id":1,"sleep_hours":25}`,
	}
	for name, body := range invalid {
		t.Run(name, func(t *testing.T) {
			before := len(store.records)
			rec := do(t, h, http.MethodPost, "/health-data", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Len(t, store.records, before)
		})
	}

	t.Run("StoreFailure", func(t *testing.T) {
		store.err = errors.New("connection refused")
		defer func() { store.err = nil }()

		rec := do(t, h, http.MethodPost, "/health-data", `{"user_id":1,"steps":10}`)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}

func TestHealthDataRequestValidation(t *testing.T) {
	now := time.Date(2024, 7, 31, 15, 0, 0, 0, time.UTC)
	stress := int32(120)

	_, err := HealthDataRequest{UserID: 1, StressScore: &stress}.toParams(now)
	assert.ErrorIs(t, err, ErrInvalidRecord)

	p, err := HealthDataRequest{UserID: 4}.toParams(now)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-31", p.Date.Time.Format(time.DateOnly))
	assert.False(t, p.Steps.Valid)
	assert.False(t, p.StressScore.Valid)
}

/* ---------------- GET /health-data/:user_id ---------------- */

func TestListHealthData(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	for _, date := range []string{"2024-07-29", "2024-07-30", "2024-07-31"} {
		rec := do(t, h, http.MethodPost, "/health-data", `{"user_id":3,"date":"`+date+`","steps":100}`)
		require.Equal(t, http.StatusCreated, rec.Code)
	}

	rec := do(t, h, http.MethodGet, "/health-data/3?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	records := decode[[]database.HealthRecord](t, rec)
	require.Len(t, records, 2)
	assert.Equal(t, "2024-07-31", records[0].Date.Time.Format(time.DateOnly))

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/health-data/abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/health-data/3?limit=0", "").Code)
}

/* ---------------- suggestions ---------------- */

func TestSuggestionsHandler(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	t.Run("Body", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/suggestions", `{"steps":15000,"calories_burned":700}`)

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[map[string][]string](t, rec)
		assert.Equal(t, []string{wellness.SuggestionHighActivity, wellness.SuggestionHighCalories}, got["suggestions"])
	})

	t.Run("EmptyBodyUsesDefaults", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/suggestions", `{}`)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{wellness.SuggestionAllGood}, decode[map[string][]string](t, rec)["suggestions"])
	})

	t.Run("LatestRecordMissing", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/suggestions/9", "").Code)
	})

	t.Run("LatestRecord", func(t *testing.T) {
		require.Equal(t, http.StatusCreated,
			do(t, h, http.MethodPost, "/health-data", `{"user_id":9,"date":"2024-07-30","heart_rate_avg":110}`).Code)
		require.Equal(t, http.StatusCreated,
			do(t, h, http.MethodPost, "/health-data", `{"user_id":9,"date":"2024-07-31","stress_score":65}`).Code)

		rec := do(t, h, http.MethodGet, "/suggestions/9", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[map[string]any](t, rec)
		assert.Equal(t, []any{wellness.SuggestionHighStress}, got["suggestions"])
	})
}

/* ---------------- GET /food-recommendation ---------------- */

func TestFoodRecommendationHandler(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	tests := []struct {
		query    string
		contains string
		tier     string
	}{
		{"steps=6000&calories_burned=350&time_of_day=morning", "Paneer Sandwich", "high"},
		{"steps=500&calories_burned=50&time_of_day=MORNING", "A piece of Fruit", "low"},
		{"steps=3000&calories_burned=150&time_of_day=evening", "Vegetable Soup", "moderate"},
		{"steps=1500&calories_burned=120&time_of_day=anytime", "Water is always a good choice!", "fallback"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, "/food-recommendation?"+tt.query, "")

			require.Equal(t, http.StatusOK, rec.Code)
			got := decode[map[string]string](t, rec)
			assert.Contains(t, got["recommendation"], tt.contains)
			assert.Equal(t, tt.tier, got["tier"])
		})
	}

	t.Run("DefaultTimeOfDay", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/food-recommendation?steps=6000&calories_burned=350", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, []string{wellness.Morning, wellness.Afternoon, wellness.Evening},
			decode[map[string]string](t, rec)["time_of_day"])
	})

	for _, q := range []string{"steps=-1", "steps=abc", "calories_burned=-3", "calories_burned=x", "calories_burned=NaN", "calories_burned=Inf", "calories_burned=-Inf"} {
		t.Run("Invalid "+q, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/food-recommendation?"+q, "").Code)
		})
	}
}

/* ---------------- GET /notifications/:user_id ---------------- */

func TestNotificationsHandler(t *testing.T) {
	s, store := setUpTestServer(t)
	h := s.RegisterRoutes()

	t.Run("NoRecord", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/notifications/5", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[notificationEvent](t, rec)
		assert.ElementsMatch(t, []string{wellness.NotificationHydrate, wellness.NotificationLogData}, got.Notifications)
	})

	t.Run("InactiveAndStressed", func(t *testing.T) {
		require.Equal(t, http.StatusCreated,
			do(t, h, http.MethodPost, "/health-data", `{"user_id":5,"steps":50,"stress_score":80}`).Code)

		got := decode[notificationEvent](t, do(t, h, http.MethodGet, "/notifications/5", ""))
		assert.ElementsMatch(t, []string{
			wellness.NotificationHydrate,
			wellness.NotificationMove,
			wellness.NotificationStretch,
			wellness.NotificationBreathe,
		}, got.Notifications)
	})

	t.Run("StoreDown", func(t *testing.T) {
		store.err = errors.New("connection refused")
		defer func() { store.err = nil }()

		rec := do(t, h, http.MethodGet, "/notifications/5", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[notificationEvent](t, rec)
		assert.ElementsMatch(t, []string{wellness.NotificationHydrate, wellness.NotificationLogData}, got.Notifications)
	})

	t.Run("InvalidUser", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/notifications/0", "").Code)
	})
}

/* ---------------- GET /summary/:user_id and /rewards/:user_id ---------------- */

func TestSummaryAndRewards(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	t.Run("EmptyUser", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/summary/11", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[SummaryResponse](t, rec)
		assert.Nil(t, got.LatestRecord)
		assert.Empty(t, got.Suggestions)
		assert.Empty(t, got.FoodRecommendation)
		assert.ElementsMatch(t, []string{wellness.NotificationHydrate, wellness.NotificationLogData}, got.Notifications)
		assert.Equal(t, int64(0), got.Points)
	})

	require.Equal(t, http.StatusCreated,
		do(t, h, http.MethodPost, "/health-data", `{"user_id":11,"steps":6000,"calories_burned":350}`).Code)

	t.Run("WithRecord", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/summary/11?time_of_day=morning", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[SummaryResponse](t, rec)
		require.NotNil(t, got.LatestRecord)
		assert.Equal(t, []string{wellness.SuggestionAllGood}, got.Suggestions)
		assert.Contains(t, got.FoodRecommendation, "Paneer Sandwich")
		assert.Equal(t, []string{wellness.NotificationHydrate}, got.Notifications)
		assert.Equal(t, int64(10), got.Points)
	})

	t.Run("Rewards", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/rewards/11", "")

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, int64(10), decode[map[string]int64](t, rec)["points"])
	})
}

/* ---------------- GET /health ---------------- */

func TestHealthHandler(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	rec := do(t, h, http.MethodGet, "/health", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[map[string]any](t, rec)
	assert.Equal(t, map[string]any{"status": "not configured"}, got["database"])
	assert.Contains(t, got, "host")
}

func TestRequestIDHeader(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "req-123", rec.Header().Get("X-Request-ID"))

	rec = do(t, h, http.MethodGet, "/health", "")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

/* ---------------- Google Fit ---------------- */

func TestGoogleFitDisabled(t *testing.T) {
	s, _ := setUpTestServer(t)
	h := s.RegisterRoutes()

	for _, path := range []string{"/auth/google-fit?user_id=1", googlefit.CallbackPath, "/google-fit/data/1"} {
		assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, path, "").Code, path)
	}
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/google-fit/sync/1", "").Code)
}

func TestGoogleFitDataAndSync(t *testing.T) {
	fit, err := googlefit.New(config.Config{
		AppURL:             "http://localhost:8080",
		SessionSecret:      "test-secret-test-secret-test-sec",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
	})
	require.NoError(t, err)

	s, store := setUpTestServer(t)
	s.fit = fit
	h := s.RegisterRoutes()

	t.Run("NotConnected", func(t *testing.T) {
		assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/google-fit/data/8", "").Code)
	})

	fit.SetToken(8, &oauth2.Token{AccessToken: "token", Expiry: time.Now().Add(time.Hour)})

	t.Run("Data", func(t *testing.T) {
		rec := do(t, h, http.MethodGet, "/google-fit/data/8", "")

		require.Equal(t, http.StatusOK, rec.Code)
		got := decode[map[string]any](t, rec)
		assert.Equal(t, []any{wellness.SuggestionAllGood}, got["suggestions"])
	})

	t.Run("Sync", func(t *testing.T) {
		rec := do(t, h, http.MethodPost, "/google-fit/sync/8", "")

		require.Equal(t, http.StatusCreated, rec.Code)
		resp := decode[HealthDataResponse](t, rec)
		assert.Equal(t, int32(5000), resp.Record.Steps.Int32)
		assert.Len(t, store.records, 1)
	})
}

/* ---------------- WebSocket ---------------- */

func TestNotificationSocket(t *testing.T) {
	s, _ := setUpTestServer(t)
	srv := httptest.NewServer(s.RegisterRoutes())
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/notifications/21"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	var initial notificationEvent
	require.NoError(t, conn.ReadJSON(&initial))
	assert.Equal(t, int64(21), initial.UserID)
	assert.ElementsMatch(t, []string{wellness.NotificationHydrate, wellness.NotificationLogData}, initial.Notifications)

	require.Eventually(t, func() bool { return s.hub.Connected(21) }, time.Second, 10*time.Millisecond)

	resp, err := http.Post(srv.URL+"/health-data", "application/json",
		strings.NewReader(`{"user_id":21,"steps":20,"stress_score":90}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var pushed notificationEvent
	require.NoError(t, conn.ReadJSON(&pushed))
	assert.ElementsMatch(t, []string{
		wellness.NotificationHydrate,
		wellness.NotificationMove,
		wellness.NotificationStretch,
		wellness.NotificationBreathe,
	}, pushed.Notifications)
}
