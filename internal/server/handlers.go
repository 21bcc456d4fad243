package server

import (
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"fitgent/internal/database"
	"fitgent/internal/googlefit"
	"fitgent/internal/utility"
	"fitgent/internal/wellness"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
	"golang.org/x/sync/errgroup"
)

type notificationEvent struct {
	UserID        int64    `json:"user_id"`
	Notifications []string `json:"notifications"`
}

// SummaryResponse bundles every engine's output for one user.
type SummaryResponse struct {
	UserID             int64                  `json:"user_id"`
	LatestRecord       *database.HealthRecord `json:"latest_record"`
	Suggestions        []string               `json:"suggestions"`
	FoodRecommendation string                 `json:"food_recommendation,omitempty"`
	Notifications      []string               `json:"notifications"`
	Points             int64                  `json:"points"`
}

func (s *Server) healthHandler(c echo.Context) error {
	stats := map[string]any{}

	if s.db != nil {
		stats["database"] = s.db.Health()
	} else {
		stats["database"] = map[string]string{"status": "not configured"}
	}

	host := map[string]any{}
	if v, err := mem.VirtualMemory(); err == nil {
		host["memory_used_percent"] = v.UsedPercent
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		host["cpu_percent"] = pct[0]
	}
	stats["host"] = host

	return c.JSON(http.StatusOK, stats)
}

// suggestionsHandler handles POST /suggestions with a metrics body.
func (s *Server) suggestionsHandler(c echo.Context) error {
	var m wellness.Metrics
	if err := c.Bind(&m); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}
	return c.JSON(http.StatusOK, map[string][]string{"suggestions": wellness.Suggestions(m)})
}

// latestSuggestionsHandler handles GET /suggestions/:user_id
func (s *Server) latestSuggestionsHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	latest, err := s.store.LatestHealthRecord(ctx, userID)
	if err != nil {
		utility.Logger(c).Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch latest health data")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve health data"})
	}
	if latest == nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "No health data found for user"})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id":     userID,
		"date":        latest.Date,
		"suggestions": wellness.Suggestions(wellness.MetricsFromRecord(*latest)),
	})
}

// foodRecommendationHandler handles
// GET /food-recommendation?steps=N&calories_burned=X&time_of_day=morning
func (s *Server) foodRecommendationHandler(c echo.Context) error {
	steps := 0
	if raw := c.QueryParam("steps"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "steps must be a non-negative integer"})
		}
		steps = n
	}

	calories := 0.0
	if raw := c.QueryParam("calories_burned"); raw != "" {
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil || f < 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "calories_burned must be a non-negative number"})
		}
		calories = f
	}

	timeOfDay := c.QueryParam("time_of_day")
	if timeOfDay == "" {
		timeOfDay = wellness.TimeOfDay(time.Now())
	}

	return c.JSON(http.StatusOK, map[string]any{
		"recommendation": s.food.Recommend(steps, calories, timeOfDay),
		"tier":           wellness.ClassifyActivity(steps, calories),
		"time_of_day":    timeOfDay,
	})
}

// notificationsHandler handles GET /notifications/:user_id
func (s *Server) notificationsHandler(c echo.Context) error {
	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	return c.JSON(http.StatusOK, notificationEvent{
		UserID:        userID,
		Notifications: s.notifier.Check(c.Request().Context(), userID),
	})
}

// summaryHandler handles GET /summary/:user_id?time_of_day=evening
func (s *Server) summaryHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	var (
		latest *database.HealthRecord
		points int64
	)

	g, grpCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var e error
		latest, e = s.store.LatestHealthRecord(grpCtx, userID)
		return e
	})
	g.Go(func() error {
		var e error
		points, e = s.rewards.Get(grpCtx, userID)
		return e
	})
	if err := g.Wait(); err != nil {
		utility.Logger(c).Error().Err(err).Int64("user_id", userID).Msg("Failed to build summary")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to build summary"})
	}

	resp := SummaryResponse{
		UserID:        userID,
		LatestRecord:  latest,
		Suggestions:   []string{},
		Notifications: wellness.Notifications(latest),
		Points:        points,
	}

	if latest != nil {
		m := wellness.MetricsFromRecord(*latest)
		resp.Suggestions = wellness.Suggestions(m)

		timeOfDay := c.QueryParam("time_of_day")
		if timeOfDay == "" {
			timeOfDay = wellness.TimeOfDay(time.Now())
		}
		resp.FoodRecommendation = s.food.Recommend(int(latest.Steps.Int32), latest.CaloriesBurned.Float64, timeOfDay)
	}

	return c.JSON(http.StatusOK, resp)
}

// rewardsHandler handles GET /rewards/:user_id
func (s *Server) rewardsHandler(c echo.Context) error {
	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	points, err := s.rewards.Get(c.Request().Context(), userID)
	if err != nil {
		utility.Logger(c).Error().Err(err).Int64("user_id", userID).Msg("Failed to read rewards")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve rewards"})
	}

	return c.JSON(http.StatusOK, map[string]int64{"user_id": userID, "points": points})
}

// notificationSocketHandler handles GET /ws/notifications/:user_id. The
// client receives its current reminders on connect and after every ingest.
func (s *Server) notificationSocketHandler(c echo.Context) error {
	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	conn, err := s.hub.Upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		utility.Logger(c).Error().Err(err).Msg("WebSocket upgrade failed")
		return nil
	}

	s.hub.Register(userID, conn)
	s.hub.Push(userID, notificationEvent{
		UserID:        userID,
		Notifications: s.notifier.Check(c.Request().Context(), userID),
	})

	// Keep the connection until the client goes away.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	s.hub.Unregister(userID, conn)
	conn.Close()
	return nil
}

/* ====================================================================
                   		Google Fit Handlers
==================================================================== */

func (s *Server) googleFitDisabled(c echo.Context) error {
	return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Google Fit integration is not configured"})
}

func (s *Server) googleFitBeginHandler(c echo.Context) error {
	if s.fit == nil {
		return s.googleFitDisabled(c)
	}
	return s.fit.BeginAuthHandler(c)
}

func (s *Server) googleFitCallbackHandler(c echo.Context) error {
	if s.fit == nil {
		return s.googleFitDisabled(c)
	}
	return s.fit.CallbackHandler(c)
}

// googleFitDataHandler handles GET /google-fit/data/:user_id
func (s *Server) googleFitDataHandler(c echo.Context) error {
	if s.fit == nil {
		return s.googleFitDisabled(c)
	}

	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	data, err := s.fit.Fetch(c.Request().Context(), userID)
	if err != nil {
		return s.googleFitError(c, userID, err)
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user_id": userID,
		"data":    data,
		"suggestions": wellness.Suggestions(wellness.Metrics{
			Steps:          &data.Steps,
			SleepHours:     &data.SleepHours,
			HeartRateAvg:   &data.HeartRateAvg,
			CaloriesBurned: &data.CaloriesBurned,
		}),
	})
}

// googleFitSyncHandler handles POST /google-fit/sync/:user_id and stores
// today's Google Fit data as a health record.
func (s *Server) googleFitSyncHandler(c echo.Context) error {
	if s.fit == nil {
		return s.googleFitDisabled(c)
	}

	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	data, err := s.fit.Fetch(c.Request().Context(), userID)
	if err != nil {
		return s.googleFitError(c, userID, err)
	}

	resp, err := s.saveHealthRecord(c, database.InsertHealthRecordParams{
		UserID:         userID,
		Date:           pgtype.Date{Time: googlefit.Today(), Valid: true},
		Steps:          pgtype.Int4{Int32: int32(data.Steps), Valid: true},
		SleepHours:     pgtype.Float8{Float64: data.SleepHours, Valid: true},
		HeartRateAvg:   pgtype.Float8{Float64: data.HeartRateAvg, Valid: true},
		CaloriesBurned: pgtype.Float8{Float64: data.CaloriesBurned, Valid: true},
	})
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save health data"})
	}
	return c.JSON(http.StatusCreated, resp)
}

func (s *Server) googleFitError(c echo.Context, userID int64, err error) error {
	if errors.Is(err, googlefit.ErrNotConnected) {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Google Fit account not connected"})
	}
	utility.Logger(c).Error().Err(err).Int64("user_id", userID).Msg("Failed to fetch Google Fit data")
	return c.JSON(http.StatusBadGateway, map[string]string{"error": "Failed to fetch Google Fit data"})
}
