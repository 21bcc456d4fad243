package server

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"fitgent/internal/database"
	"fitgent/internal/rewards"
	"fitgent/internal/utility"
	"fitgent/internal/wellness"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/labstack/echo/v4"
)

const (
	defaultListLimit = 30
	maxListLimit     = 365
)

var ErrInvalidRecord = errors.New("invalid health record")

// HealthDataRequest is the ingestion payload. Metrics are optional and
// stored as NULL when absent.
type HealthDataRequest struct {
	UserID         int64    `json:"user_id"`
	Date           string   `json:"date"` // YYYY-MM-DD, defaults to today
	Steps          *int32   `json:"steps"`
	SleepHours     *float64 `json:"sleep_hours"`
	HeartRateAvg   *float64 `json:"heart_rate_avg"`
	StressScore    *int32   `json:"stress_score"`
	CaloriesBurned *float64 `json:"calories_burned"`
}

// HealthDataResponse is returned after a successful ingest.
type HealthDataResponse struct {
	Record      database.HealthRecord `json:"record"`
	Points      int64                 `json:"points"`
	Suggestions []string              `json:"suggestions"`
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidRecord, fmt.Sprintf(format, args...))
}

// toParams enforces the ranges the rule engines rely on.
func (r HealthDataRequest) toParams(now time.Time) (database.InsertHealthRecordParams, error) {
	p := database.InsertHealthRecordParams{UserID: r.UserID}

	if r.UserID <= 0 {
		return p, invalid("user_id must be a positive integer")
	}

	date := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if r.Date != "" {
		parsed, err := time.Parse(time.DateOnly, r.Date)
		if err != nil {
			return p, invalid("date must use YYYY-MM-DD")
		}
		date = parsed
	}
	p.Date = pgtype.Date{Time: date, Valid: true}

	if r.Steps != nil {
		if *r.Steps < 0 {
			return p, invalid("steps must not be negative")
		}
		p.Steps = pgtype.Int4{Int32: *r.Steps, Valid: true}
	}
	if r.SleepHours != nil {
		if *r.SleepHours < 0 || *r.SleepHours > 24 {
			return p, invalid("sleep_hours must be between 0 and 24")
		}
		p.SleepHours = pgtype.Float8{Float64: *r.SleepHours, Valid: true}
	}
	if r.HeartRateAvg != nil {
		if *r.HeartRateAvg < 0 {
			return p, invalid("heart_rate_avg must not be negative")
		}
		p.HeartRateAvg = pgtype.Float8{Float64: *r.HeartRateAvg, Valid: true}
	}
	if r.StressScore != nil {
		if *r.StressScore < 0 || *r.StressScore > 100 {
			return p, invalid("stress_score must be between 0 and 100")
		}
		p.StressScore = pgtype.Int4{Int32: *r.StressScore, Valid: true}
	}
	if r.CaloriesBurned != nil {
		if *r.CaloriesBurned < 0 {
			return p, invalid("calories_burned must not be negative")
		}
		p.CaloriesBurned = pgtype.Float8{Float64: *r.CaloriesBurned, Valid: true}
	}

	return p, nil
}

// ingestHealthDataHandler handles POST /health-data
func (s *Server) ingestHealthDataHandler(c echo.Context) error {
	var req HealthDataRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request format"})
	}

	params, err := req.toParams(time.Now())
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	resp, err := s.saveHealthRecord(c, params)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to save health data"})
	}
	return c.JSON(http.StatusCreated, resp)
}

// saveHealthRecord stores the record, awards points and pushes fresh
// notifications to a connected client.
func (s *Server) saveHealthRecord(c echo.Context, params database.InsertHealthRecordParams) (HealthDataResponse, error) {
	ctx := c.Request().Context()
	logger := utility.Logger(c)

	record, err := s.store.InsertHealthRecord(ctx, params)
	if err != nil {
		logger.Error().Err(err).Int64("user_id", params.UserID).Msg("Failed to insert health record")
		return HealthDataResponse{}, err
	}

	points, err := s.rewards.Add(ctx, params.UserID, rewards.PointsPerRecord)
	if err != nil {
		// Points are a bonus; the record is already stored.
		logger.Warn().Err(err).Int64("user_id", params.UserID).Msg("Failed to award points")
	}

	if s.hub.Connected(params.UserID) {
		s.hub.Push(params.UserID, notificationEvent{
			UserID:        params.UserID,
			Notifications: s.notifier.Check(ctx, params.UserID),
		})
	}

	logger.Info().Int64("user_id", params.UserID).Int64("record_id", record.ID).Msg("Health data stored")

	return HealthDataResponse{
		Record:      record,
		Points:      points,
		Suggestions: wellness.Suggestions(wellness.MetricsFromRecord(record)),
	}, nil
}

// listHealthDataHandler handles GET /health-data/:user_id?limit=N
func (s *Server) listHealthDataHandler(c echo.Context) error {
	ctx := c.Request().Context()

	userID, err := utility.GetUserIDParam(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid user ID"})
	}

	limit := defaultListLimit
	if raw := c.QueryParam("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": "limit must be a positive integer"})
		}
		limit = utility.Min(n, maxListLimit)
	}

	records, err := s.store.ListHealthRecords(ctx, database.ListHealthRecordsParams{
		UserID: userID,
		Limit:  int32(limit),
	})
	if err != nil {
		utility.Logger(c).Error().Err(err).Int64("user_id", userID).Msg("Failed to retrieve health data")
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve records"})
	}

	return c.JSON(http.StatusOK, records)
}
