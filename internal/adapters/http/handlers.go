package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"github.com/quentinrf/smartband-edge/internal/domain"
	"github.com/quentinrf/smartband-edge/internal/ports"
)

type recordRequest struct {
	SmartBandID any `json:"smartBandId"`
	Pulse       any `json:"pulse"`
}

type recordResponse struct {
	ID          int64         `json:"id"`
	SmartBandID int64         `json:"smartBandId"`
	Pulse       int           `json:"pulse"`
	Status      domain.Status `json:"status"`
	Timestamp   time.Time     `json:"timestamp"`
	Message     string        `json:"message"`
}

type historyItem struct {
	ID        int64         `json:"id"`
	Pulse     int           `json:"pulse"`
	Status    domain.Status `json:"status"`
	Timestamp time.Time     `json:"timestamp"`
}

type historyResponse struct {
	SmartBandID int64         `json:"smartBandId"`
	Readings    []historyItem `json:"readings"`
	Total       int           `json:"total"`
}

type statisticsResponse struct {
	SmartBandID int64    `json:"smartBandId"`
	Count       int64    `json:"count"`
	Min         *int     `json:"min"`
	Max         *int     `json:"max"`
	Average     *float64 `json:"average"`
}

type healthResponse struct {
	Status    string    `json:"status"`
	Service   string    `json:"service,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Database  string    `json:"database,omitempty"`
	Message   string    `json:"message,omitempty"`
}

// recordHeartRate handles POST /api/v1/health-monitoring/data-records
func (s *Server) recordHeartRate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.UseNumber()

	var req recordRequest
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeDetail(w, r, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeDetail(w, r, http.StatusBadRequest, "invalid JSON body")
		return
	}

	id, err := s.commands.Handle(r.Context(), ports.RecordHeartRate{
		SmartBandID: req.SmartBandID,
		Pulse:       req.Pulse,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	reading, found, err := s.queries.GetReading(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if !found {
		hlog.FromRequest(r).Error().Int64("id", id).Msg("created reading not found on read-back")
		writeDetail(w, r, http.StatusInternalServerError, "Failed to retrieve created reading")
		return
	}

	writeJSON(w, r, http.StatusCreated, recordResponse{
		ID:          reading.ID(),
		SmartBandID: reading.SmartBandID(),
		Pulse:       reading.Pulse(),
		Status:      reading.Status(),
		Timestamp:   reading.Timestamp(),
		Message:     fmt.Sprintf("Heart rate recorded successfully. Status: %s", reading.Status()),
	})
}

// getHistory handles GET .../{smartBandId}/history?limit=N
func (s *Server) getHistory(w http.ResponseWriter, r *http.Request) {
	smartBandID, err := domain.ParseSmartBandID(r.PathValue("smartBandId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil {
			writeDetail(w, r, http.StatusBadRequest, fmt.Sprintf("limit: %q is not a whole number", raw))
			return
		}
		if limit == 0 {
			writeError(w, r, &domain.ValidationError{Field: "limit", Reason: "must be positive"})
			return
		}
	}

	history, err := s.queries.GetHistory(r.Context(), ports.GetHeartRateHistory{
		SmartBandID: smartBandID,
		Limit:       limit,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	items := make([]historyItem, 0, len(history.Readings))
	for _, reading := range history.Readings {
		items = append(items, historyItem{
			ID:        reading.ID(),
			Pulse:     reading.Pulse(),
			Status:    reading.Status(),
			Timestamp: reading.Timestamp(),
		})
	}

	writeJSON(w, r, http.StatusOK, historyResponse{
		SmartBandID: smartBandID,
		Readings:    items,
		Total:       history.Total,
	})
}

// getStatistics handles GET .../{smartBandId}/statistics
func (s *Server) getStatistics(w http.ResponseWriter, r *http.Request) {
	smartBandID, err := domain.ParseSmartBandID(r.PathValue("smartBandId"))
	if err != nil {
		writeError(w, r, err)
		return
	}

	stats, err := s.queries.GetStatistics(r.Context(), ports.GetHeartRateStatistics{SmartBandID: smartBandID})
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusOK, statisticsResponse{
		SmartBandID: stats.SmartBandID,
		Count:       stats.Count,
		Min:         stats.Min,
		Max:         stats.Max,
		Average:     stats.Average,
	})
}

// health never touches the store
func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "healthy",
		Service:   ServiceName,
		Timestamp: s.now().UTC(),
	})
}

// keepalive runs SELECT 1 on GET so an idle hosted database is not paused.
// Failures are reported in the body with status 200.
func (s *Server) keepalive(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodHead {
		writeJSON(w, r, http.StatusOK, healthResponse{Status: "alive", Timestamp: s.now().UTC()})
		return
	}

	if err := s.store.Ping(r.Context()); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Msg("keep-alive query failed")
		writeJSON(w, r, http.StatusOK, healthResponse{
			Status:    "error",
			Timestamp: s.now().UTC(),
			Database:  "error",
			Message:   err.Error(),
		})
		return
	}

	writeJSON(w, r, http.StatusOK, healthResponse{
		Status:    "alive",
		Timestamp: s.now().UTC(),
		Database:  "connected",
		Message:   "Keep-alive ping successful",
	})
}

// ping answers without touching the store
func (s *Server) ping(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, r, http.StatusOK, healthResponse{Status: "pong", Timestamp: s.now().UTC()})
}
