package ports

import (
	"context"
	"fmt"

	"github.com/quentinrf/smartband-edge/internal/domain"
)

// MaxHistoryLimit caps how many readings one history query may return
const MaxHistoryLimit = 1000

// GetHeartRateHistory asks for the latest readings of a band.
// A zero Limit means domain.DefaultHistoryLimit.
type GetHeartRateHistory struct {
	SmartBandID int64
	Limit       int
}

// GetHeartRateStatistics asks for aggregate values of a band
type GetHeartRateStatistics struct {
	SmartBandID int64
}

// History is the result of GetHistory. Total always equals len(Readings).
type History struct {
	SmartBandID int64
	Readings    []*domain.HeartRateReading
	Total       int
}

// HeartRateQueryHandler serves read-only queries
type HeartRateQueryHandler struct {
	repo domain.ReadingRepository
}

// NewHeartRateQueryHandler creates the query handler
func NewHeartRateQueryHandler(repo domain.ReadingRepository) *HeartRateQueryHandler {
	return &HeartRateQueryHandler{repo: repo}
}

// GetHistory returns up to Limit readings, newest first
func (h *HeartRateQueryHandler) GetHistory(ctx context.Context, q GetHeartRateHistory) (History, error) {
	limit := q.Limit
	switch {
	case limit == 0:
		limit = domain.DefaultHistoryLimit
	case limit < 0 || limit > MaxHistoryLimit:
		return History{}, &domain.ValidationError{
			Field:  "limit",
			Reason: fmt.Sprintf("must be between 1 and %d", MaxHistoryLimit),
		}
	}

	readings, err := h.repo.FindByDevice(ctx, q.SmartBandID, limit)
	if err != nil {
		return History{}, err
	}
	if readings == nil {
		readings = []*domain.HeartRateReading{}
	}

	return History{
		SmartBandID: q.SmartBandID,
		Readings:    readings,
		Total:       len(readings),
	}, nil
}

// GetStatistics returns count, min, max and average pulse for a band
func (h *HeartRateQueryHandler) GetStatistics(ctx context.Context, q GetHeartRateStatistics) (domain.Statistics, error) {
	return h.repo.Aggregate(ctx, q.SmartBandID)
}

// GetReading looks up a single reading; found is false when it does not exist
func (h *HeartRateQueryHandler) GetReading(ctx context.Context, id int64) (*domain.HeartRateReading, bool, error) {
	return h.repo.FindByID(ctx, id)
}
