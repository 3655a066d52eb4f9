package ports

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/quentinrf/smartband-edge/internal/domain"
)

// RecordHeartRate is the write command. Fields are loosely typed because
// they arrive straight from JSON bodies and MQTT payloads.
type RecordHeartRate struct {
	SmartBandID any
	Pulse       any
}

// RecordHeartRateHandler validates, classifies and persists readings
type RecordHeartRateHandler struct {
	repo domain.ReadingRepository
}

// NewRecordHeartRateHandler creates the command handler
func NewRecordHeartRateHandler(repo domain.ReadingRepository) *RecordHeartRateHandler {
	return &RecordHeartRateHandler{repo: repo}
}

// Handle records one reading and returns its store-assigned ID.
// Invalid input is rejected before the repository is touched.
func (h *RecordHeartRateHandler) Handle(ctx context.Context, cmd RecordHeartRate) (int64, error) {
	smartBandID, err := domain.ParseSmartBandID(cmd.SmartBandID)
	if err != nil {
		return 0, err
	}

	pulse, err := domain.ParsePulse(cmd.Pulse)
	if err != nil {
		return 0, err
	}

	reading, err := domain.NewHeartRateReading(smartBandID, pulse)
	if err != nil {
		return 0, err
	}

	id, err := h.repo.Save(ctx, reading)
	if err != nil {
		return 0, err
	}

	log.Debug().
		Int64("id", id).
		Int64("smart_band_id", smartBandID).
		Int("pulse", pulse).
		Str("status", string(reading.Status())).
		Msg("recorded heart rate reading")

	return id, nil
}
