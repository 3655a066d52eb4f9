package domain

// Statistics holds aggregate pulse values for one smart band.
// Min, Max and Average are nil when Count is zero.
type Statistics struct {
	SmartBandID int64
	Count       int64
	Min         *int
	Max         *int
	Average     *float64
}

// EmptyStatistics is the result for a band with no readings.
func EmptyStatistics(smartBandID int64) Statistics {
	return Statistics{SmartBandID: smartBandID}
}

// ComputeStatistics aggregates readings in memory. Stores that can
// aggregate natively should do so instead.
func ComputeStatistics(smartBandID int64, readings []*HeartRateReading) Statistics {
	if len(readings) == 0 {
		return EmptyStatistics(smartBandID)
	}

	var sum int64
	min := readings[0].Pulse()
	max := readings[0].Pulse()

	for _, r := range readings {
		sum += int64(r.Pulse())
		if r.Pulse() < min {
			min = r.Pulse()
		}
		if r.Pulse() > max {
			max = r.Pulse()
		}
	}

	avg := float64(sum) / float64(len(readings))
	return Statistics{
		SmartBandID: smartBandID,
		Count:       int64(len(readings)),
		Min:         &min,
		Max:         &max,
		Average:     &avg,
	}
}
