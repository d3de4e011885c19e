package indicators

// RSI computes the Relative Strength Index with Wilder smoothing.
// The first average gain/loss is a simple mean over the initial period
// deltas, so at least period+1 values are required.
func RSI(values []float64, period int) (float64, error) {
	if period <= 0 || len(values) < period+1 {
		return 0, ErrInsufficientData
	}

	avgGain := 0.0
	avgLoss := 0.0
	for i := 1; i <= period; i++ {
		change := values[i] - values[i-1]
		if change > 0 {
			avgGain += change
		} else {
			avgLoss -= change
		}
	}
	avgGain /= float64(period)
	avgLoss /= float64(period)

	alpha := 1.0 / float64(period)
	for i := period + 1; i < len(values); i++ {
		change := values[i] - values[i-1]
		gain, loss := 0.0, 0.0
		if change > 0 {
			gain = change
		} else {
			loss = -change
		}
		avgGain = avgGain + alpha*(gain-avgGain)
		avgLoss = avgLoss + alpha*(loss-avgLoss)
	}

	if avgLoss == 0 {
		return 100, nil
	}
	rs := avgGain / avgLoss
	return 100 - (100 / (1 + rs)), nil
}
