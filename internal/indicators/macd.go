package indicators

import "math"

// MACDResult holds the last value of each MACD line.
type MACDResult struct {
	MACD      float64
	Signal    float64
	Histogram float64
}

// MACD computes the Moving Average Convergence Divergence with the given
// fast/slow/signal periods (standard parameters are 12/26/9). It needs at
// least slow+signal values so the signal line has a full warm-up.
func MACD(values []float64, fast, slow, signal int) (MACDResult, error) {
	if fast <= 0 || slow <= fast || signal <= 0 || len(values) < slow+signal {
		return MACDResult{}, ErrInsufficientData
	}

	fastEMA := emaSeries(values, fast)
	slowEMA := emaSeries(values, slow)
	macdLine := make([]float64, len(values))
	for i := range values {
		macdLine[i] = fastEMA[i] - slowEMA[i]
	}

	signalLine := emaSeries(macdLine, signal)
	last := len(values) - 1
	return MACDResult{
		MACD:      macdLine[last],
		Signal:    signalLine[last],
		Histogram: macdLine[last] - signalLine[last],
	}, nil
}

// BollingerBands holds the three band values for the latest close.
type BollingerBands struct {
	Upper  float64
	Middle float64
	Lower  float64
}

// Bollinger computes Bollinger bands over the last period values using the
// sample standard deviation and the given band width in deviations.
func Bollinger(values []float64, period int, width float64) (BollingerBands, error) {
	if period <= 1 || len(values) < period {
		return BollingerBands{}, ErrInsufficientData
	}

	window := values[len(values)-period:]
	mean := 0.0
	for _, v := range window {
		mean += v
	}
	mean /= float64(period)

	variance := 0.0
	for _, v := range window {
		d := v - mean
		variance += d * d
	}
	std := math.Sqrt(variance / float64(period-1))

	return BollingerBands{
		Upper:  mean + width*std,
		Middle: mean,
		Lower:  mean - width*std,
	}, nil
}
