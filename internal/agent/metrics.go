package agent

import "math"

// SharpeRatio mean over sample standard deviation of per-cycle returns of the
// account value curve. Zero when fewer than two returns exist or returns are flat.
func SharpeRatio(values []float64) float64 {
	returns := make([]float64, 0, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] <= 0 {
			continue
		}
		returns = append(returns, values[i]/values[i-1]-1)
	}
	if len(returns) < 2 {
		return 0
	}

	var sum float64
	for _, r := range returns {
		sum += r
	}
	mean := sum / float64(len(returns))

	var sq float64
	for _, r := range returns {
		sq += (r - mean) * (r - mean)
	}
	std := math.Sqrt(sq / float64(len(returns)-1))
	if std == 0 {
		return 0
	}
	return mean / std
}

// TotalReturnPercent return of value over the start balance.
func TotalReturnPercent(start, value float64) float64 {
	if start <= 0 {
		return 0
	}
	return (value - start) / start * 100
}
