package ml

import "math"

type ConfidenceLevel string

const (
	ConfidenceHigh   ConfidenceLevel = "high"
	ConfidenceMedium ConfidenceLevel = "medium"
	ConfidenceLow    ConfidenceLevel = "low"
)

const (
	// DefaultResidualStd is used, in hours, for models without recorded
	// residuals.
	DefaultResidualStd = 0.1

	highConfidenceStd   = 0.05
	mediumConfidenceStd = 0.10

	// z95 is the two-sided 95% normal quantile.
	z95 = 1.96
)

// ETARange is a confidence interval in minutes.
type ETARange struct {
	Lower float64 `json:"lower" bson:"lower"`
	Upper float64 `json:"upper" bson:"upper"`
}

// Estimate sizes a 95% interval around etaMinutes from the model's residual
// standard deviation and labels it. The thresholds are the same for every
// model.
func Estimate(modelName string, etaMinutes float64, residuals ResidualStats) (ETARange, ConfidenceLevel) {
	std, ok := residuals[modelName]
	if !ok {
		std = DefaultResidualStd
	}

	margin := z95 * std * 60
	eta := ETARange{
		Lower: math.Max(0, etaMinutes-margin),
		Upper: etaMinutes + margin,
	}

	return eta, confidenceLabel(std)
}

func confidenceLabel(std float64) ConfidenceLevel {
	switch {
	case std < highConfidenceStd:
		return ConfidenceHigh
	case std < mediumConfidenceStd:
		return ConfidenceMedium
	default:
		return ConfidenceLow
	}
}
