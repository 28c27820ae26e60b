package advisory

import (
	"math"
	"sort"

	ironerrors "github.com/ironlayer/ironlayer/internal/errors"
)

// AnomalyClass classifies how unusual a cost observation is.
type AnomalyClass string

const (
	AnomalyNone     AnomalyClass = "none"
	AnomalyMinor    AnomalyClass = "minor"
	AnomalyMajor    AnomalyClass = "major"
	AnomalyCritical AnomalyClass = "critical"
)

// AnomalyResult is the cost anomaly scorer's output.
type AnomalyResult struct {
	Class      AnomalyClass
	ZScore     float64
	Percentile float64
	LowFence   float64
	HighFence  float64
}

// ScoreAnomaly compares latest against a history of at least 3 prior
// observations, computing a Z-score against the history's mean/stddev and
// Tukey IQR fences (1.5*IQR beyond Q1/Q3). Classification follows |Z|:
// <1 none, 1-2 minor, 2-3 major, >=3 critical.
func ScoreAnomaly(history []float64, latest float64) (AnomalyResult, error) {
	if len(history) < 3 {
		return AnomalyResult{}, ironerrors.Validation("history", "at least 3 historical points are required")
	}

	mean, stddev := meanStddev(history)
	var z float64
	if stddev > 0 {
		z = (latest - mean) / stddev
	}

	sorted := append([]float64(nil), history...)
	sort.Float64s(sorted)
	q1 := percentileOf(sorted, 0.25)
	q3 := percentileOf(sorted, 0.75)
	iqr := q3 - q1
	low := q1 - 1.5*iqr
	high := q3 + 1.5*iqr

	absZ := math.Abs(z)
	class := AnomalyNone
	switch {
	case absZ >= 3:
		class = AnomalyCritical
	case absZ >= 2:
		class = AnomalyMajor
	case absZ >= 1:
		class = AnomalyMinor
	}

	return AnomalyResult{
		Class:      class,
		ZScore:     z,
		Percentile: rankPercentile(sorted, latest),
		LowFence:   low,
		HighFence:  high,
	}, nil
}

func meanStddev(values []float64) (mean, stddev float64) {
	n := float64(len(values))
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	mean = sum / n

	variance := 0.0
	for _, v := range values {
		d := v - mean
		variance += d * d
	}
	variance /= n
	return mean, math.Sqrt(variance)
}

// percentileOf returns the linear-interpolated value at quantile q (0-1) of
// an already-sorted slice.
func percentileOf(sorted []float64, q float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}
	pos := q * float64(len(sorted)-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}

// rankPercentile returns what percentile `value` falls at within an
// already-sorted reference slice.
func rankPercentile(sorted []float64, value float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	count := 0
	for _, v := range sorted {
		if v <= value {
			count++
		}
	}
	return float64(count) / float64(len(sorted)) * 100
}

// Trend names the direction a cost forecast's recent history is moving.
type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

// ForecastResult is the cost forecaster's output.
type ForecastResult struct {
	Smoothed      []float64
	Projection7d  float64
	Projection30d float64
	Trend         Trend
	BandLow       float64
	BandHigh      float64
}

// ScoreForecast applies simple exponential smoothing (S_t = alpha*Y_t +
// (1-alpha)*S_t-1, seeded with S_0 = Y_0) over history, projects the final
// smoothed level forward 7 and 30 days unchanged (a flat projection, the
// simplest faithful extrapolation of a level-only smoother), classifies
// trend from the relative slope between the first and last smoothed
// values, and reports a 95% band of +/- 1.96 * sigma * sqrt(7) around the
// final level, where sigma is the standard deviation of the smoothing
// residuals.
func ScoreForecast(history []float64, alpha float64) (ForecastResult, error) {
	if len(history) < 2 {
		return ForecastResult{}, ironerrors.Validation("history", "at least 2 historical points are required")
	}
	if alpha <= 0 || alpha > 1 {
		alpha = 0.3
	}

	smoothed := make([]float64, len(history))
	smoothed[0] = history[0]
	residuals := make([]float64, 0, len(history)-1)
	for i := 1; i < len(history); i++ {
		smoothed[i] = alpha*history[i] + (1-alpha)*smoothed[i-1]
		residuals = append(residuals, history[i]-smoothed[i-1])
	}

	_, sigma := meanStddev(residuals)
	level := smoothed[len(smoothed)-1]

	relativeSlope := 0.0
	if smoothed[0] != 0 {
		relativeSlope = (smoothed[len(smoothed)-1] - smoothed[0]) / math.Abs(smoothed[0])
	}
	trend := TrendStable
	switch {
	case relativeSlope > 0.05:
		trend = TrendIncreasing
	case relativeSlope < -0.05:
		trend = TrendDecreasing
	}

	band := 1.96 * sigma * math.Sqrt(7)

	return ForecastResult{
		Smoothed:      smoothed,
		Projection7d:  level,
		Projection30d: level,
		Trend:         trend,
		BandLow:       level - band,
		BandHigh:      level + band,
	}, nil
}

// PredictorFeatures are the 8 inputs the cost predictor consumes.
type PredictorFeatures struct {
	Partitions      int
	DataVolumeBytes int64
	Workers         int
	SQLComplexity   float64 // an opaque 0-10 complexity score from the SQL toolkit
	JoinCount       int
	CTECount        int
	WindowUsage     bool
	DistinctTables  int
}

// LinearModel is an 8-feature trained regression model: runtime_seconds =
// bias + sum(weights[i] * feature[i]). Feature order matches
// PredictorFeatures' field order, with WindowUsage coerced to 0/1.
type LinearModel struct {
	Weights [8]float64
	Bias    float64
}

// ConfidenceLabel names how tight a predictor's confidence band is.
type ConfidenceLabel string

const (
	ConfidenceHigh   ConfidenceLabel = "high"
	ConfidenceMedium ConfidenceLabel = "medium"
	ConfidenceLow    ConfidenceLabel = "low"
)

// PredictionResult is the cost predictor's output.
type PredictionResult struct {
	RuntimeSeconds  float64
	Confidence      ConfidenceLabel
	BandLowSeconds  float64
	BandHighSeconds float64
}

// PredictCost estimates a step's runtime. When model is non-nil it applies
// the trained linear regression and reports high confidence with a narrow
// +/-10% band. Without a trained model it falls back to a deterministic
// heuristic — base 300s plus 30s per partition, log-scaled by data volume,
// with diminishing returns from additional workers — and reports medium
// confidence with a wider +/-35% band.
func PredictCost(f PredictorFeatures, model *LinearModel) PredictionResult {
	if model != nil {
		windowUsage := 0.0
		if f.WindowUsage {
			windowUsage = 1.0
		}
		features := [8]float64{
			float64(f.Partitions),
			math.Log10(float64(f.DataVolumeBytes) + 1),
			float64(f.Workers),
			f.SQLComplexity,
			float64(f.JoinCount),
			float64(f.CTECount),
			windowUsage,
			float64(f.DistinctTables),
		}
		runtime := model.Bias
		for i, w := range model.Weights {
			runtime += w * features[i]
		}
		if runtime < 0 {
			runtime = 0
		}
		return PredictionResult{
			RuntimeSeconds:  runtime,
			Confidence:      ConfidenceHigh,
			BandLowSeconds:  runtime * 0.9,
			BandHighSeconds: runtime * 1.1,
		}
	}

	base := 300.0 + 30.0*float64(f.Partitions)
	volumeFactor := math.Log10(float64(f.DataVolumeBytes)+10) / math.Log10(10)
	workers := f.Workers
	if workers < 1 {
		workers = 1
	}
	parallelismFactor := 1.0 / math.Sqrt(float64(workers))

	runtime := base * volumeFactor * parallelismFactor
	return PredictionResult{
		RuntimeSeconds:  runtime,
		Confidence:      ConfidenceMedium,
		BandLowSeconds:  runtime * 0.65,
		BandHighSeconds: runtime * 1.35,
	}
}
