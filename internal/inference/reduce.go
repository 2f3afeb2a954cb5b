package inference

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	"songlens/internal/logging"
)

// FallbackValue is reported whenever a model cannot produce a usable score.
const FallbackValue = 0.5

// positiveIndex selects which of a model's two output classes is the score
// shown to users.
var positiveIndex = map[string]int{
	"mood_happy":      0,
	"mood_sad":        1,
	"mood_relaxed":    1,
	"mood_aggressive": 0,
	"danceability":    0,
}

// PositiveIndex returns the class column reported for model.
func PositiveIndex(model string) (int, bool) {
	idx, ok := positiveIndex[model]
	return idx, ok
}

// TwoValuesAverage averages the first two columns over all rows. Rows with
// fewer than two values are skipped and NaN cells count as 0.5. Without any
// usable row the result is [0.5, 0.5].
func TwoValuesAverage(rows [][]float64) [2]float64 {
	var sum [2]float64
	count := 0
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		for i := 0; i < 2; i++ {
			v := row[i]
			if math.IsNaN(v) {
				v = FallbackValue
			}
			sum[i] += v
		}
		count++
	}
	if count == 0 {
		return [2]float64{FallbackValue, FallbackValue}
	}
	out := [2]float64{sum[0] / float64(count), sum[1] / float64(count)}
	for i := range out {
		if math.IsNaN(out[i]) {
			out[i] = FallbackValue
		}
	}
	return out
}

// Reduce collapses per-patch predictions into the model's score.
func Reduce(model string, rows [][]float64) (float64, error) {
	if len(rows) == 0 {
		return FallbackValue, errors.New("invalid predictions format received from model")
	}
	idx, ok := PositiveIndex(model)
	if !ok {
		return FallbackValue, fmt.Errorf("no positive index defined for model %q", model)
	}
	avg := TwoValuesAverage(rows)
	return avg[idx], nil
}

// CoercePrediction guarantees a finite value in [0,1]. NaN and infinities
// become 0.5 and out-of-range values are clamped; both are logged as
// warnings.
func CoercePrediction(value float64, logger *slog.Logger, model string, songID int) float64 {
	if logger == nil {
		logger = logging.NewNop()
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		logging.WarnWithContext(logger, "invalid prediction value replaced with fallback", "prediction_coerced",
			logging.String(logging.FieldModel, model),
			logging.Int(logging.FieldSongID, songID),
			logging.Float64("raw_value", value),
			logging.Float64("coerced_value", FallbackValue),
			logging.String(logging.FieldErrorHint, "check model output for this file"),
			logging.String(logging.FieldImpact, "score shown as 0.5"),
		)
		return FallbackValue
	}
	clamped := math.Max(0, math.Min(1, value))
	if clamped != value {
		logging.WarnWithContext(logger, "prediction value clamped to [0,1]", "prediction_coerced",
			logging.String(logging.FieldModel, model),
			logging.Int(logging.FieldSongID, songID),
			logging.Float64("raw_value", value),
			logging.Float64("coerced_value", clamped),
			logging.String(logging.FieldImpact, "score shown at the nearest bound"),
		)
	}
	return clamped
}
