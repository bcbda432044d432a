package ml

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

const (
	ModelXGBoost  = "xgboost"
	ModelLightGBM = "lightgbm"
	ModelNeural   = "neural"
	ModelEnsemble = "ensemble"
)

// BaseModels are the regressors an ensemble can blend, in blending order.
var BaseModels = []string{ModelXGBoost, ModelLightGBM, ModelNeural}

// Model is a fitted regressor returning an ETA in hours.
type Model interface {
	Name() string
	// Scaled reports whether the model consumes the standardized vector.
	Scaled() bool
	Predict(features FeatureVector) (float64, error)
}

func IsKnownModel(name string) bool {
	switch name {
	case ModelXGBoost, ModelLightGBM, ModelNeural, ModelEnsemble:
		return true
	}
	return false
}

func isBaseModel(name string) bool {
	return name != ModelEnsemble && IsKnownModel(name)
}

var featureAliases = map[string]int{
	"vehicle_enc": FeatureVehicle,
	"weather_enc": FeatureWeather,
	"route_enc":   FeatureRoute,
	"hour":        FeatureHour,
	"day":         FeatureDay,
}

// featureIndex resolves a split feature written as "f3", a feature name or a
// training column alias.
func featureIndex(ref string) (int, error) {
	if strings.HasPrefix(ref, "f") {
		if i, err := strconv.Atoi(ref[1:]); err == nil {
			return checkFeatureIndex(i)
		}
	}
	for i, name := range FeatureNames {
		if name == ref {
			return i, nil
		}
	}
	if i, ok := featureAliases[ref]; ok {
		return i, nil
	}
	return 0, fmt.Errorf("unknown split feature %q", ref)
}

func checkFeatureIndex(i int) (int, error) {
	if i < 0 || i >= FeatureCount {
		return 0, fmt.Errorf("feature index %d out of range [0,%d)", i, FeatureCount)
	}
	return i, nil
}

func checkWidth(model string, width int) error {
	if width != FeatureCount {
		return fmt.Errorf("%s expects %d input features, registry encodes %d", model, width, FeatureCount)
	}
	return nil
}

func checkOutput(model string, v float64) (float64, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%s produced non-finite output", model)
	}
	return v, nil
}
