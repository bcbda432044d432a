package validators

import (
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"etaservice/pkg/ml"
)

var (
	VehicleTypes = []string{"Car", "Bike", "Truck", "Van"}
	WeatherTypes = []string{"Clear", "Rainy", "Foggy", "Snowy"}
	RouteTypes   = []string{"A", "B", "C"}
	ModelTypes   = []string{ml.ModelXGBoost, ml.ModelLightGBM, ml.ModelNeural, ml.ModelEnsemble}
)

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

// Register installs the prediction tags on v and reports fields by their
// json names.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonTagName)

	tags := map[string]validator.Func{
		"vehicle":    oneOf(VehicleTypes),
		"weather":    oneOf(WeatherTypes),
		"route_type": oneOf(RouteTypes),
		"model_type": oneOf(ModelTypes),
	}
	for tag, fn := range tags {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// RegisterWithGin installs the tags on gin's binding engine.
func RegisterWithGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return nil
	}
	return Register(v)
}

// ValidateStruct checks s against its binding tags outside of a gin
// request, e.g. for websocket messages.
func ValidateStruct(s interface{}) error {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		if err := Register(validate); err != nil {
			panic(err)
		}
	})
	return validate.Struct(s)
}

// IsModelType reports whether name is a selectable model.
func IsModelType(name string) bool {
	return contains(ModelTypes, name)
}

func oneOf(allowed []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		return contains(allowed, fl.Field().String())
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}

func jsonTagName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	if name == "" {
		return field.Name
	}
	return name
}
