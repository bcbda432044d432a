package ml

// Factors breaks a prediction down into readable contributions.
type Factors struct {
	BaseTravelTime  float64 `json:"base_travel_time" bson:"base_travel_time"`
	TrafficImpact   float64 `json:"traffic_impact" bson:"traffic_impact"`
	VehicleFactor   string  `json:"vehicle_factor" bson:"vehicle_factor"`
	WeatherFactor   string  `json:"weather_factor" bson:"weather_factor"`
	RouteComplexity string  `json:"route_complexity" bson:"route_complexity"`
	IsRushHour      bool    `json:"is_rush_hour" bson:"is_rush_hour"`
}

// Explain compares etaHours against the naive distance/base_speed time. The
// traffic impact is negative when the model beats the naive estimate.
// effectiveHour must be the hour the encoder used.
func Explain(req *ETARequest, etaHours float64, effectiveHour int) Factors {
	baseTime := req.Distance / req.BaseSpeed

	return Factors{
		BaseTravelTime:  Round2(baseTime * 60),
		TrafficImpact:   Round2((etaHours - baseTime) * 60),
		VehicleFactor:   req.Vehicle,
		WeatherFactor:   req.Weather,
		RouteComplexity: req.Route,
		IsRushHour:      IsRushHour(effectiveHour),
	}
}
