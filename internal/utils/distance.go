package utils

// BaseSpeedForVehicle returns the free-flow speed assumed for a vehicle
// class when the caller only supplies coordinates.
func BaseSpeedForVehicle(vehicle string) float64 {
	switch vehicle {
	case "Truck":
		return TruckBaseSpeed
	case "Bike":
		return BikeBaseSpeed
	}
	return DefaultBaseSpeed
}
