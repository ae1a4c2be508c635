package utils

import (
	"ecoTrackAPI/internal/activity"
)

// Emission factors in kg CO2. Transport is per km, cooking per hour of
// appliance use, energy per minute of usage, shopping is a flat estimate
// per trip.
var transportFactors = map[string]float64{
	"car":   0.21,
	"bus":   0.089,
	"train": 0.041,
	"bike":  0,
}

var cookingFactors = map[string]float64{
	"gas":       0.5,
	"electric":  0.3,
	"microwave": 0.15,
	"oven":      0.8,
}

const (
	energyFactorPerMinute = 0.1
	shoppingFlatEmission  = 2.5
)

// CalculateCO2 computes the emission for a logged activity. Unknown activity
// types contribute zero rather than failing the log.
func CalculateCO2(category activity.Category, activityType string, durationMinutes *int, distanceKm *float64) float64 {
	switch category {
	case activity.CategoryTransport:
		if distanceKm == nil {
			return 0
		}
		return transportFactors[activityType] * *distanceKm
	case activity.CategoryCooking:
		if durationMinutes == nil {
			return 0
		}
		return cookingFactors[activityType] * (float64(*durationMinutes) / 60)
	case activity.CategoryEnergy:
		if durationMinutes == nil {
			return 0
		}
		return float64(*durationMinutes) * energyFactorPerMinute
	case activity.CategoryShopping:
		return shoppingFlatEmission
	}
	return 0
}
