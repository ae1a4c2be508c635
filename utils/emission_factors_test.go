package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ecoTrackAPI/internal/activity"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestCalculateCO2Transport(t *testing.T) {
	assert.InDelta(t, 2.1, CalculateCO2(activity.CategoryTransport, "car", nil, floatPtr(10)), 1e-9)
	assert.InDelta(t, 0.89, CalculateCO2(activity.CategoryTransport, "bus", nil, floatPtr(10)), 1e-9)
	assert.InDelta(t, 0.41, CalculateCO2(activity.CategoryTransport, "train", nil, floatPtr(10)), 1e-9)
	assert.Zero(t, CalculateCO2(activity.CategoryTransport, "bike", nil, floatPtr(10)))
}

func TestCalculateCO2TransportMissingDistance(t *testing.T) {
	assert.Zero(t, CalculateCO2(activity.CategoryTransport, "car", intPtr(30), nil))
}

func TestCalculateCO2Cooking(t *testing.T) {
	// Cooking factors are per hour; duration is given in minutes.
	assert.InDelta(t, 0.5, CalculateCO2(activity.CategoryCooking, "gas", intPtr(60), nil), 1e-9)
	assert.InDelta(t, 0.15, CalculateCO2(activity.CategoryCooking, "electric", intPtr(30), nil), 1e-9)
	assert.InDelta(t, 0.4, CalculateCO2(activity.CategoryCooking, "oven", intPtr(30), nil), 1e-9)
	assert.Zero(t, CalculateCO2(activity.CategoryCooking, "gas", nil, nil))
}

func TestCalculateCO2Energy(t *testing.T) {
	assert.InDelta(t, 6.0, CalculateCO2(activity.CategoryEnergy, "tv", intPtr(60), nil), 1e-9)
	assert.Zero(t, CalculateCO2(activity.CategoryEnergy, "tv", nil, nil))
}

func TestCalculateCO2ShoppingIsFlat(t *testing.T) {
	// Shopping ignores duration and distance.
	assert.InDelta(t, 2.5, CalculateCO2(activity.CategoryShopping, "groceries", nil, nil), 1e-9)
	assert.InDelta(t, 2.5, CalculateCO2(activity.CategoryShopping, "clothes", intPtr(120), floatPtr(5)), 1e-9)
}

func TestCalculateCO2UnknownTypeContributesZero(t *testing.T) {
	assert.Zero(t, CalculateCO2(activity.CategoryTransport, "rocket", nil, floatPtr(100)))
	assert.Zero(t, CalculateCO2(activity.Category("unknown"), "car", intPtr(10), floatPtr(10)))
}
