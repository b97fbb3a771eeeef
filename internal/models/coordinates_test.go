package models_test

import (
	"math"
	"testing"

	"github.com/UnknownOlympus/hermes/internal/models"
	"github.com/stretchr/testify/assert"
)

func TestCoordinates_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		coords models.Coordinates
		want   bool
	}{
		{"origin", models.Coordinates{}, true},
		{"sao paulo", models.Coordinates{Latitude: -23.55, Longitude: -46.63}, true},
		{"poles and antimeridian", models.Coordinates{Latitude: 90, Longitude: -180}, true},
		{"latitude too large", models.Coordinates{Latitude: 90.01, Longitude: 0}, false},
		{"longitude too small", models.Coordinates{Latitude: 0, Longitude: -180.5}, false},
		{"nan", models.Coordinates{Latitude: math.NaN(), Longitude: 0}, false},
		{"inf", models.Coordinates{Latitude: 0, Longitude: math.Inf(1)}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.coords.Valid())
		})
	}
}

func TestStatus_Toggle(t *testing.T) {
	t.Parallel()

	assert.Equal(t, models.StatusCompleted, models.StatusPending.Toggle())
	assert.Equal(t, models.StatusPending, models.StatusCompleted.Toggle())
}
