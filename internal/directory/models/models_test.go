package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestAgeInMonths(t *testing.T) {
	birth := time.Date(2025, time.March, 15, 0, 0, 0, 0, time.UTC)
	p := Patient{BirthDate: birth}

	tests := []struct {
		name string
		at   time.Time
		want int
	}{
		{"day before one month", time.Date(2025, time.April, 14, 0, 0, 0, 0, time.UTC), 0},
		{"exactly one month", time.Date(2025, time.April, 15, 0, 0, 0, 0, time.UTC), 1},
		{"fourteen months", time.Date(2026, time.May, 20, 0, 0, 0, 0, time.UTC), 14},
		{"across year boundary", time.Date(2026, time.February, 15, 0, 0, 0, 0, time.UTC), 11},
		{"before birth", time.Date(2025, time.January, 1, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.AgeInMonths(tt.at))
		})
	}
}
