package host

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestShippingResolved(t *testing.T) {
	tests := []struct {
		name     string
		state    State
		expected bool
	}{
		{
			name:     "no methods listed",
			state:    State{ShippingMethods: 0},
			expected: true,
		},
		{
			name:     "single implicit method",
			state:    State{ShippingMethods: 1},
			expected: true,
		},
		{
			name:     "multiple methods unselected",
			state:    State{ShippingMethods: 3},
			expected: false,
		},
		{
			name:     "multiple methods selected",
			state:    State{ShippingMethods: 3, ShippingSelected: true},
			expected: true,
		},
		{
			name:     "explicit no-shipping signal",
			state:    State{NoShipping: true, ShippingMethods: 1, ShippingSelected: true},
			expected: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, tt.state.ShippingResolved())
		})
	}
}
