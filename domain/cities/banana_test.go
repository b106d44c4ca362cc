package cities

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBanana(t *testing.T) {
	tests := []struct {
		name  string
		state string
		want  string
	}{
		{"Palo Alto", "CA", "paloaltoCA"},
		{"St. Louis", "MO", "stlouisMO"},
		{"Winston-Salem", "NC", "winstonsalemNC"},
		{"O'Fallon", "IL", "ofallonIL"},
		{"Boise", "id", "boiseID"},
		{"100 Mile House", "BC", "100milehouseBC"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Banana(tt.name, tt.state))
		})
	}
}

func TestBananaDeterministic(t *testing.T) {
	a := Banana("San José", "CA")
	b := Banana("San José", "CA")
	assert.Equal(t, a, b)
}
