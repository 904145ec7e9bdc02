package phone

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare ten digits", "9876543210", "+919876543210"},
		{"already canonical", "+919876543210", "+919876543210"},
		{"foreign prefix replaced", "+449876543210", "+91449876543210"},
		{"spaces and dashes stripped", "98765-432 10", "+919876543210"},
		{"parentheses stripped", "(987) 654-3210", "+919876543210"},
		{"leading whitespace before plus", "  +919876543210", "+919876543210"},
		{"empty input", "", "+91"},
		{"letters dropped", "abc98765x43210", "+919876543210"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.input))
		})
	}
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  bool
	}{
		{"valid number", "+919876543210", true},
		{"valid first digit one", "+911234567890", true},
		{"eleven digits", "+9112345678901", false},
		{"leading zero", "+910123456789", false},
		{"nine digits", "+91987654321", false},
		{"missing plus", "919876543210", false},
		{"wrong country code", "+449876543210", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsValid(tt.input))
		})
	}
}
