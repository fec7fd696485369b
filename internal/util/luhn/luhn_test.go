package luhn

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		number string
		want   bool
	}{
		{"visa test card", "4242424242424242", true},
		{"with spaces", "4242 4242 4242 4242", true},
		{"with dashes", "4242-4242-4242-4242", true},
		{"mastercard test card", "5555555555554444", true},
		{"corrupted check digit", "4242424242424241", false},
		{"letters", "4242abcd42424242", false},
		{"empty", "", false},
		{"only separators", " - ", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Validate(tt.number))
		})
	}
}

func TestDigits(t *testing.T) {
	assert.Equal(t, "4242424242424242", Digits("4242 4242-4242 4242"))
	assert.Equal(t, "", Digits("abc"))
}
