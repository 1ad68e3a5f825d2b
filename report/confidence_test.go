package report

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		value string
		want  Confidence
	}{
		{"87%", Confidence{87, true}},
		{"87", Confidence{87, true}},
		{" 95 % ", Confidence{95, true}},
		{"87.5%", Confidence{88, true}},
		{"0%", Confidence{0, true}},
		{"100%", Confidence{100, true}},
		{"150%", Confidence{100, true}},
		{"-5%", Confidence{0, true}},
		{"", Confidence{}},
		{"%", Confidence{}},
		{"abc", Confidence{}},
		{"high", Confidence{}},
		{"NaN", Confidence{}},
		{"Inf%", Confidence{}},
		{"87%%", Confidence{}},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseConfidence(tt.value))
		})
	}
}

func TestReportConfidence(t *testing.T) {
	assert.Equal(t, Confidence{87, true}, Parse("Confidence Level: 87%").Confidence())
	assert.Equal(t, Confidence{}, Parse("Gender: Male").Confidence())
}

func TestConfidenceString(t *testing.T) {
	assert.Equal(t, "87%", Confidence{87, true}.String())
	assert.Equal(t, "unknown", Confidence{}.String())
}
