package report

import (
	"math"
	"strconv"
	"strings"
)

// Confidence is the model's self-reported confidence as a whole percentage.
// Known is false when the value was absent or couldn't be read.
type Confidence struct {
	Percent int
	Known   bool
}

// ParseConfidence reads values like "87%", "87" or "87.5 %". Out of range
// values are clamped to [0,100]. Anything unreadable gives the zero
// Confidence, it never fails.
func ParseConfidence(value string) Confidence {
	v := strings.TrimSpace(value)
	v = strings.TrimSpace(strings.TrimSuffix(v, "%"))
	if v == "" {
		return Confidence{}
	}

	f, err := strconv.ParseFloat(v, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return Confidence{}
	}

	return Confidence{Percent: int(math.Round(min(max(f, 0), 100))), Known: true}
}

// Confidence returns the parsed Confidence Level of r.
func (r Report) Confidence() Confidence {
	return ParseConfidence(r.Get(KeyConfidenceLevel, ""))
}

func (c Confidence) String() string {
	if !c.Known {
		return "unknown"
	}
	return strconv.Itoa(c.Percent) + "%"
}
